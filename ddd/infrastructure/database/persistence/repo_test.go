package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/errno"
)

// newTestDB 每个测试独立的内存库，与生产一致开启 TranslateError
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, AutoMigrate(db))
	return db
}

func backdate(t *testing.T, db *gorm.DB, model interface{}, videoID, platform string, at time.Time) {
	t.Helper()
	res := db.Model(model).
		Where("video_uuid = ? AND platform = ?", videoID, platform).
		UpdateColumn("updated_at", at)
	require.NoError(t, res.Error)
	require.Equal(t, int64(1), res.RowsAffected)
}

func TestVariantRepository_UniquePerPlatform(t *testing.T) {
	repo := NewVariantRepository(newTestDB(t))
	ctx := context.Background()

	v := entity.NewVariant("v1", vo.PlatformYouTube)
	require.NoError(t, repo.CreateVariant(ctx, v))
	assert.NotZero(t, v.ID())

	err := repo.CreateVariant(ctx, entity.NewVariant("v1", vo.PlatformYouTube))
	assert.ErrorIs(t, err, errno.ErrVariantExists)

	require.NoError(t, repo.CreateVariant(ctx, entity.NewVariant("v1", vo.PlatformTikTok)))
	list, err := repo.ListVariantsByVideo(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, vo.PlatformTikTok, list[0].Platform())

	_, err = repo.GetVariant(ctx, "v1", vo.PlatformVimeo)
	assert.ErrorIs(t, err, errno.ErrVariantNotFound)
}

func TestVariantRepository_CompareAndSave(t *testing.T) {
	repo := NewVariantRepository(newTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.CreateVariant(ctx, entity.NewVariant("v1", vo.PlatformYouTube)))

	first, err := repo.GetVariant(ctx, "v1", vo.PlatformYouTube)
	require.NoError(t, err)
	second, err := repo.GetVariant(ctx, "v1", vo.PlatformYouTube)
	require.NoError(t, err)

	require.NoError(t, first.StartProcessing())
	require.NoError(t, repo.CompareAndSave(ctx, first, vo.VariantStatusPending))

	// 另一个 worker 基于旧状态的写入必须失败
	require.NoError(t, second.StartProcessing())
	err = repo.CompareAndSave(ctx, second, vo.VariantStatusPending)
	assert.ErrorIs(t, err, errno.ErrVariantConflict)

	require.NoError(t, first.Complete(vo.Rendition{ObjectKey: "renditions/v1/youtube.mp4", URL: "http://cdn/v1", FileSizeBytes: 99, Width: 1920, Height: 1080}))
	require.NoError(t, repo.CompareAndSave(ctx, first, vo.VariantStatusProcessing))

	got, err := repo.GetVariant(ctx, "v1", vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.VariantStatusCompleted, got.Status())
	assert.Equal(t, "renditions/v1/youtube.mp4", got.RenditionKey())
	assert.Equal(t, int64(99), got.FileSizeBytes())
	assert.NotNil(t, got.CompletedAt())

	missing := entity.NewVariant("nope", vo.PlatformYouTube)
	assert.ErrorIs(t, repo.CompareAndSave(ctx, missing, vo.VariantStatusPending), errno.ErrVariantNotFound)
}

func TestVariantRepository_ListStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewVariantRepository(db)
	ctx := context.Background()

	for _, p := range []vo.Platform{vo.PlatformYouTube, vo.PlatformTikTok, vo.PlatformVimeo} {
		v := entity.NewVariant("v1", p)
		require.NoError(t, repo.CreateVariant(ctx, v))
		require.NoError(t, v.StartProcessing())
		require.NoError(t, repo.CompareAndSave(ctx, v, vo.VariantStatusPending))
	}
	backdate(t, db, &po.VideoVariant{}, "v1", "youtube", time.Now().Add(-3*time.Hour))
	backdate(t, db, &po.VideoVariant{}, "v1", "vimeo", time.Now().Add(-2*time.Hour))

	stale, err := repo.ListStaleVariants(ctx, []vo.VariantStatus{vo.VariantStatusProcessing}, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, vo.PlatformYouTube, stale[0].Platform())
	assert.Equal(t, vo.PlatformVimeo, stale[1].Platform())

	limited, err := repo.ListStaleVariants(ctx, []vo.VariantStatus{vo.VariantStatusProcessing}, time.Now().Add(-time.Hour), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListStaleVariants(ctx, []vo.VariantStatus{vo.VariantStatusPending}, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPublicationRepository_UpsertAndStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewPublicationRepository(db)
	ctx := context.Background()
	cfg := vo.PlatformUploadConfig{Platform: vo.PlatformYouTube, Title: "first", Tags: []string{"a", "b"}, Privacy: vo.PrivacyPublic}

	require.NoError(t, repo.UpsertPublication(ctx, entity.NewPublication("v1", cfg)))
	cfg.Title = "second"
	require.NoError(t, repo.UpsertPublication(ctx, entity.NewPublication("v1", cfg)))

	list, err := repo.ListPublicationsByVideo(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "second", list[0].Config().Title)
	assert.Equal(t, []string{"a", "b"}, list[0].Config().Tags)

	pub := list[0]
	require.NoError(t, pub.StartPublishing())
	require.NoError(t, repo.SavePublication(ctx, pub))

	tiktok := entity.NewPublication("v1", vo.PlatformUploadConfig{Platform: vo.PlatformTikTok, Title: "t"})
	require.NoError(t, repo.UpsertPublication(ctx, tiktok))
	tiktok, err = repo.GetPublication(ctx, "v1", vo.PlatformTikTok)
	require.NoError(t, err)
	require.NoError(t, tiktok.StartPublishing())
	require.NoError(t, repo.SavePublication(ctx, tiktok))

	backdate(t, db, &po.PlatformPublication{}, "v1", "youtube", time.Now().Add(-2*time.Hour))

	stale, err := repo.ListStalePublishing(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, vo.PlatformYouTube, stale[0].Platform())

	require.NoError(t, stale[0].Interrupt("interrupted: worker exited"))
	require.NoError(t, repo.SavePublication(ctx, stale[0]))
	got, err := repo.GetPublication(ctx, "v1", vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusFailed, got.Status())
	assert.Contains(t, got.ErrorMessage(), "interrupted")

	stale, err = repo.ListStalePublishing(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	ghost := entity.NewPublication("missing", cfg)
	assert.ErrorIs(t, repo.SavePublication(ctx, ghost), errno.ErrPublicationNotFound)
	_, err = repo.GetPublication(ctx, "missing", vo.PlatformYouTube)
	assert.ErrorIs(t, err, errno.ErrPublicationNotFound)
}

func TestUploadSessionRepository(t *testing.T) {
	repo := NewUploadSessionRepository(newTestDB(t))
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)

	s, err := entity.NewUploadSession("v1", "alice", 100, "/tmp/v1.part", "video/mp4", "clip.mp4", old)
	require.NoError(t, err)
	require.NoError(t, repo.CreateSession(ctx, s))
	assert.ErrorIs(t, repo.CreateSession(ctx, s), errno.ErrUploadSessionExists)

	fresh, err := entity.NewUploadSession("v2", "alice", 10, "/tmp/v2.part", "video/mp4", "b.mp4", time.Now())
	require.NoError(t, err)
	require.NoError(t, repo.CreateSession(ctx, fresh))

	require.NoError(t, repo.UpdateOffset(ctx, "v1", 40, time.Now()))
	got, err := repo.GetSession(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), got.ReceivedOffset())
	assert.Equal(t, int64(100), got.DeclaredLength())
	assert.Equal(t, "clip.mp4", got.OriginalFilename())

	assert.ErrorIs(t, repo.UpdateOffset(ctx, "missing", 1, time.Now()), errno.ErrUploadNotFound)

	expired, err := repo.ListSessionsCreatedBefore(ctx, time.Now().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "v1", expired[0].VideoID())

	require.NoError(t, repo.DeleteSession(ctx, "v1"))
	require.NoError(t, repo.DeleteSession(ctx, "v1"))
	_, err = repo.GetSession(ctx, "v1")
	assert.ErrorIs(t, err, errno.ErrUploadNotFound)
}

func TestVideoRepository(t *testing.T) {
	repo := NewVideoRepository(newTestDB(t))
	ctx := context.Background()

	v, err := entity.NewVideo("alice", "clip", "desc")
	require.NoError(t, err)
	require.NoError(t, repo.CreateVideo(ctx, v))
	assert.ErrorIs(t, repo.CreateVideo(ctx, v), errno.ErrInvalidParam)

	// 未修改任何字段的更新也应成功
	require.NoError(t, repo.UpdateVideo(ctx, v))

	dup, err := repo.FindReadyByOwnerAndHash(ctx, "alice", "abc")
	require.NoError(t, err)
	assert.Nil(t, dup)

	require.NoError(t, v.AttachSource(entity.VideoSource{Key: "sources/x/source.mp4", URL: "http://s/x", ContentHash: "abc", SizeBytes: 10,
		Media: vo.MediaInfo{DurationMs: 1500, Width: 1920, Height: 1080}}))
	require.NoError(t, repo.UpdateVideo(ctx, v))

	got, err := repo.GetVideo(ctx, v.VideoID())
	require.NoError(t, err)
	assert.True(t, got.IsSourceReady())
	assert.Equal(t, int64(1500), got.Media().DurationMs)

	dup, err = repo.FindReadyByOwnerAndHash(ctx, "alice", "abc")
	require.NoError(t, err)
	require.NotNil(t, dup)
	assert.Equal(t, v.VideoID(), dup.VideoID())

	other, err := repo.FindReadyByOwnerAndHash(ctx, "bob", "abc")
	require.NoError(t, err)
	assert.Nil(t, other)

	missing, err := entity.NewVideo("alice", "ghost", "")
	require.NoError(t, err)
	assert.ErrorIs(t, repo.UpdateVideo(ctx, missing), errno.ErrVideoNotFound)
	_, err = repo.GetVideo(ctx, "nope")
	assert.ErrorIs(t, err, errno.ErrVideoNotFound)
}
