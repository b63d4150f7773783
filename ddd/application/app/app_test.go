package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"distribution-service/ddd/application/cqe"
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/service"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/memory"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/keylock"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []vo.PipelineEvent
	err    error
}

func (r *recordingEvents) Publish(_ context.Context, e vo.PipelineEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

// drain 返回并清空已记录的事件
func (r *recordingEvents) drain() []vo.PipelineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.events
	r.events = nil
	return out
}

type stubEngine struct {
	mu    sync.Mutex
	fail  map[vo.Platform]error
	calls int
}

func (e *stubEngine) Transcode(_ context.Context, req *gateway.TranscodeRequest) (*vo.Rendition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := e.fail[req.Platform]; err != nil {
		return nil, err
	}
	return &vo.Rendition{
		ObjectKey:     "renditions/" + req.VideoID + "/" + req.Platform.String() + ".mp4",
		URL:           "http://cdn/" + req.Platform.String() + ".mp4",
		FileSizeBytes: 2048,
		Width:         req.Spec.Width,
		Height:        req.Spec.Height,
	}, nil
}

type stubPlatform struct {
	platform vo.Platform
	mu       sync.Mutex
	uploads  int
	deleted  []string
	err      error
}

func (c *stubPlatform) Platform() vo.Platform { return c.platform }

func (c *stubPlatform) UploadVideo(_ context.Context, req *gateway.PlatformUploadRequest) (*gateway.PlatformUploadResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uploads++
	if c.err != nil {
		return nil, c.err
	}
	return &gateway.PlatformUploadResponse{PlatformVideoID: "remote-" + req.Config.Platform.String(), URL: "https://remote/" + req.Config.Title, Status: "processing"}, nil
}

func (c *stubPlatform) GetStatus(context.Context, string, string) (string, error) { return "live", nil }

func (c *stubPlatform) DeleteVideo(_ context.Context, _ string, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, id)
	return nil
}

type stubResolver map[vo.Platform]*stubPlatform

func (r stubResolver) Client(p vo.Platform) (gateway.PlatformClient, error) {
	c, ok := r[p]
	if !ok {
		return nil, errno.Wrapf(errno.ErrPlatformUnsupported, "%s", p)
	}
	return c, nil
}

type fixture struct {
	videos       *memory.VideoRepo
	variants     *memory.VariantRepo
	publications *memory.PublicationRepo
	credentials  *memory.CredentialRepo
	events       *recordingEvents
	engine       *stubEngine
	clients      stubResolver
	dist         DistributionApp
	pipeline     PipelineApp
	videoApp     VideoApp
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		videos:       memory.NewVideoRepo(),
		variants:     memory.NewVariantRepo(),
		publications: memory.NewPublicationRepo(),
		credentials:  memory.NewCredentialRepo(),
		events:       &recordingEvents{},
		engine:       &stubEngine{fail: map[vo.Platform]error{}},
		clients: stubResolver{
			vo.PlatformYouTube: {platform: vo.PlatformYouTube},
			vo.PlatformTikTok:  {platform: vo.PlatformTikTok},
		},
	}
	noSleep := func(context.Context, time.Duration) error { return nil }
	transcoder := service.NewVariantOrchestrator(f.variants, f.engine, vo.DefaultSpecTable(), f.events,
		service.VariantOptions{MaxConcurrent: 2, ErrorMessageLimit: 200})
	publisher := service.NewPublishOrchestrator(f.credentials, f.clients, vo.DefaultRetryPolicy(), service.WithSleeper(noSleep))
	f.dist = NewDistributionApp(f.videos, f.variants, f.publications, f.credentials, publisher, f.events)
	f.pipeline = NewPipelineApp(f.videos, f.variants, f.publications, transcoder, publisher, f.events, keylock.New())
	f.videoApp = NewVideoApp(f.videos)
	return f
}

func (f *fixture) readyVideo(t *testing.T, owner string) *entity.Video {
	t.Helper()
	v, err := entity.NewVideo(owner, "clip", "")
	require.NoError(t, err)
	require.NoError(t, v.MarkUploading())
	require.NoError(t, v.AttachSource(entity.VideoSource{Key: "sources/" + v.VideoID() + ".mp4", URL: "http://cdn/src.mp4", ContentHash: "abc", SizeBytes: 10}))
	require.NoError(t, f.videos.CreateVideo(context.Background(), v))
	return v
}

func (f *fixture) credential(t *testing.T, owner string, p vo.Platform) {
	t.Helper()
	_, err := f.dist.SaveCredential(context.Background(), &cqe.SaveCredentialReq{Platform: p.String(), OwnerID: owner, AccessToken: "tok"})
	require.NoError(t, err)
}

// runPipeline 依次处理事件直到队列为空
func (f *fixture) runPipeline(t *testing.T) {
	t.Helper()
	for i := 0; i < 10; i++ {
		pending := f.events.drain()
		if len(pending) == 0 {
			return
		}
		for _, e := range pending {
			require.NoError(t, f.pipeline.HandleEvent(context.Background(), e))
		}
	}
	t.Fatal("pipeline did not settle")
}

func distReq(videoID, owner string, platforms ...string) *cqe.RequestDistributionReq {
	req := &cqe.RequestDistributionReq{VideoID: videoID, OwnerID: owner}
	for _, p := range platforms {
		req.Targets = append(req.Targets, cqe.DistributionTarget{Platform: p, Tags: []string{"go", " "}})
	}
	return req
}

func TestVideoApp_CreateAndOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.videoApp.CreateVideo(ctx, &cqe.CreateVideoReq{OwnerID: "alice", Title: "first"})
	require.NoError(t, err)
	assert.Equal(t, "draft", created.Status)

	got, err := f.videoApp.GetVideo(ctx, &cqe.QueryVideoReq{VideoID: created.VideoID, OwnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	_, err = f.videoApp.GetVideo(ctx, &cqe.QueryVideoReq{VideoID: created.VideoID, OwnerID: "mallory"})
	assert.ErrorIs(t, err, errno.ErrForbidden)
	_, err = f.videoApp.GetVideo(ctx, &cqe.QueryVideoReq{VideoID: "missing", OwnerID: "alice"})
	assert.ErrorIs(t, err, errno.ErrVideoNotFound)
	_, err = f.videoApp.CreateVideo(ctx, &cqe.CreateVideoReq{OwnerID: "alice", Title: "  "})
	assert.ErrorIs(t, err, errno.ErrMissingParam)
}

func TestRequestDistribution_BeforeUploadWaitsForSource(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v, err := entity.NewVideo("alice", "draft clip", "")
	require.NoError(t, err)
	require.NoError(t, f.videos.CreateVideo(ctx, v))

	status, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube", "tiktok", "youtube"))
	require.NoError(t, err)
	require.Len(t, status.Platforms, 2)
	assert.Equal(t, "tiktok", status.Platforms[0].Platform)
	assert.Nil(t, status.Platforms[0].Variant)
	assert.Equal(t, "pending", status.Platforms[0].Publication.Status)
	assert.Equal(t, "draft clip", status.Platforms[1].Publication.Title)
	assert.Empty(t, f.events.drain())

	_, err = f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "bob", "youtube"))
	assert.ErrorIs(t, err, errno.ErrForbidden)
	_, err = f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "myspace"))
	assert.ErrorIs(t, err, errno.ErrPlatformUnsupported)
}

func TestPipeline_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	f.credential(t, "alice", vo.PlatformYouTube)
	f.credential(t, "alice", vo.PlatformTikTok)

	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube", "tiktok"))
	require.NoError(t, err)
	f.runPipeline(t)

	status, err := f.dist.ListStatus(ctx, &cqe.QueryVideoReq{VideoID: v.VideoID(), OwnerID: "alice"})
	require.NoError(t, err)
	require.Len(t, status.Platforms, 2)
	for _, p := range status.Platforms {
		require.NotNil(t, p.Variant)
		assert.Equal(t, "COMPLETED", p.Variant.Status)
		assert.Equal(t, "published", p.Publication.Status, p.Platform)
		assert.Equal(t, 1, p.Publication.Attempts)
		assert.Equal(t, "remote-"+p.Platform, p.Publication.PlatformVideoID)
	}
	assert.Equal(t, 2, f.engine.calls)

	// 再次请求已发布的平台不会重新转码或发布
	_, err = f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube"))
	require.NoError(t, err)
	assert.Empty(t, f.events.drain())
	assert.Equal(t, 1, f.clients[vo.PlatformYouTube].uploads)
}

func TestPipeline_PartialFailureIsPerPlatform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	f.credential(t, "alice", vo.PlatformYouTube)
	f.engine.fail[vo.PlatformTikTok] = errors.New("encoder exploded")

	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube", "tiktok"))
	require.NoError(t, err)
	f.runPipeline(t)

	status, err := f.dist.ListStatus(ctx, &cqe.QueryVideoReq{VideoID: v.VideoID(), OwnerID: "alice"})
	require.NoError(t, err)
	byPlatform := map[string]string{}
	for _, p := range status.Platforms {
		byPlatform[p.Platform] = p.Variant.Status + "/" + p.Publication.Status
	}
	assert.Equal(t, "FAILED/pending", byPlatform["tiktok"])
	assert.Equal(t, "COMPLETED/published", byPlatform["youtube"])

	// 修复后显式重试
	delete(f.engine.fail, vo.PlatformTikTok)
	f.credential(t, "alice", vo.PlatformTikTok)
	_, err = f.dist.RetryVariant(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), Platform: "tiktok", OwnerID: "alice"})
	require.NoError(t, err)
	f.runPipeline(t)

	pub, err := f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusPublished, pub.Status())

	_, err = f.dist.RetryVariant(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), Platform: "youtube", OwnerID: "alice"})
	assert.ErrorIs(t, err, errno.ErrInvalidVariantStatus)
}

func TestPipeline_MissingCredentialFailsPublication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")

	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube"))
	require.NoError(t, err)
	f.runPipeline(t)

	pub, err := f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusFailed, pub.Status())
	assert.Contains(t, pub.ErrorMessage(), "credential")

	f.credential(t, "alice", vo.PlatformYouTube)
	_, err = f.dist.RetryPublish(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), Platform: "youtube", OwnerID: "alice"})
	require.NoError(t, err)
	f.runPipeline(t)

	pub, err = f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusPublished, pub.Status())
	assert.Equal(t, 1, f.engine.calls)

	_, err = f.dist.RetryPublish(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), Platform: "youtube", OwnerID: "alice"})
	assert.ErrorIs(t, err, errno.ErrInvalidPublishStatus)
}

func TestPipeline_PermanentPlatformErrorNotRetried(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	f.credential(t, "alice", vo.PlatformYouTube)
	f.clients[vo.PlatformYouTube].err = vo.Permanent(errors.New("title rejected"))

	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube"))
	require.NoError(t, err)
	f.runPipeline(t)

	pub, err := f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusFailed, pub.Status())
	assert.Equal(t, "title rejected", pub.ErrorMessage())
	assert.Equal(t, 1, f.clients[vo.PlatformYouTube].uploads)
}

func TestSourceReadyWithoutPlatformsUsesPendingPublications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	require.NoError(t, f.publications.UpsertPublication(ctx, entity.NewPublication(v.VideoID(),
		vo.PlatformUploadConfig{Platform: vo.PlatformTikTok, Title: "t", Privacy: vo.PrivacyPublic})))

	require.NoError(t, f.pipeline.HandleEvent(ctx, vo.NewSourceReadyEvent(v.VideoID(), "alice")))
	variant, err := f.variants.GetVariant(ctx, v.VideoID(), vo.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, vo.VariantStatusCompleted, variant.Status())

	other := f.readyVideo(t, "alice")
	require.NoError(t, f.pipeline.HandleEvent(ctx, vo.NewSourceReadyEvent(other.VideoID(), "alice")))
	assert.Equal(t, 1, f.engine.calls)
}

func TestUnpublishAndRemoteStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	f.credential(t, "alice", vo.PlatformYouTube)
	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube"))
	require.NoError(t, err)
	f.runPipeline(t)

	action := &cqe.PlatformActionReq{VideoID: v.VideoID(), Platform: "yt", OwnerID: "alice"}
	remote, err := f.dist.RemoteStatus(ctx, action)
	require.NoError(t, err)
	assert.Equal(t, "live", remote.RemoteStatus)

	st, err := f.dist.Unpublish(ctx, action)
	require.NoError(t, err)
	assert.Equal(t, "removed", st.Publication.Status)
	assert.Equal(t, []string{"remote-youtube"}, f.clients[vo.PlatformYouTube].deleted)

	_, err = f.dist.Unpublish(ctx, action)
	require.NoError(t, err)
	assert.Len(t, f.clients[vo.PlatformYouTube].deleted, 1)
}

func TestRequestDistribution_QueueFull(t *testing.T) {
	f := newFixture(t)
	v := f.readyVideo(t, "alice")
	f.events.err = errno.ErrQueueFull

	_, err := f.dist.RequestDistribution(context.Background(), distReq(v.VideoID(), "alice", "youtube"))
	assert.ErrorIs(t, err, errno.ErrQueueFull)
}

// forcePublishing 模拟发布进程在平台调用中途退出
func (f *fixture) forcePublishing(t *testing.T, videoID string, p vo.Platform, since time.Time) {
	t.Helper()
	ctx := context.Background()
	pub, err := f.publications.GetPublication(ctx, videoID, p)
	require.NoError(t, err)
	stuck := entity.NewPublicationWithDetails(entity.PublicationDetails{
		ID:        pub.ID(),
		VideoID:   videoID,
		Config:    pub.Config(),
		Status:    vo.PublicationStatusPublishing,
		CreatedAt: pub.CreatedAt(),
		UpdatedAt: since,
	})
	require.NoError(t, f.publications.SavePublication(ctx, stuck))
}

func TestRecoverStalePublications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.readyVideo(t, "alice")
	f.credential(t, "alice", vo.PlatformYouTube)
	f.credential(t, "alice", vo.PlatformTikTok)
	_, err := f.dist.RequestDistribution(ctx, distReq(v.VideoID(), "alice", "youtube", "tiktok"))
	require.NoError(t, err)
	f.runPipeline(t)

	f.forcePublishing(t, v.VideoID(), vo.PlatformYouTube, time.Now().Add(-2*time.Hour))
	f.forcePublishing(t, v.VideoID(), vo.PlatformTikTok, time.Now())

	// 重复投递的 variant.ready 与显式重试都无法推进 publishing 记录
	require.NoError(t, f.pipeline.HandleEvent(ctx, vo.NewVariantReadyEvent(v.VideoID(), vo.PlatformYouTube)))
	_, err = f.dist.RetryPublish(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), OwnerID: "alice", Platform: "youtube"})
	assert.ErrorIs(t, err, errno.ErrInvalidPublishStatus)

	n, err := f.pipeline.RecoverStalePublications(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	yt, err := f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusFailed, yt.Status())
	assert.Contains(t, yt.ErrorMessage(), "interrupted")
	tt, err := f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformTikTok)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusPublishing, tt.Status())

	_, err = f.dist.RetryPublish(ctx, &cqe.PlatformActionReq{VideoID: v.VideoID(), OwnerID: "alice", Platform: "youtube"})
	require.NoError(t, err)
	f.runPipeline(t)
	yt, err = f.publications.GetPublication(ctx, v.VideoID(), vo.PlatformYouTube)
	require.NoError(t, err)
	assert.Equal(t, vo.PublicationStatusPublished, yt.Status())
	assert.Equal(t, 2, f.clients[vo.PlatformYouTube].uploads)

	n, err = f.pipeline.RecoverStalePublications(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}
