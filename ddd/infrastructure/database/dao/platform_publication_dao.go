package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/logger"
)

var publicationColumns = []string{
	"title", "description", "tags", "privacy", "status", "platform_video_id",
	"platform_url", "remote_status", "attempts", "error_message", "published_at", "updated_at",
}

// PlatformPublicationDao 发布记录数据访问对象
type PlatformPublicationDao struct {
	db *gorm.DB
}

// NewPlatformPublicationDao 创建发布记录DAO
func NewPlatformPublicationDao(db *gorm.DB) *PlatformPublicationDao {
	return &PlatformPublicationDao{db: db}
}

// Upsert 按 (video_uuid, platform) 插入或覆盖
func (d *PlatformPublicationDao) Upsert(ctx context.Context, pub *po.PlatformPublication) error {
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "video_uuid"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns(publicationColumns),
	}).Create(pub).Error
	if err != nil {
		logger.Errorf("upsert publication failed video_uuid=%s platform=%s error=%v", pub.VideoUUID, pub.Platform, err)
	}
	return err
}

func (d *PlatformPublicationDao) FindByVideoAndPlatform(ctx context.Context, videoUUID, platform string) (*po.PlatformPublication, error) {
	var pub po.PlatformPublication
	if err := d.db.WithContext(ctx).
		Where("video_uuid = ? AND platform = ?", videoUUID, platform).
		First(&pub).Error; err != nil {
		return nil, err
	}
	return &pub, nil
}

// Update 更新发布状态
func (d *PlatformPublicationDao) Update(ctx context.Context, pub *po.PlatformPublication) (int64, error) {
	res := d.db.WithContext(ctx).
		Model(&po.PlatformPublication{}).
		Where("video_uuid = ? AND platform = ?", pub.VideoUUID, pub.Platform).
		Select(publicationColumns).
		Updates(pub)
	return res.RowsAffected, res.Error
}

func (d *PlatformPublicationDao) ListByVideo(ctx context.Context, videoUUID string) ([]*po.PlatformPublication, error) {
	var pubs []*po.PlatformPublication
	if err := d.db.WithContext(ctx).
		Where("video_uuid = ?", videoUUID).
		Order("platform ASC").
		Find(&pubs).Error; err != nil {
		return nil, err
	}
	return pubs, nil
}

// ListStale 查询长时间停留在某状态的发布记录
func (d *PlatformPublicationDao) ListStale(ctx context.Context, status string, before time.Time, limit int) ([]*po.PlatformPublication, error) {
	var pubs []*po.PlatformPublication
	query := d.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&pubs).Error; err != nil {
		logger.Errorf("list stale publications failed error=%v", err)
		return nil, err
	}
	return pubs, nil
}

// PlatformCredentialDao 平台授权数据访问对象
type PlatformCredentialDao struct {
	db *gorm.DB
}

func NewPlatformCredentialDao(db *gorm.DB) *PlatformCredentialDao {
	return &PlatformCredentialDao{db: db}
}

func (d *PlatformCredentialDao) Find(ctx context.Context, ownerUUID, platform string) (*po.PlatformCredential, error) {
	var cred po.PlatformCredential
	if err := d.db.WithContext(ctx).
		Where("owner_uuid = ? AND platform = ?", ownerUUID, platform).
		First(&cred).Error; err != nil {
		return nil, err
	}
	return &cred, nil
}

func (d *PlatformCredentialDao) Upsert(ctx context.Context, cred *po.PlatformCredential) error {
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_uuid"}, {Name: "platform"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "expires_at", "updated_at"}),
	}).Create(cred).Error
}
