package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/logger"
)

// VideoVariantDao 平台成片数据访问对象
type VideoVariantDao struct {
	db *gorm.DB
}

// NewVideoVariantDao 创建平台成片DAO
func NewVideoVariantDao(db *gorm.DB) *VideoVariantDao {
	return &VideoVariantDao{db: db}
}

func (d *VideoVariantDao) Create(ctx context.Context, variant *po.VideoVariant) error {
	return d.db.WithContext(ctx).Create(variant).Error
}

// FindByVideoAndPlatform 根据视频与平台查询
func (d *VideoVariantDao) FindByVideoAndPlatform(ctx context.Context, videoUUID, platform string) (*po.VideoVariant, error) {
	var variant po.VideoVariant
	if err := d.db.WithContext(ctx).
		Where("video_uuid = ? AND platform = ?", videoUUID, platform).
		First(&variant).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

// UpdateIfStatus 仅当当前状态为 expectedStatus 时更新，返回影响行数
func (d *VideoVariantDao) UpdateIfStatus(ctx context.Context, variant *po.VideoVariant, expectedStatus string) (int64, error) {
	update := map[string]interface{}{
		"status":          variant.Status,
		"rendition_key":   variant.RenditionKey,
		"rendition_url":   variant.RenditionURL,
		"file_size_bytes": variant.FileSizeBytes,
		"width":           variant.Width,
		"height":          variant.Height,
		"error_message":   variant.ErrorMessage,
		"started_at":      variant.StartedAt,
		"completed_at":    variant.CompletedAt,
		"updated_at":      variant.UpdatedAt,
	}
	res := d.db.WithContext(ctx).
		Model(&po.VideoVariant{}).
		Where("video_uuid = ? AND platform = ? AND status = ?", variant.VideoUUID, variant.Platform, expectedStatus).
		Updates(update)
	if res.Error != nil {
		logger.Errorf("update video variant failed video_uuid=%s platform=%s error=%v", variant.VideoUUID, variant.Platform, res.Error)
	}
	return res.RowsAffected, res.Error
}

// ListByVideo 查询视频的全部成片
func (d *VideoVariantDao) ListByVideo(ctx context.Context, videoUUID string) ([]*po.VideoVariant, error) {
	var variants []*po.VideoVariant
	if err := d.db.WithContext(ctx).
		Where("video_uuid = ?", videoUUID).
		Order("platform ASC").
		Find(&variants).Error; err != nil {
		return nil, err
	}
	return variants, nil
}

// ListStale 查询长时间未更新的成片
func (d *VideoVariantDao) ListStale(ctx context.Context, statuses []string, before time.Time, limit int) ([]*po.VideoVariant, error) {
	var variants []*po.VideoVariant
	query := d.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, before).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&variants).Error; err != nil {
		logger.Errorf("list stale variants failed error=%v", err)
		return nil, err
	}
	return variants, nil
}
