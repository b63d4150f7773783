package dao

import (
	"context"

	"gorm.io/gorm"

	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/logger"
)

// VideoDao 视频数据访问对象
type VideoDao struct {
	db *gorm.DB
}

// NewVideoDao 创建视频DAO
func NewVideoDao(db *gorm.DB) *VideoDao {
	return &VideoDao{db: db}
}

func (d *VideoDao) Create(ctx context.Context, video *po.Video) error {
	if err := d.db.WithContext(ctx).Create(video).Error; err != nil {
		logger.Errorf("create video failed video_uuid=%s error=%v", video.VideoUUID, err)
		return err
	}
	return nil
}

// FindByVideoUUID 根据视频UUID查询
func (d *VideoDao) FindByVideoUUID(ctx context.Context, videoUUID string) (*po.Video, error) {
	var video po.Video
	if err := d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).First(&video).Error; err != nil {
		return nil, err
	}
	return &video, nil
}

// UpdateByVideoUUID 全量更新（包括零值字段）
func (d *VideoDao) UpdateByVideoUUID(ctx context.Context, video *po.Video) (int64, error) {
	res := d.db.WithContext(ctx).
		Model(&po.Video{}).
		Where("video_uuid = ?", video.VideoUUID).
		Select("*").
		Omit("id", "created_at").
		Updates(video)
	if res.Error != nil {
		logger.Errorf("update video failed video_uuid=%s error=%v", video.VideoUUID, res.Error)
	}
	return res.RowsAffected, res.Error
}

// FindFirstReadyByOwnerAndHash 同一用户最早上传的相同内容
func (d *VideoDao) FindFirstReadyByOwnerAndHash(ctx context.Context, ownerUUID, contentHash, readyStatus string) (*po.Video, error) {
	var video po.Video
	err := d.db.WithContext(ctx).
		Where("owner_uuid = ? AND content_hash = ? AND status = ? AND source_key <> ''", ownerUUID, contentHash, readyStatus).
		Order("id ASC").
		First(&video).Error
	if err != nil {
		return nil, err
	}
	return &video, nil
}
