package dao

import (
	"context"
	"time"

	"gorm.io/gorm"

	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/logger"
)

// UploadSessionDao 上传会话数据访问对象
type UploadSessionDao struct {
	db *gorm.DB
}

// NewUploadSessionDao 创建上传会话DAO
func NewUploadSessionDao(db *gorm.DB) *UploadSessionDao {
	return &UploadSessionDao{db: db}
}

func (d *UploadSessionDao) Create(ctx context.Context, session *po.UploadSession) error {
	return d.db.WithContext(ctx).Create(session).Error
}

// FindByVideoUUID 根据视频UUID查询会话
func (d *UploadSessionDao) FindByVideoUUID(ctx context.Context, videoUUID string) (*po.UploadSession, error) {
	var session po.UploadSession
	if err := d.db.WithContext(ctx).
		Where("video_uuid = ?", videoUUID).
		First(&session).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// UpdateOffset 更新已接收偏移量
func (d *UploadSessionDao) UpdateOffset(ctx context.Context, videoUUID string, offset int64, updatedAt time.Time) (int64, error) {
	res := d.db.WithContext(ctx).
		Model(&po.UploadSession{}).
		Where("video_uuid = ?", videoUUID).
		Updates(map[string]interface{}{
			"received_offset": offset,
			"updated_at":      updatedAt,
		})
	if res.Error != nil {
		logger.Errorf("update upload offset failed video_uuid=%s error=%v", videoUUID, res.Error)
	}
	return res.RowsAffected, res.Error
}

func (d *UploadSessionDao) Delete(ctx context.Context, videoUUID string) error {
	return d.db.WithContext(ctx).Where("video_uuid = ?", videoUUID).Delete(&po.UploadSession{}).Error
}

// ListCreatedBefore 查询过期会话，按创建时间升序
func (d *UploadSessionDao) ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*po.UploadSession, error) {
	var sessions []*po.UploadSession
	query := d.db.WithContext(ctx).Where("created_at < ?", before).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&sessions).Error; err != nil {
		logger.Errorf("list expired upload sessions failed error=%v", err)
		return nil, err
	}
	return sessions, nil
}
