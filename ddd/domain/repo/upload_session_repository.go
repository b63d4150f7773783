package repo

import (
	"context"
	"time"

	"distribution-service/ddd/domain/entity"
)

// UploadSessionRepository 上传会话仓储接口
type UploadSessionRepository interface {
	// CreateSession 创建会话，同一视频已有会话时返回 errno.ErrUploadSessionExists
	CreateSession(ctx context.Context, session *entity.UploadSession) error
	// GetSession 不存在时返回 errno.ErrUploadNotFound
	GetSession(ctx context.Context, videoID string) (*entity.UploadSession, error)
	UpdateOffset(ctx context.Context, videoID string, offset int64, updatedAt time.Time) error
	// DeleteSession 幂等删除
	DeleteSession(ctx context.Context, videoID string) error
	// ListSessionsCreatedBefore 清理任务使用
	ListSessionsCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*entity.UploadSession, error)
}
