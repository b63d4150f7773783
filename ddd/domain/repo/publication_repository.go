package repo

import (
	"context"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
)

// PublicationRepository 发布记录仓储接口
type PublicationRepository interface {
	// UpsertPublication 按 (videoID, platform) 新建或覆盖
	UpsertPublication(ctx context.Context, pub *entity.Publication) error
	// GetPublication 不存在时返回 errno.ErrPublicationNotFound
	GetPublication(ctx context.Context, videoID string, platform vo.Platform) (*entity.Publication, error)
	SavePublication(ctx context.Context, pub *entity.Publication) error
	ListPublicationsByVideo(ctx context.Context, videoID string) ([]*entity.Publication, error)
	// ListStalePublishing 返回 publishing 状态且 updatedAt 早于 before 的记录
	ListStalePublishing(ctx context.Context, before time.Time, limit int) ([]*entity.Publication, error)
}

// CredentialRepository 平台授权仓储接口
type CredentialRepository interface {
	// FindCredential 不存在时返回 errno.ErrCredentialNotFound
	FindCredential(ctx context.Context, ownerID string, platform vo.Platform) (*entity.PlatformCredential, error)
	SaveCredential(ctx context.Context, cred *entity.PlatformCredential) error
}
