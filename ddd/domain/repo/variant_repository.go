package repo

import (
	"context"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
)

// VariantRepository 平台成片仓储接口
type VariantRepository interface {
	// CreateVariant (videoID, platform) 已存在时返回 errno.ErrVariantExists
	CreateVariant(ctx context.Context, variant *entity.Variant) error
	// GetVariant 不存在时返回 errno.ErrVariantNotFound
	GetVariant(ctx context.Context, videoID string, platform vo.Platform) (*entity.Variant, error)
	// CompareAndSave 仅当库中状态仍为 expected 时写入，否则返回 errno.ErrVariantConflict
	CompareAndSave(ctx context.Context, variant *entity.Variant, expected vo.VariantStatus) error
	ListVariantsByVideo(ctx context.Context, videoID string) ([]*entity.Variant, error)
	// ListStaleVariants 返回处于给定状态且 updatedAt 早于 before 的记录
	ListStaleVariants(ctx context.Context, statuses []vo.VariantStatus, before time.Time, limit int) ([]*entity.Variant, error)
}
