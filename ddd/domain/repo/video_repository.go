package repo

import (
	"context"

	"distribution-service/ddd/domain/entity"
)

// VideoRepository 视频仓储接口
type VideoRepository interface {
	CreateVideo(ctx context.Context, video *entity.Video) error
	// GetVideo 不存在时返回 errno.ErrVideoNotFound
	GetVideo(ctx context.Context, videoID string) (*entity.Video, error)
	UpdateVideo(ctx context.Context, video *entity.Video) error
	// FindReadyByOwnerAndHash 查找同一用户已就绪的相同内容，没有时返回 nil, nil
	FindReadyByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*entity.Video, error)
}
