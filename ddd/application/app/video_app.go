package app

import (
	"context"

	"distribution-service/ddd/application/cqe"
	"distribution-service/ddd/application/dto"
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

type VideoApp interface {
	// CreateVideo 创建视频草稿，返回的 video_id 用于上传
	CreateVideo(ctx context.Context, req *cqe.CreateVideoReq) (*dto.VideoDto, error)
	// GetVideo 仅所有者可见
	GetVideo(ctx context.Context, req *cqe.QueryVideoReq) (*dto.VideoDto, error)
}

type videoAppImpl struct {
	videos repo.VideoRepository
}

func NewVideoApp(videos repo.VideoRepository) VideoApp {
	return &videoAppImpl{videos: videos}
}

func (a *videoAppImpl) CreateVideo(ctx context.Context, req *cqe.CreateVideoReq) (*dto.VideoDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	video, err := entity.NewVideo(req.OwnerID, req.Title, req.Description)
	if err != nil {
		return nil, err
	}
	if err := a.videos.CreateVideo(ctx, video); err != nil {
		return nil, err
	}
	logger.Info("video created", map[string]interface{}{
		"video_id": video.VideoID(),
		"owner_id": video.OwnerID(),
	})
	return dto.NewVideoDto(video), nil
}

func (a *videoAppImpl) GetVideo(ctx context.Context, req *cqe.QueryVideoReq) (*dto.VideoDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	return dto.NewVideoDto(video), nil
}

// ownedVideo 视频不存在返回 404，非所有者返回 403
func ownedVideo(ctx context.Context, videos repo.VideoRepository, videoID, ownerID string) (*entity.Video, error) {
	video, err := videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.IsOwnedBy(ownerID) {
		return nil, errno.ErrForbidden
	}
	return video, nil
}
