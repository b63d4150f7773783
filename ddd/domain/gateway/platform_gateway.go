package gateway

import (
	"context"

	"distribution-service/ddd/domain/vo"
)

// PlatformUploadRequest 发布到平台的请求
type PlatformUploadRequest struct {
	AccessToken  string
	Config       vo.PlatformUploadConfig
	RenditionURL string
}

// PlatformUploadResponse 平台返回
type PlatformUploadResponse struct {
	PlatformVideoID string
	URL             string
	Status          string
}

// PlatformClient 平台发布客户端。返回的错误应使用 vo.Transient / vo.Permanent 标记
type PlatformClient interface {
	Platform() vo.Platform
	UploadVideo(ctx context.Context, req *PlatformUploadRequest) (*PlatformUploadResponse, error)
	GetStatus(ctx context.Context, accessToken, platformVideoID string) (string, error)
	DeleteVideo(ctx context.Context, accessToken, platformVideoID string) error
}

// PlatformClientResolver 按平台查找客户端
type PlatformClientResolver interface {
	Client(platform vo.Platform) (PlatformClient, error)
}

// EventPublisher 流水线事件出口
type EventPublisher interface {
	Publish(ctx context.Context, event vo.PipelineEvent) error
}
