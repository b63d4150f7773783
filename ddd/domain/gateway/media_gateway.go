package gateway

import (
	"context"

	"distribution-service/ddd/domain/vo"
)

// MediaProbe 源视频探测
type MediaProbe interface {
	Probe(ctx context.Context, path string) (*vo.MediaInfo, error)
}

// TranscodeRequest 单平台转码请求
// SourceDurationMs 为上传时探测到的时长，0 表示未知
type TranscodeRequest struct {
	VideoID          string
	Platform         vo.Platform
	SourceKey        string
	SourceURL        string
	SourceDurationMs int64
	Spec             vo.PlatformSpec
}

// TranscodeEngine 将源视频转成某平台的成片并持久化
type TranscodeEngine interface {
	Transcode(ctx context.Context, req *TranscodeRequest) (*vo.Rendition, error)
}
