package gateway

import (
	"context"
	"io"
)

// StorageGateway 持久化对象存储（源文件与成片）
type StorageGateway interface {
	// PutFile 上传本地文件，返回可访问URL
	PutFile(ctx context.Context, localPath, objectKey, contentType string) (string, error)
	// DownloadFile 下载对象到本地路径
	DownloadFile(ctx context.Context, objectKey, localPath string) error
	DeleteObject(ctx context.Context, objectKey string) error
	ObjectURL(objectKey string) string
}

// UploadSink 上传过程中的临时落盘
type UploadSink interface {
	// Allocate 为视频分配临时文件
	Allocate(ctx context.Context, videoID string) (string, error)
	// Append 从 offset 处写入 r，最多接受 limit 字节；超出时回滚本次写入并返回 errno.ErrPayloadTooLarge
	Append(ctx context.Context, path string, offset int64, r io.Reader, limit int64) (int64, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	// Remove 幂等删除
	Remove(ctx context.Context, path string) error
}
