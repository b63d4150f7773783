package storage

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/vo"
	"distribution-service/internal/resource"
	"distribution-service/pkg/logger"
)

// objectClient *minio.Client 中用到的部分
type objectClient interface {
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	FGetObject(ctx context.Context, bucket, object, filePath string, opts minio.GetObjectOptions) error
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
}

// MinioStorage 源视频与成片的对象存储。错误按可否重试打上 vo.Transient / vo.Permanent
type MinioStorage struct {
	client objectClient
	bucket string
	urlFor func(objectKey string) string
}

// NewMinioStorage 基于已打开的 MinIO 资源创建存储
func NewMinioStorage(minioResource *resource.MinioResource) gateway.StorageGateway {
	return &MinioStorage{
		client: minioResource.GetClient(),
		bucket: minioResource.GetBucketName(),
		urlFor: minioResource.ObjectURL,
	}
}

// PutFile 上传本地文件，返回对象的访问地址
func (s *MinioStorage) PutFile(ctx context.Context, localPath, objectKey, contentType string) (string, error) {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFromExtension(objectKey)
	}
	info, err := s.client.FPutObject(ctx, s.bucket, objectKey, localPath, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		logger.Error("minio put object failed", map[string]interface{}{
			"local_path": localPath,
			"object_key": objectKey,
			"error":      err.Error(),
		})
		return "", classify(fmt.Errorf("put %s: %w", objectKey, err))
	}
	logger.Debug("minio object stored", map[string]interface{}{
		"object_key": objectKey,
		"size":       info.Size,
	})
	return s.urlFor(objectKey), nil
}

// DownloadFile 下载对象到本地路径
func (s *MinioStorage) DownloadFile(ctx context.Context, objectKey, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("create local directory: %w", err)
	}
	if err := s.client.FGetObject(ctx, s.bucket, objectKey, localPath, minio.GetObjectOptions{}); err != nil {
		return classify(fmt.Errorf("get %s: %w", objectKey, err))
	}
	return nil
}

// DeleteObject 对象不存在时视为成功
func (s *MinioStorage) DeleteObject(ctx context.Context, objectKey string) error {
	err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{})
	if err == nil {
		return nil
	}
	var resp minio.ErrorResponse
	if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
		return nil
	}
	return classify(fmt.Errorf("remove %s: %w", objectKey, err))
}

func (s *MinioStorage) ObjectURL(objectKey string) string {
	return s.urlFor(objectKey)
}

// classify 网络错误、5xx、限流可重试，其余（权限、对象不存在等）不重试
func classify(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return vo.Transient(err)
	}
	var resp minio.ErrorResponse
	if !errors.As(err, &resp) {
		return err
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.Code == "SlowDown", resp.Code == "RequestTimeout":
		return vo.Transient(err)
	}
	return vo.Permanent(err)
}

// ContentTypeFromExtension 根据扩展名推断 MIME 类型
func ContentTypeFromExtension(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".avi":
		return "video/x-msvideo"
	default:
		return "application/octet-stream"
	}
}
