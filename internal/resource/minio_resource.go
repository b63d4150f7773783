package resource

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"distribution-service/pkg/assert"
	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
)

var (
	minioResourceOnce      sync.Once
	singletonMinioResource *MinioResource
)

// MinioResource 源视频与各平台成片所在的桶
type MinioResource struct {
	client     *minio.Client
	bucketName string
	publicBase string
}

// DefaultMinioResource 获取MinIO资源单例
func DefaultMinioResource() *MinioResource {
	assert.NotCircular()
	minioResourceOnce.Do(func() {
		singletonMinioResource = &MinioResource{}
	})
	assert.NotNil(singletonMinioResource)
	return singletonMinioResource
}

// MustOpen 创建客户端并确保桶存在，storage.backend=minio 时才会被打开
func (r *MinioResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before MinioResource")
	}
	mc := cfg.Minio
	switch {
	case mc.Endpoint == "":
		panic("minio.endpoint is required when storage.backend=minio")
	case mc.BucketName == "":
		panic("minio.bucket_name is required when storage.backend=minio")
	}

	client, err := minio.New(mc.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(mc.AccessKeyID, mc.SecretAccessKey, ""),
		Secure: mc.UseSSL,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to create minio client: %v", err))
	}
	r.client = client
	r.bucketName = mc.BucketName
	r.publicBase = normalizeBase(cfg.Public.StorageBase)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.ensureBucket(ctx); err != nil {
		panic(err.Error())
	}
	logger.Info("MinIO resource initialized", map[string]interface{}{
		"endpoint":    mc.Endpoint,
		"bucket_name": r.bucketName,
		"public_base": r.publicBase,
	})
}

func (r *MinioResource) ensureBucket(ctx context.Context) error {
	exists, err := r.client.BucketExists(ctx, r.bucketName)
	if err != nil {
		return fmt.Errorf("check minio bucket %s: %w", r.bucketName, err)
	}
	if exists {
		return nil
	}
	if err := r.client.MakeBucket(ctx, r.bucketName, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create minio bucket %s: %w", r.bucketName, err)
	}
	logger.Infof("MinIO bucket created bucket=%s", r.bucketName)
	return nil
}

// Ping 健康检查
func (r *MinioResource) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("minio resource not opened")
	}
	_, err := r.client.BucketExists(ctx, r.bucketName)
	return err
}

// GetClient 获取MinIO客户端
func (r *MinioResource) GetClient() *minio.Client {
	return r.client
}

// GetBucketName 获取桶名称
func (r *MinioResource) GetBucketName() string {
	return r.bucketName
}

// ObjectURL 平台拉取成片用的地址；未配置 public.storage_base 时只返回桶内路径
func (r *MinioResource) ObjectURL(objectKey string) string {
	key := strings.TrimLeft(objectKey, "/")
	if r.publicBase != "" {
		return r.publicBase + "/" + key
	}
	return "/" + r.bucketName + "/" + key
}

func normalizeBase(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return strings.TrimRight(base, "/")
}

// Close minio-go 没有需要释放的连接
func (r *MinioResource) Close() {}

// MinioResourcePlugin MinIO资源插件
type MinioResourcePlugin struct{}

func (p *MinioResourcePlugin) Name() string { return NameMinio }

func (p *MinioResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultMinioResource()
}
