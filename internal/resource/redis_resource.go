package resource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"distribution-service/pkg/assert"
	"distribution-service/pkg/config"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/redisclient"
)

var (
	redisResourceOnce sync.Once
	redisSingleton    *RedisResource
)

// RedisResource 共享 Redis 连接，redis.enabled 或 upload.lock_backend=redis 时打开
type RedisResource struct {
	client *redisclient.Client
}

// DefaultRedisResource 获取Redis资源单例
func DefaultRedisResource() *RedisResource {
	assert.NotCircular()
	redisResourceOnce.Do(func() {
		redisSingleton = &RedisResource{}
	})
	assert.NotNil(redisSingleton)
	return redisSingleton
}

func (r *RedisResource) MustOpen() {
	if r.client != nil {
		return
	}
	cfg := config.GetGlobalConfig()
	if cfg == nil {
		panic("global config not initialized before RedisResource")
	}
	client, err := redisclient.New(cfg.Redis)
	if err != nil {
		panic(fmt.Sprintf("failed to open redis: %v", err))
	}
	r.client = client
	logger.Info("Redis resource initialized", map[string]interface{}{
		"addr": client.Addr(),
		"db":   cfg.Redis.DB,
	})
}

// Opened 是否已建立连接
func (r *RedisResource) Opened() bool {
	return r.client != nil
}

// Locker 上传会话与发布共用的分布式锁
func (r *RedisResource) Locker(prefix string, ttl time.Duration) *redisclient.Locker {
	if r.client == nil {
		panic("redis resource not opened")
	}
	return r.client.NewLocker(prefix, ttl)
}

// Ping 健康检查
func (r *RedisResource) Ping(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis resource not opened")
	}
	return r.client.Ping(ctx)
}

func (r *RedisResource) Close() {
	if r.client != nil {
		_ = r.client.Close()
		r.client = nil
	}
}

// RedisResourcePlugin Redis资源插件
type RedisResourcePlugin struct{}

func (p *RedisResourcePlugin) Name() string { return NameRedis }

func (p *RedisResourcePlugin) MustCreateResource() manager.Resource {
	return DefaultRedisResource()
}
