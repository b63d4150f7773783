package redisclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"distribution-service/pkg/config"
)

const (
	defaultDialTimeout = 5 * time.Second
	defaultIOTimeout   = 3 * time.Second
)

// Client 共享的 go-redis 连接池，目前只承载跨进程的上传/发布锁
type Client struct {
	native *redis.Client
	addr   string
}

// New 按配置建立连接池，并立即 PING 一次确认可用
func New(cfg config.RedisConfig) (*Client, error) {
	native := redis.NewClient(options(cfg))
	ctx, cancel := context.WithTimeout(context.Background(), orDefault(cfg.DialTimeout, defaultDialTimeout))
	defer cancel()
	if err := native.Ping(ctx).Err(); err != nil {
		_ = native.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.GetRedisAddr(), err)
	}
	return &Client{native: native, addr: cfg.GetRedisAddr()}, nil
}

func options(cfg config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:         cfg.GetRedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  orDefault(cfg.DialTimeout, defaultDialTimeout),
		ReadTimeout:  orDefault(cfg.ReadTimeout, defaultIOTimeout),
		WriteTimeout: orDefault(cfg.WriteTimeout, defaultIOTimeout),
	}
	if cfg.EnableTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewLocker 在共享连接池上创建按 key 的分布式锁
func (c *Client) NewLocker(prefix string, ttl time.Duration) *Locker {
	return NewLocker(c.native, prefix, ttl)
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.native.Ping(ctx).Err()
}

func (c *Client) Addr() string { return c.addr }

// Raw 暴露底层客户端
func (c *Client) Raw() *redis.Client {
	return c.native
}

func (c *Client) Close() error {
	return c.native.Close()
}

func orDefault(v, fallback time.Duration) time.Duration {
	if v <= 0 {
		return fallback
	}
	return v
}
