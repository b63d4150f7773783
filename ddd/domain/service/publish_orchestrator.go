package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

// Sleeper 等待 d，ctx 结束时提前返回
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// PublishOrchestrator 将一个成片推送到目标平台，瞬时错误按指数退避重试
type PublishOrchestrator struct {
	credentials repo.CredentialRepository
	clients     gateway.PlatformClientResolver
	policy      vo.RetryPolicy
	sleep       Sleeper
}

// PublishOption 可选项
type PublishOption func(*PublishOrchestrator)

// WithSleeper 替换等待函数
func WithSleeper(s Sleeper) PublishOption {
	return func(o *PublishOrchestrator) { o.sleep = s }
}

// NewPublishOrchestrator 创建发布编排器
func NewPublishOrchestrator(credentials repo.CredentialRepository, clients gateway.PlatformClientResolver,
	policy vo.RetryPolicy, opts ...PublishOption) *PublishOrchestrator {
	o := &PublishOrchestrator{
		credentials: credentials,
		clients:     clients,
		policy:      policy.Normalize(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Policy 当前重试策略
func (o *PublishOrchestrator) Policy() vo.RetryPolicy { return o.policy }

// Publish 返回的 PublishResult 即完整结果；只有凭证缺失时返回 error
func (o *PublishOrchestrator) Publish(ctx context.Context, cfg vo.PlatformUploadConfig, renditionURL, ownerID string) (*vo.PublishResult, error) {
	cred, err := o.credentials.FindCredential(ctx, ownerID, cfg.Platform)
	if err != nil {
		return nil, err
	}
	if cred.IsExpired(time.Now()) {
		return failedResult(cfg.Platform, 0, vo.Permanent(errors.New("platform credential expired"))), nil
	}

	client, err := o.clients.Client(cfg.Platform)
	if err != nil {
		return failedResult(cfg.Platform, 0, vo.Permanent(err)), nil
	}
	if renditionURL == "" {
		return failedResult(cfg.Platform, 0, vo.Permanent(errors.New("rendition url is empty"))), nil
	}

	req := &gateway.PlatformUploadRequest{
		AccessToken:  cred.AccessToken(),
		Config:       cfg,
		RenditionURL: renditionURL,
	}

	var lastErr error
	attempts := 0
	for i := 0; i < o.policy.MaxAttempts; i++ {
		attempts++
		resp, err := client.UploadVideo(ctx, req)
		if err == nil {
			logger.Info("platform upload succeeded", map[string]interface{}{
				"platform":          cfg.Platform.String(),
				"platform_video_id": resp.PlatformVideoID,
				"attempts":          attempts,
			})
			return &vo.PublishResult{
				Platform:        cfg.Platform,
				Success:         true,
				PlatformVideoID: resp.PlatformVideoID,
				PlatformURL:     resp.URL,
				RemoteStatus:    resp.Status,
				Attempts:        attempts,
			}, nil
		}
		lastErr = err
		kind := vo.KindOf(err)
		logger.Warn("platform upload attempt failed", map[string]interface{}{
			"platform": cfg.Platform.String(),
			"attempt":  attempts,
			"kind":     string(kind),
			"error":    err.Error(),
		})
		if kind != vo.ErrorKindTransient || i == o.policy.MaxAttempts-1 {
			break
		}
		if err := o.sleep(ctx, o.policy.Delay(i)); err != nil {
			lastErr = fmt.Errorf("%w (retry aborted: %v)", lastErr, err)
			break
		}
	}
	return failedResult(cfg.Platform, attempts, lastErr), nil
}

func failedResult(platform vo.Platform, attempts int, err error) *vo.PublishResult {
	return &vo.PublishResult{
		Platform:     platform,
		Success:      false,
		Attempts:     attempts,
		ErrorKind:    vo.KindOf(err),
		ErrorMessage: err.Error(),
	}
}

// RemoteStatus 查询平台侧状态
func (o *PublishOrchestrator) RemoteStatus(ctx context.Context, platform vo.Platform, ownerID, platformVideoID string) (string, error) {
	client, token, err := o.clientFor(ctx, platform, ownerID)
	if err != nil {
		return "", err
	}
	return client.GetStatus(ctx, token, platformVideoID)
}

// Remove 删除平台侧视频
func (o *PublishOrchestrator) Remove(ctx context.Context, platform vo.Platform, ownerID, platformVideoID string) error {
	client, token, err := o.clientFor(ctx, platform, ownerID)
	if err != nil {
		return err
	}
	return client.DeleteVideo(ctx, token, platformVideoID)
}

func (o *PublishOrchestrator) clientFor(ctx context.Context, platform vo.Platform, ownerID string) (gateway.PlatformClient, string, error) {
	cred, err := o.credentials.FindCredential(ctx, ownerID, platform)
	if err != nil {
		return nil, "", err
	}
	client, err := o.clients.Client(platform)
	if err != nil {
		return nil, "", errno.NewBizError(errno.ErrPlatformUnsupported, err)
	}
	return client, cred.AccessToken(), nil
}
