package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/service"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

// PipelineApp 消费流水线事件：source.ready 触发转码，variant.ready 触发发布
type PipelineApp interface {
	HandleEvent(ctx context.Context, event vo.PipelineEvent) error
	// RecoverStale 将长时间无进展的成片标记为失败
	RecoverStale(ctx context.Context, olderThan time.Duration) (int, error)
	// RecoverStalePublications 发布进程中途退出后遗留的 publishing 记录标记为失败，之后可显式重试
	RecoverStalePublications(ctx context.Context, olderThan time.Duration) (int, error)
}

const (
	stalePublicationBatch = 200
	// 正在发布的进程持有锁，拿不到说明仍在进行
	staleLockWait = 100 * time.Millisecond
)

type pipelineAppImpl struct {
	videos       repo.VideoRepository
	variants     repo.VariantRepository
	publications repo.PublicationRepository
	transcoder   *service.VariantOrchestrator
	publisher    *service.PublishOrchestrator
	events       gateway.EventPublisher
	locker       service.KeyLocker
}

func NewPipelineApp(videos repo.VideoRepository, variants repo.VariantRepository, publications repo.PublicationRepository,
	transcoder *service.VariantOrchestrator, publisher *service.PublishOrchestrator, events gateway.EventPublisher,
	locker service.KeyLocker) PipelineApp {
	return &pipelineAppImpl{
		videos:       videos,
		variants:     variants,
		publications: publications,
		transcoder:   transcoder,
		publisher:    publisher,
		events:       events,
		locker:       locker,
	}
}

func (a *pipelineAppImpl) HandleEvent(ctx context.Context, event vo.PipelineEvent) error {
	switch event.Type {
	case vo.EventSourceReady:
		return a.handleSourceReady(ctx, event)
	case vo.EventVariantReady:
		return a.handleVariantReady(ctx, event)
	default:
		logger.Warn("unknown pipeline event", map[string]interface{}{
			"type":     string(event.Type),
			"video_id": event.VideoID,
		})
		return nil
	}
}

func (a *pipelineAppImpl) handleSourceReady(ctx context.Context, event vo.PipelineEvent) error {
	video, err := a.videos.GetVideo(ctx, event.VideoID)
	if err != nil {
		return err
	}
	platforms := event.Platforms
	if len(platforms) == 0 {
		if platforms, err = a.pendingPlatforms(ctx, video.VideoID()); err != nil {
			return err
		}
	}
	if len(platforms) == 0 {
		logger.Info("no distribution requested yet", map[string]interface{}{"video_id": video.VideoID()})
		return nil
	}

	outcomes, err := a.transcoder.Run(ctx, video, platforms)
	if err != nil {
		return err
	}
	failed := 0
	for _, out := range outcomes {
		if out.Status == vo.VariantStatusFailed {
			failed++
		}
		// 已有成片的平台不会再由转码编排发出 variant.ready
		if out.Skipped && out.Status == vo.VariantStatusCompleted {
			if err := a.events.Publish(ctx, vo.NewVariantReadyEvent(video.VideoID(), out.Platform)); err != nil {
				logger.Error("publish variant ready failed", map[string]interface{}{
					"video_id": video.VideoID(),
					"platform": out.Platform.String(),
					"error":    err.Error(),
				})
			}
		}
	}
	logger.Info("variants processed", map[string]interface{}{
		"video_id":  video.VideoID(),
		"platforms": len(outcomes),
		"failed":    failed,
	})
	return nil
}

func (a *pipelineAppImpl) pendingPlatforms(ctx context.Context, videoID string) ([]vo.Platform, error) {
	pubs, err := a.publications.ListPublicationsByVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	platforms := make([]vo.Platform, 0, len(pubs))
	for _, p := range pubs {
		if p.Status() == vo.PublicationStatusPending {
			platforms = append(platforms, p.Platform())
		}
	}
	return platforms, nil
}

func (a *pipelineAppImpl) handleVariantReady(ctx context.Context, event vo.PipelineEvent) error {
	if a.locker != nil {
		unlock, err := a.locker.Lock(ctx, publishLockKey(event.VideoID, event.Platform))
		if err != nil {
			return errno.NewBizError(errno.ErrLockTimeout, err)
		}
		defer unlock()
	}

	video, err := a.videos.GetVideo(ctx, event.VideoID)
	if err != nil {
		return err
	}
	variant, err := a.variants.GetVariant(ctx, event.VideoID, event.Platform)
	if err != nil {
		return err
	}
	if variant.Status() != vo.VariantStatusCompleted {
		return errno.Wrapf(errno.ErrInvalidVariantStatus, "%s is %s", event.Platform, variant.Status())
	}
	pub, err := a.publications.GetPublication(ctx, event.VideoID, event.Platform)
	if errors.Is(err, errno.ErrPublicationNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !pub.Status().CanPublish() {
		logger.Debug("publication not publishable", map[string]interface{}{
			"video_id": event.VideoID,
			"platform": event.Platform.String(),
			"status":   pub.Status().String(),
		})
		return nil
	}

	if err := pub.StartPublishing(); err != nil {
		return err
	}
	if err := a.publications.SavePublication(ctx, pub); err != nil {
		return err
	}
	return a.publish(ctx, video, variant, pub)
}

func (a *pipelineAppImpl) publish(ctx context.Context, video *entity.Video, variant *entity.Variant, pub *entity.Publication) error {
	persistCtx := context.WithoutCancel(ctx)
	result, err := a.publisher.Publish(ctx, pub.Config(), variant.RenditionURL(), video.OwnerID())
	if err != nil {
		pub.Fail(err.Error())
		logger.Warn("publication failed before upload", map[string]interface{}{
			"video_id": video.VideoID(),
			"platform": pub.Platform().String(),
			"error":    err.Error(),
		})
		return a.publications.SavePublication(persistCtx, pub)
	}
	pub.ApplyResult(result)
	if !result.Success {
		logger.Warn("publication failed", map[string]interface{}{
			"video_id": video.VideoID(),
			"platform": pub.Platform().String(),
			"attempts": result.Attempts,
			"kind":     string(result.ErrorKind),
			"error":    result.ErrorMessage,
		})
	}
	return a.publications.SavePublication(persistCtx, pub)
}

func (a *pipelineAppImpl) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	return a.transcoder.RecoverStale(ctx, olderThan)
}

func (a *pipelineAppImpl) RecoverStalePublications(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, nil
	}
	before := time.Now().Add(-olderThan)
	stale, err := a.publications.ListStalePublishing(ctx, before, stalePublicationBatch)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, candidate := range stale {
		ok, err := a.interruptPublication(ctx, candidate.VideoID(), candidate.Platform(), before)
		if err != nil {
			logger.Warn("recover stale publication failed", map[string]interface{}{
				"video_id": candidate.VideoID(),
				"platform": candidate.Platform().String(),
				"error":    err.Error(),
			})
			continue
		}
		if ok {
			recovered++
		}
	}
	if recovered > 0 {
		logger.Info("stale publications recovered", map[string]interface{}{"count": recovered})
	}
	return recovered, nil
}

func (a *pipelineAppImpl) interruptPublication(ctx context.Context, videoID string, platform vo.Platform, before time.Time) (bool, error) {
	if a.locker != nil {
		lockCtx, cancel := context.WithTimeout(ctx, staleLockWait)
		unlock, err := a.locker.Lock(lockCtx, publishLockKey(videoID, platform))
		cancel()
		if err != nil {
			return false, nil
		}
		defer unlock()
	}
	// 加锁后重新读取，期间可能已被重新发布
	pub, err := a.publications.GetPublication(ctx, videoID, platform)
	if err != nil {
		return false, err
	}
	if pub.Status() != vo.PublicationStatusPublishing || !pub.UpdatedAt().Before(before) {
		return false, nil
	}
	msg := fmt.Sprintf("interrupted: no result since %s", pub.UpdatedAt().Format(time.RFC3339))
	if err := pub.Interrupt(msg); err != nil {
		return false, nil
	}
	if err := a.publications.SavePublication(ctx, pub); err != nil {
		return false, err
	}
	return true, nil
}

func publishLockKey(videoID string, platform vo.Platform) string {
	return fmt.Sprintf("publish:%s:%s", videoID, platform)
}
