package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

// VariantOptions 转码编排参数
type VariantOptions struct {
	// MaxConcurrent 同时转码的平台数上限
	MaxConcurrent int
	// ErrorMessageLimit 失败信息最多保留的字符数
	ErrorMessageLimit int
}

// VariantOutcome 单个平台本次编排的结果
type VariantOutcome struct {
	Platform     vo.Platform
	Status       vo.VariantStatus
	Skipped      bool
	ErrorMessage string
}

// VariantOrchestrator 按平台并发驱动成片状态机，平台之间互不影响
type VariantOrchestrator struct {
	variants repo.VariantRepository
	engine   gateway.TranscodeEngine
	specs    vo.SpecTable
	events   gateway.EventPublisher
	opts     VariantOptions
}

// NewVariantOrchestrator 创建转码编排器
func NewVariantOrchestrator(variants repo.VariantRepository, engine gateway.TranscodeEngine, specs vo.SpecTable,
	events gateway.EventPublisher, opts VariantOptions) *VariantOrchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 4
	}
	if opts.ErrorMessageLimit <= 0 {
		opts.ErrorMessageLimit = 500
	}
	if specs == nil {
		specs = vo.DefaultSpecTable()
	}
	return &VariantOrchestrator{variants: variants, engine: engine, specs: specs, events: events, opts: opts}
}

// Spec 查询平台规格
func (o *VariantOrchestrator) Spec(platform vo.Platform) (vo.PlatformSpec, bool) {
	return o.specs.Lookup(platform)
}

// Run 为每个平台确保一个成片。单个平台失败只记录在该平台的 Variant 上
func (o *VariantOrchestrator) Run(ctx context.Context, video *entity.Video, platforms []vo.Platform) ([]VariantOutcome, error) {
	if !video.IsSourceReady() {
		return nil, errno.ErrSourceNotReady
	}
	platforms = vo.DedupePlatforms(platforms)
	if len(platforms) == 0 {
		return nil, errno.ErrPlatformsRequired
	}

	outcomes := make([]VariantOutcome, len(platforms))
	var g errgroup.Group
	g.SetLimit(o.opts.MaxConcurrent)
	for i, platform := range platforms {
		g.Go(func() error {
			outcomes[i] = o.runOne(ctx, video, platform)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes, nil
}

func (o *VariantOrchestrator) runOne(ctx context.Context, video *entity.Video, platform vo.Platform) (out VariantOutcome) {
	out.Platform = platform
	var current *entity.Variant
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("transcode panic: %v", r)
			logger.Error("variant task panicked", map[string]interface{}{
				"video_id": video.VideoID(),
				"platform": platform.String(),
				"panic":    fmt.Sprint(r),
			})
			out.Status, out.ErrorMessage = vo.VariantStatusFailed, msg
			if current != nil && current.Status() == vo.VariantStatusProcessing {
				o.fail(ctx, current, msg)
			}
		}
	}()

	variant, skip, err := o.prepare(ctx, video.VideoID(), platform)
	if err != nil {
		out.Status, out.ErrorMessage = vo.VariantStatusFailed, err.Error()
		logger.Error("prepare variant failed", map[string]interface{}{
			"video_id": video.VideoID(),
			"platform": platform.String(),
			"error":    err.Error(),
		})
		return out
	}
	if skip {
		out.Status, out.Skipped = variant.Status(), true
		return out
	}

	if err := variant.StartProcessing(); err != nil {
		out.Status, out.ErrorMessage = variant.Status(), err.Error()
		return out
	}
	if err := o.variants.CompareAndSave(ctx, variant, vo.VariantStatusPending); err != nil {
		if errors.Is(err, errno.ErrVariantConflict) {
			out.Status, out.Skipped = vo.VariantStatusProcessing, true
			return out
		}
		out.Status, out.ErrorMessage = vo.VariantStatusPending, err.Error()
		return out
	}
	current = variant

	spec, ok := o.specs.Lookup(platform)
	if !ok {
		msg := fmt.Sprintf("no rendition profile for platform %s", platform)
		o.fail(ctx, variant, msg)
		out.Status, out.ErrorMessage = variant.Status(), variant.ErrorMessage()
		return out
	}

	logger.Info("variant transcode started", map[string]interface{}{
		"video_id": video.VideoID(),
		"platform": platform.String(),
		"width":    spec.Width,
		"height":   spec.Height,
	})
	started := time.Now()
	rendition, err := o.engine.Transcode(ctx, &gateway.TranscodeRequest{
		VideoID:          video.VideoID(),
		Platform:         platform,
		SourceKey:        video.SourceKey(),
		SourceURL:        video.SourceURL(),
		SourceDurationMs: video.Media().DurationMs,
		Spec:             spec,
	})
	if err == nil && rendition == nil {
		err = errors.New("transcode engine returned no rendition")
	}
	if err != nil {
		o.fail(ctx, variant, err.Error())
		out.Status, out.ErrorMessage = variant.Status(), variant.ErrorMessage()
		return out
	}

	persistCtx := context.WithoutCancel(ctx)
	if err := variant.Complete(*rendition); err != nil {
		out.Status, out.ErrorMessage = variant.Status(), err.Error()
		return out
	}
	if err := o.variants.CompareAndSave(persistCtx, variant, vo.VariantStatusProcessing); err != nil {
		logger.Error("persist completed variant failed", map[string]interface{}{
			"video_id": video.VideoID(),
			"platform": platform.String(),
			"error":    err.Error(),
		})
		out.Status, out.ErrorMessage = vo.VariantStatusProcessing, err.Error()
		return out
	}
	logger.Info("variant transcode completed", map[string]interface{}{
		"video_id": video.VideoID(),
		"platform": platform.String(),
		"size":     rendition.FileSizeBytes,
		"elapsed":  time.Since(started).String(),
	})
	if err := o.events.Publish(persistCtx, vo.NewVariantReadyEvent(video.VideoID(), platform)); err != nil {
		logger.Error("publish variant ready failed", map[string]interface{}{
			"video_id": video.VideoID(),
			"platform": platform.String(),
			"error":    err.Error(),
		})
	}
	out.Status = variant.Status()
	return out
}

// prepare 查找或创建 PENDING 成片；FAILED 先重置为 PENDING 并持久化
func (o *VariantOrchestrator) prepare(ctx context.Context, videoID string, platform vo.Platform) (*entity.Variant, bool, error) {
	variant, err := o.variants.GetVariant(ctx, videoID, platform)
	if errors.Is(err, errno.ErrVariantNotFound) {
		variant = entity.NewVariant(videoID, platform)
		if err := o.variants.CreateVariant(ctx, variant); err != nil {
			if errors.Is(err, errno.ErrVariantExists) {
				return variant, true, nil
			}
			return nil, false, err
		}
		return variant, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	switch {
	case variant.Status() == vo.VariantStatusCompleted, variant.Status().IsInFlight():
		return variant, true, nil
	case variant.Status() == vo.VariantStatusFailed:
		if err := variant.ResetForRetry(); err != nil {
			return nil, false, err
		}
		if err := o.variants.CompareAndSave(ctx, variant, vo.VariantStatusFailed); err != nil {
			if errors.Is(err, errno.ErrVariantConflict) {
				return variant, true, nil
			}
			return nil, false, err
		}
		return variant, false, nil
	default:
		return nil, false, errno.Wrapf(errno.ErrInvalidVariantStatus, "%s", variant.Status())
	}
}

func (o *VariantOrchestrator) fail(ctx context.Context, variant *entity.Variant, msg string) {
	prev := variant.Status()
	if err := variant.Fail(msg, o.opts.ErrorMessageLimit); err != nil {
		return
	}
	logger.Warn("variant transcode failed", map[string]interface{}{
		"video_id": variant.VideoID(),
		"platform": variant.Platform().String(),
		"error":    variant.ErrorMessage(),
	})
	if err := o.variants.CompareAndSave(context.WithoutCancel(ctx), variant, prev); err != nil {
		logger.Error("persist failed variant failed", map[string]interface{}{
			"video_id": variant.VideoID(),
			"platform": variant.Platform().String(),
			"error":    err.Error(),
		})
	}
}

const staleBatchSize = 200

// RecoverStale 将长时间停留在 PENDING/PROCESSING 的成片标记为 FAILED，之后可显式重试
func (o *VariantOrchestrator) RecoverStale(ctx context.Context, olderThan time.Duration) (int, error) {
	before := time.Now().Add(-olderThan)
	stale, err := o.variants.ListStaleVariants(ctx,
		[]vo.VariantStatus{vo.VariantStatusPending, vo.VariantStatusProcessing}, before, staleBatchSize)
	if err != nil {
		return 0, err
	}
	recovered := 0
	for _, v := range stale {
		prev := v.Status()
		if err := v.Fail(fmt.Sprintf("interrupted: no progress since %s", v.UpdatedAt().Format(time.RFC3339)), o.opts.ErrorMessageLimit); err != nil {
			continue
		}
		if err := o.variants.CompareAndSave(ctx, v, prev); err != nil {
			if !errors.Is(err, errno.ErrVariantConflict) {
				logger.Warn("recover stale variant failed", map[string]interface{}{
					"video_id": v.VideoID(),
					"platform": v.Platform().String(),
					"error":    err.Error(),
				})
			}
			continue
		}
		recovered++
	}
	if recovered > 0 {
		logger.Info("stale variants recovered", map[string]interface{}{"count": recovered})
	}
	return recovered, nil
}
