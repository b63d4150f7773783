package app

import (
	"context"
	"errors"
	"sort"

	"distribution-service/ddd/application/cqe"
	"distribution-service/ddd/application/dto"
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/service"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

type DistributionApp interface {
	// RequestDistribution 登记多平台发布；源视频已就绪时立即触发转码
	RequestDistribution(ctx context.Context, req *cqe.RequestDistributionReq) (*dto.DistributionDto, error)
	// ListStatus 每个平台的成片与发布状态
	ListStatus(ctx context.Context, req *cqe.QueryVideoReq) (*dto.DistributionDto, error)
	// RetryVariant 重新转码失败的成片
	RetryVariant(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error)
	// RetryPublish 重新发布失败的平台
	RetryPublish(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error)
	// RemoteStatus 查询平台侧状态并记录
	RemoteStatus(ctx context.Context, req *cqe.PlatformActionReq) (*dto.RemoteStatusDto, error)
	// Unpublish 删除平台侧视频
	Unpublish(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error)
	// SaveCredential 保存调用者的平台授权
	SaveCredential(ctx context.Context, req *cqe.SaveCredentialReq) (*dto.CredentialDto, error)
}

type distributionAppImpl struct {
	videos       repo.VideoRepository
	variants     repo.VariantRepository
	publications repo.PublicationRepository
	credentials  repo.CredentialRepository
	publisher    *service.PublishOrchestrator
	events       gateway.EventPublisher
}

func NewDistributionApp(videos repo.VideoRepository, variants repo.VariantRepository, publications repo.PublicationRepository,
	credentials repo.CredentialRepository, publisher *service.PublishOrchestrator, events gateway.EventPublisher) DistributionApp {
	return &distributionAppImpl{
		videos:       videos,
		variants:     variants,
		publications: publications,
		credentials:  credentials,
		publisher:    publisher,
		events:       events,
	}
}

func (a *distributionAppImpl) RequestDistribution(ctx context.Context, req *cqe.RequestDistributionReq) (*dto.DistributionDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	configs, err := req.UploadConfigs()
	if err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}

	accepted := make([]vo.Platform, 0, len(configs))
	for _, cfg := range configs {
		if cfg.Title == "" {
			cfg.Title = video.Title()
		}
		pub, err := a.publications.GetPublication(ctx, video.VideoID(), cfg.Platform)
		switch {
		case errors.Is(err, errno.ErrPublicationNotFound):
			pub = entity.NewPublication(video.VideoID(), cfg)
		case err != nil:
			return nil, err
		default:
			if err := pub.UpdateRequest(cfg); err != nil {
				// 发布中或已发布的平台保持原状
				logger.Info("distribution target skipped", map[string]interface{}{
					"video_id": video.VideoID(),
					"platform": cfg.Platform.String(),
					"status":   pub.Status().String(),
				})
				continue
			}
		}
		if err := a.publications.UpsertPublication(ctx, pub); err != nil {
			return nil, err
		}
		accepted = append(accepted, cfg.Platform)
	}

	if video.IsSourceReady() && len(accepted) > 0 {
		if err := a.emit(ctx, vo.NewSourceReadyEvent(video.VideoID(), video.OwnerID(), accepted...)); err != nil {
			return nil, err
		}
	}
	logger.Info("distribution requested", map[string]interface{}{
		"video_id":     video.VideoID(),
		"platforms":    len(accepted),
		"source_ready": video.IsSourceReady(),
	})
	return a.buildStatus(ctx, video)
}

func (a *distributionAppImpl) ListStatus(ctx context.Context, req *cqe.QueryVideoReq) (*dto.DistributionDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	return a.buildStatus(ctx, video)
}

func (a *distributionAppImpl) RetryVariant(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error) {
	platform, err := req.Validate()
	if err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	variant, err := a.variants.GetVariant(ctx, video.VideoID(), platform)
	if err != nil {
		return nil, err
	}
	if variant.Status() != vo.VariantStatusFailed {
		return nil, errno.Wrapf(errno.ErrInvalidVariantStatus, "%s is %s", platform, variant.Status())
	}
	// 重置由转码编排在消费事件时完成
	if err := a.emit(ctx, vo.NewSourceReadyEvent(video.VideoID(), video.OwnerID(), platform)); err != nil {
		return nil, err
	}
	return a.platformStatus(ctx, video.VideoID(), platform)
}

func (a *distributionAppImpl) RetryPublish(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error) {
	platform, err := req.Validate()
	if err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	pub, err := a.publications.GetPublication(ctx, video.VideoID(), platform)
	if err != nil {
		return nil, err
	}
	variant, err := a.variants.GetVariant(ctx, video.VideoID(), platform)
	if err != nil {
		return nil, err
	}
	if variant.Status() != vo.VariantStatusCompleted {
		return nil, errno.Wrapf(errno.ErrInvalidVariantStatus, "%s is %s", platform, variant.Status())
	}
	if err := pub.ResetForRetry(); err != nil {
		return nil, err
	}
	if err := a.publications.SavePublication(ctx, pub); err != nil {
		return nil, err
	}
	if err := a.emit(ctx, vo.NewVariantReadyEvent(video.VideoID(), platform)); err != nil {
		return nil, err
	}
	return dto.NewPlatformStatusDto(platform, variant, pub), nil
}

func (a *distributionAppImpl) RemoteStatus(ctx context.Context, req *cqe.PlatformActionReq) (*dto.RemoteStatusDto, error) {
	platform, err := req.Validate()
	if err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	pub, err := a.publications.GetPublication(ctx, video.VideoID(), platform)
	if err != nil {
		return nil, err
	}
	if pub.PlatformVideoID() == "" {
		return nil, errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", platform, pub.Status())
	}
	status, err := a.publisher.RemoteStatus(ctx, platform, video.OwnerID(), pub.PlatformVideoID())
	if err != nil {
		return nil, platformError(err)
	}
	pub.UpdateRemoteStatus(status)
	if err := a.publications.SavePublication(ctx, pub); err != nil {
		return nil, err
	}
	return &dto.RemoteStatusDto{
		Platform:        platform.String(),
		PlatformVideoID: pub.PlatformVideoID(),
		RemoteStatus:    status,
	}, nil
}

func (a *distributionAppImpl) Unpublish(ctx context.Context, req *cqe.PlatformActionReq) (*dto.PlatformStatusDto, error) {
	platform, err := req.Validate()
	if err != nil {
		return nil, err
	}
	video, err := ownedVideo(ctx, a.videos, req.VideoID, req.OwnerID)
	if err != nil {
		return nil, err
	}
	pub, err := a.publications.GetPublication(ctx, video.VideoID(), platform)
	if err != nil {
		return nil, err
	}
	if pub.Status() == vo.PublicationStatusRemoved {
		return a.platformStatus(ctx, video.VideoID(), platform)
	}
	if pub.Status() != vo.PublicationStatusPublished {
		return nil, errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", platform, pub.Status())
	}
	if err := a.publisher.Remove(ctx, platform, video.OwnerID(), pub.PlatformVideoID()); err != nil {
		return nil, platformError(err)
	}
	if err := pub.MarkRemoved(); err != nil {
		return nil, err
	}
	if err := a.publications.SavePublication(ctx, pub); err != nil {
		return nil, err
	}
	logger.Info("publication removed", map[string]interface{}{
		"video_id":          video.VideoID(),
		"platform":          platform.String(),
		"platform_video_id": pub.PlatformVideoID(),
	})
	return a.platformStatus(ctx, video.VideoID(), platform)
}

func (a *distributionAppImpl) SaveCredential(ctx context.Context, req *cqe.SaveCredentialReq) (*dto.CredentialDto, error) {
	platform, err := req.Validate()
	if err != nil {
		return nil, err
	}
	cred, err := entity.NewPlatformCredential(req.OwnerID, platform, req.AccessToken, req.ExpiresAt)
	if err != nil {
		return nil, err
	}
	if err := a.credentials.SaveCredential(ctx, cred); err != nil {
		return nil, err
	}
	logger.Info("platform credential saved", map[string]interface{}{
		"owner_id": req.OwnerID,
		"platform": platform.String(),
	})
	return dto.NewCredentialDto(cred), nil
}

func (a *distributionAppImpl) emit(ctx context.Context, event vo.PipelineEvent) error {
	if err := a.events.Publish(ctx, event); err != nil {
		logger.Error("emit pipeline event failed", map[string]interface{}{
			"video_id": event.VideoID,
			"type":     string(event.Type),
			"error":    err.Error(),
		})
		if errors.Is(err, errno.ErrQueueFull) {
			return errno.ErrQueueFull
		}
		return errno.NewBizError(errno.ErrInternalServer, err)
	}
	return nil
}

func (a *distributionAppImpl) platformStatus(ctx context.Context, videoID string, platform vo.Platform) (*dto.PlatformStatusDto, error) {
	variant, err := a.variants.GetVariant(ctx, videoID, platform)
	if err != nil && !errors.Is(err, errno.ErrVariantNotFound) {
		return nil, err
	}
	pub, err := a.publications.GetPublication(ctx, videoID, platform)
	if err != nil && !errors.Is(err, errno.ErrPublicationNotFound) {
		return nil, err
	}
	return dto.NewPlatformStatusDto(platform, variant, pub), nil
}

// buildStatus 按平台合并成片与发布记录
func (a *distributionAppImpl) buildStatus(ctx context.Context, video *entity.Video) (*dto.DistributionDto, error) {
	variants, err := a.variants.ListVariantsByVideo(ctx, video.VideoID())
	if err != nil {
		return nil, err
	}
	pubs, err := a.publications.ListPublicationsByVideo(ctx, video.VideoID())
	if err != nil {
		return nil, err
	}
	byVariant := make(map[vo.Platform]*entity.Variant, len(variants))
	platforms := make([]vo.Platform, 0, len(variants)+len(pubs))
	for _, v := range variants {
		byVariant[v.Platform()] = v
		platforms = append(platforms, v.Platform())
	}
	byPub := make(map[vo.Platform]*entity.Publication, len(pubs))
	for _, p := range pubs {
		byPub[p.Platform()] = p
		platforms = append(platforms, p.Platform())
	}
	platforms = vo.DedupePlatforms(platforms)
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })

	out := &dto.DistributionDto{
		VideoID:     video.VideoID(),
		VideoStatus: video.Status().String(),
		Platforms:   make([]*dto.PlatformStatusDto, 0, len(platforms)),
	}
	for _, p := range platforms {
		out.Platforms = append(out.Platforms, dto.NewPlatformStatusDto(p, byVariant[p], byPub[p]))
	}
	return out, nil
}

// platformError 平台调用失败统一为 502，已带业务码的错误原样返回
func platformError(err error) error {
	var biz *errno.BizError
	var e *errno.Errno
	if errors.As(err, &biz) || errors.As(err, &e) {
		return err
	}
	return errno.NewBizError(errno.ErrPlatformRequestFailed, err)
}
