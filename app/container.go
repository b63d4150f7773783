package app

import (
	"fmt"

	"gorm.io/gorm"

	"distribution-service/ddd/application/app"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/service"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/persistence"
	"distribution-service/ddd/infrastructure/events"
	"distribution-service/ddd/infrastructure/executor"
	"distribution-service/ddd/infrastructure/memory"
	"distribution-service/ddd/infrastructure/platform"
	"distribution-service/ddd/infrastructure/probe"
	"distribution-service/ddd/infrastructure/queue"
	"distribution-service/ddd/infrastructure/storage"
	"distribution-service/internal/resource"
	"distribution-service/pkg/config"
	"distribution-service/pkg/keylock"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
)

// Container 进程内的全部依赖，由 Build 按配置组装
type Container struct {
	Config *config.Config
	DB     *gorm.DB

	Videos       repo.VideoRepository
	Sessions     repo.UploadSessionRepository
	Variants     repo.VariantRepository
	Publications repo.PublicationRepository
	Credentials  repo.CredentialRepository

	Storage gateway.StorageGateway
	Events  gateway.EventPublisher
	Locker  service.KeyLocker

	UploadApp       app.UploadApp
	VideoApp        app.VideoApp
	DistributionApp app.DistributionApp
	PipelineApp     app.PipelineApp
}

// Build 组装仓储、网关、领域服务与应用服务。资源需已打开
func Build(cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}
	if err := c.buildRepositories(); err != nil {
		return nil, err
	}
	if err := c.buildGateways(); err != nil {
		return nil, err
	}
	return c, c.buildApps()
}

func (c *Container) buildRepositories() error {
	switch c.Config.Database.Driver {
	case "memory":
		c.Videos = memory.NewVideoRepo()
		c.Sessions = memory.NewUploadSessionRepo()
		c.Variants = memory.NewVariantRepo()
		c.Publications = memory.NewPublicationRepo()
		c.Credentials = memory.NewCredentialRepo()
		logger.Warn("using in-memory repositories, state is lost on restart")
		return nil
	case "mysql":
		c.DB = resource.DefaultMysqlResource().MainDB()
		if c.DB == nil {
			return fmt.Errorf("mysql resource not opened")
		}
		if c.Config.Database.AutoMigrate {
			if err := persistence.AutoMigrate(c.DB); err != nil {
				return err
			}
		}
		c.Videos = persistence.NewVideoRepository(c.DB)
		c.Sessions = persistence.NewUploadSessionRepository(c.DB)
		c.Variants = persistence.NewVariantRepository(c.DB)
		c.Publications = persistence.NewPublicationRepository(c.DB)
		c.Credentials = persistence.NewCredentialRepository(c.DB)
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", c.Config.Database.Driver)
	}
}

func (c *Container) buildGateways() error {
	cfg := c.Config
	switch cfg.Storage.Backend {
	case "minio":
		c.Storage = storage.NewMinioStorage(resource.DefaultMinioResource())
	case "local":
		local, err := storage.NewLocalStorage(cfg.Storage.LocalRoot, cfg.Public.StorageBase)
		if err != nil {
			return err
		}
		c.Storage = local
	default:
		return fmt.Errorf("unsupported storage backend %q", cfg.Storage.Backend)
	}

	if cfg.Kafka.Enabled {
		c.Events = events.NewKafkaPublisher(nil, cfg.Kafka.Topics)
	} else {
		c.Events = queue.NewQueuePublisher(queue.DefaultEventQueue())
	}

	if cfg.Upload.LockBackend == "redis" {
		c.Locker = resource.DefaultRedisResource().Locker("distribution:lock:", cfg.Upload.LockTTL)
	} else {
		c.Locker = keylock.New()
	}
	return nil
}

func (c *Container) buildApps() error {
	cfg := c.Config
	sink, err := storage.NewLocalSink(cfg.Upload.TempDir)
	if err != nil {
		return err
	}

	store := service.NewUploadSessionStore(c.Sessions, c.Locker, cfg.Upload.LockWait)
	uploads := service.NewUploadService(store, c.Videos, sink, c.Storage,
		probe.NewFFProbe(cfg.Transcode.FFmpeg.ProbePath), c.Events, service.UploadOptions{
			MaxSize:           cfg.Upload.MaxSize,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			SourcePrefix:      cfg.Storage.SourcePrefix,
		})

	specs := vo.DefaultSpecTable().WithOverrides(specOverrides(cfg.Transcode.Profiles))
	transcoder := service.NewVariantOrchestrator(c.Variants, executor.NewFFmpegExecutor(cfg, c.Storage), specs,
		c.Events, service.VariantOptions{
			MaxConcurrent:     cfg.Transcode.MaxConcurrent,
			ErrorMessageLimit: cfg.Transcode.ErrorMessageLimit,
		})

	clients := platform.NewRegistryFromConfig(cfg.Publish)
	publisher := service.NewPublishOrchestrator(c.Credentials, clients, vo.RetryPolicy{
		MaxAttempts: cfg.Publish.MaxAttempts,
		BaseDelay:   cfg.Publish.BaseDelay,
	})

	c.UploadApp = app.NewUploadApp(uploads, cfg.Upload.SessionRetention)
	c.VideoApp = app.NewVideoApp(c.Videos)
	c.DistributionApp = app.NewDistributionApp(c.Videos, c.Variants, c.Publications, c.Credentials, publisher, c.Events)
	c.PipelineApp = app.NewPipelineApp(c.Videos, c.Variants, c.Publications, transcoder, publisher, c.Events, c.Locker)
	return nil
}

// Dependencies 转换为插件使用的依赖容器
func (c *Container) Dependencies() *manager.Dependencies {
	return &manager.Dependencies{
		DB:              c.DB,
		Config:          c.Config,
		UploadApp:       c.UploadApp,
		VideoApp:        c.VideoApp,
		DistributionApp: c.DistributionApp,
		PipelineApp:     c.PipelineApp,
	}
}

// specOverrides 配置中的平台名非法时跳过并告警
func specOverrides(profiles map[string]config.ProfileOverride) map[vo.Platform]vo.SpecOverride {
	out := make(map[vo.Platform]vo.SpecOverride, len(profiles))
	for name, p := range profiles {
		platform, err := vo.ParsePlatform(name)
		if err != nil {
			logger.Warnf("ignoring transcode profile for unknown platform name=%s", name)
			continue
		}
		out[platform] = vo.SpecOverride{
			Width:        p.Width,
			Height:       p.Height,
			VideoBitrate: p.VideoBitrate,
			AudioBitrate: p.AudioBitrate,
			MaxFPS:       p.MaxFPS,
			MaxDuration:  p.MaxDuration,
		}
	}
	return out
}
