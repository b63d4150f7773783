package entity

import (
	"time"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// Publication 发布请求及其结果，(videoID, platform) 唯一
type Publication struct {
	id              uint64
	videoID         string
	config          vo.PlatformUploadConfig
	status          vo.PublicationStatus
	platformVideoID string
	platformURL     string
	remoteStatus    string
	attempts        int
	errorMessage    string
	publishedAt     *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

// NewPublication 登记一个平台的发布请求
func NewPublication(videoID string, cfg vo.PlatformUploadConfig) *Publication {
	now := time.Now()
	return &Publication{
		videoID:   videoID,
		config:    copyConfig(cfg),
		status:    vo.PublicationStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// PublicationDetails 重建所需的持久化字段
type PublicationDetails struct {
	ID              uint64
	VideoID         string
	Config          vo.PlatformUploadConfig
	Status          vo.PublicationStatus
	PlatformVideoID string
	PlatformURL     string
	RemoteStatus    string
	Attempts        int
	ErrorMessage    string
	PublishedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewPublicationWithDetails 从持久化数据重建
func NewPublicationWithDetails(d PublicationDetails) *Publication {
	return &Publication{
		id:              d.ID,
		videoID:         d.VideoID,
		config:          copyConfig(d.Config),
		status:          d.Status,
		platformVideoID: d.PlatformVideoID,
		platformURL:     d.PlatformURL,
		remoteStatus:    d.RemoteStatus,
		attempts:        d.Attempts,
		errorMessage:    d.ErrorMessage,
		publishedAt:     d.PublishedAt,
		createdAt:       d.CreatedAt,
		updatedAt:       d.UpdatedAt,
	}
}

// Getters
func (p *Publication) ID() uint64                      { return p.id }
func (p *Publication) VideoID() string                 { return p.videoID }
func (p *Publication) Platform() vo.Platform           { return p.config.Platform }
func (p *Publication) Config() vo.PlatformUploadConfig { return copyConfig(p.config) }
func (p *Publication) Status() vo.PublicationStatus    { return p.status }
func (p *Publication) PlatformVideoID() string         { return p.platformVideoID }
func (p *Publication) PlatformURL() string             { return p.platformURL }
func (p *Publication) RemoteStatus() string            { return p.remoteStatus }
func (p *Publication) Attempts() int                   { return p.attempts }
func (p *Publication) ErrorMessage() string            { return p.errorMessage }
func (p *Publication) PublishedAt() *time.Time         { return p.publishedAt }
func (p *Publication) CreatedAt() time.Time            { return p.createdAt }
func (p *Publication) UpdatedAt() time.Time            { return p.updatedAt }

// SetID 持久化后回填主键
func (p *Publication) SetID(id uint64) { p.id = id }

// UpdateRequest 更新发布参数；已发布的记录不允许改动
func (p *Publication) UpdateRequest(cfg vo.PlatformUploadConfig) error {
	if p.status == vo.PublicationStatusPublished || p.status == vo.PublicationStatusPublishing {
		return errno.Wrapf(errno.ErrInvalidPublishStatus, "%s already %s", p.config.Platform, p.status)
	}
	p.config = copyConfig(cfg)
	p.status = vo.PublicationStatusPending
	p.errorMessage = ""
	p.updatedAt = time.Now()
	return nil
}

// StartPublishing pending/failed -> publishing
func (p *Publication) StartPublishing() error {
	if !p.status.CanPublish() {
		return errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", p.config.Platform, p.status)
	}
	p.status = vo.PublicationStatusPublishing
	p.updatedAt = time.Now()
	return nil
}

// ApplyResult 记录发布结果
func (p *Publication) ApplyResult(r *vo.PublishResult) {
	now := time.Now()
	p.attempts += r.Attempts
	p.updatedAt = now
	if r.Success {
		p.status = vo.PublicationStatusPublished
		p.platformVideoID = r.PlatformVideoID
		p.platformURL = r.PlatformURL
		p.remoteStatus = r.RemoteStatus
		p.errorMessage = ""
		p.publishedAt = &now
		return
	}
	p.status = vo.PublicationStatusFailed
	p.errorMessage = r.ErrorMessage
}

// Fail 发布流程外的失败（凭证缺失、成片缺失）
func (p *Publication) Fail(message string) {
	p.status = vo.PublicationStatusFailed
	p.errorMessage = message
	p.updatedAt = time.Now()
}

// Interrupt publishing -> failed，发布进程中途退出后由清理任务调用
func (p *Publication) Interrupt(message string) error {
	if p.status != vo.PublicationStatusPublishing {
		return errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", p.config.Platform, p.status)
	}
	p.Fail(message)
	return nil
}

// ResetForRetry failed -> pending
func (p *Publication) ResetForRetry() error {
	if p.status != vo.PublicationStatusFailed {
		return errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", p.config.Platform, p.status)
	}
	p.status = vo.PublicationStatusPending
	p.errorMessage = ""
	p.updatedAt = time.Now()
	return nil
}

// UpdateRemoteStatus 记录平台侧状态
func (p *Publication) UpdateRemoteStatus(status string) {
	p.remoteStatus = status
	p.updatedAt = time.Now()
}

// MarkRemoved 平台侧已删除
func (p *Publication) MarkRemoved() error {
	if p.status != vo.PublicationStatusPublished {
		return errno.Wrapf(errno.ErrInvalidPublishStatus, "%s is %s", p.config.Platform, p.status)
	}
	p.status = vo.PublicationStatusRemoved
	p.updatedAt = time.Now()
	return nil
}

// Clone 返回副本
func (p *Publication) Clone() *Publication {
	c := *p
	c.config = copyConfig(p.config)
	return &c
}

func copyConfig(cfg vo.PlatformUploadConfig) vo.PlatformUploadConfig {
	if cfg.Tags != nil {
		cfg.Tags = append([]string(nil), cfg.Tags...)
	}
	return cfg
}
