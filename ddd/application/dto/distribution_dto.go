package dto

import (
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
)

// VariantDto 平台成片状态
type VariantDto struct {
	Status        string     `json:"status"`
	RenditionURL  string     `json:"rendition_url,omitempty"`
	FileSizeBytes int64      `json:"file_size_bytes,omitempty"`
	Width         int        `json:"width,omitempty"`
	Height        int        `json:"height,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// PublicationDto 平台发布状态
type PublicationDto struct {
	Status          string     `json:"status"`
	Title           string     `json:"title"`
	Privacy         string     `json:"privacy"`
	PlatformVideoID string     `json:"platform_video_id,omitempty"`
	PlatformURL     string     `json:"platform_url,omitempty"`
	RemoteStatus    string     `json:"remote_status,omitempty"`
	Attempts        int        `json:"attempts"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
}

// PlatformStatusDto 单个平台的成片与发布状态
type PlatformStatusDto struct {
	Platform    string          `json:"platform"`
	Variant     *VariantDto     `json:"variant,omitempty"`
	Publication *PublicationDto `json:"publication,omitempty"`
}

// DistributionDto 视频在各平台的分发状态
type DistributionDto struct {
	VideoID     string               `json:"video_id"`
	VideoStatus string               `json:"video_status"`
	Platforms   []*PlatformStatusDto `json:"platforms"`
}

func NewVariantDto(v *entity.Variant) *VariantDto {
	if v == nil {
		return nil
	}
	return &VariantDto{
		Status:        v.Status().String(),
		RenditionURL:  v.RenditionURL(),
		FileSizeBytes: v.FileSizeBytes(),
		Width:         v.Width(),
		Height:        v.Height(),
		ErrorMessage:  v.ErrorMessage(),
		StartedAt:     v.StartedAt(),
		CompletedAt:   v.CompletedAt(),
	}
}

func NewPublicationDto(p *entity.Publication) *PublicationDto {
	if p == nil {
		return nil
	}
	cfg := p.Config()
	return &PublicationDto{
		Status:          p.Status().String(),
		Title:           cfg.Title,
		Privacy:         string(cfg.Privacy),
		PlatformVideoID: p.PlatformVideoID(),
		PlatformURL:     p.PlatformURL(),
		RemoteStatus:    p.RemoteStatus(),
		Attempts:        p.Attempts(),
		ErrorMessage:    p.ErrorMessage(),
		PublishedAt:     p.PublishedAt(),
	}
}

// NewPlatformStatusDto 成片或发布记录可以只有其一
func NewPlatformStatusDto(platform vo.Platform, v *entity.Variant, p *entity.Publication) *PlatformStatusDto {
	return &PlatformStatusDto{
		Platform:    platform.String(),
		Variant:     NewVariantDto(v),
		Publication: NewPublicationDto(p),
	}
}

// RemoteStatusDto 平台侧状态
type RemoteStatusDto struct {
	Platform        string `json:"platform"`
	PlatformVideoID string `json:"platform_video_id"`
	RemoteStatus    string `json:"remote_status"`
}

// CredentialDto 不回传 token
type CredentialDto struct {
	Platform  string     `json:"platform"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func NewCredentialDto(c *entity.PlatformCredential) *CredentialDto {
	if c == nil {
		return nil
	}
	return &CredentialDto{
		Platform:  c.Platform().String(),
		ExpiresAt: c.ExpiresAt(),
		UpdatedAt: c.UpdatedAt(),
	}
}
