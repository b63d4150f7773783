package dto

import (
	"time"

	"distribution-service/ddd/domain/entity"
)

type MediaDto struct {
	VideoCodec string  `json:"video_codec,omitempty"`
	Width      int     `json:"width,omitempty"`
	Height     int     `json:"height,omitempty"`
	FPS        float64 `json:"fps,omitempty"`
	DurationMs int64   `json:"duration_ms,omitempty"`
	AudioCodec string  `json:"audio_codec,omitempty"`
	FormatName string  `json:"format_name,omitempty"`
}

// VideoDto 视频详情
type VideoDto struct {
	VideoID     string    `json:"video_id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	SizeBytes   int64     `json:"size_bytes,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
	Media       *MediaDto `json:"media,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewVideoDto(v *entity.Video) *VideoDto {
	if v == nil {
		return nil
	}
	d := &VideoDto{
		VideoID:     v.VideoID(),
		OwnerID:     v.OwnerID(),
		Title:       v.Title(),
		Description: v.Description(),
		Status:      v.Status().String(),
		SourceURL:   v.SourceURL(),
		ContentHash: v.ContentHash(),
		SizeBytes:   v.SizeBytes(),
		DuplicateOf: v.DuplicateOf(),
		CreatedAt:   v.CreatedAt(),
		UpdatedAt:   v.UpdatedAt(),
	}
	if m := v.Media(); m.HasVideo() {
		d.Media = &MediaDto{
			VideoCodec: m.VideoCodec,
			Width:      m.Width,
			Height:     m.Height,
			FPS:        m.FPS,
			DurationMs: m.DurationMs,
			AudioCodec: m.AudioCodec,
			FormatName: m.FormatName,
		}
	}
	return d
}
