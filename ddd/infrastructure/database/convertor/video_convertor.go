package convertor

import (
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/po"
)

// VideoConvertor 视频转换器
type VideoConvertor struct{}

func NewVideoConvertor() *VideoConvertor {
	return &VideoConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *VideoConvertor) ToEntity(p *po.Video) *entity.Video {
	if p == nil {
		return nil
	}
	src := entity.VideoSource{
		Key:         p.SourceKey,
		URL:         p.SourceURL,
		ContentHash: p.ContentHash,
		SizeBytes:   p.SizeBytes,
		DuplicateOf: p.DuplicateOf,
		Media: vo.MediaInfo{
			DurationMs: p.DurationMs,
			Width:      p.Width,
			Height:     p.Height,
			VideoCodec: p.VideoCodec,
			AudioCodec: p.AudioCodec,
			FPS:        p.FPS,
			BitRate:    p.BitRate,
			FormatName: p.FormatName,
		},
	}
	status := vo.VideoStatus(p.Status)
	if status == "" {
		status = vo.VideoStatusDraft
	}
	return entity.NewVideoWithDetails(p.VideoUUID, p.OwnerUUID, p.Title, p.Description, status, src, p.CreatedAt, p.UpdatedAt)
}

// ToPO 将Entity转换为PO
func (c *VideoConvertor) ToPO(v *entity.Video) *po.Video {
	media := v.Media()
	return &po.Video{
		BaseModel: po.BaseModel{
			CreatedAt: v.CreatedAt(),
			UpdatedAt: v.UpdatedAt(),
		},
		VideoUUID:   v.VideoID(),
		OwnerUUID:   v.OwnerID(),
		Title:       v.Title(),
		Description: v.Description(),
		Status:      v.Status().String(),
		SourceKey:   v.SourceKey(),
		SourceURL:   v.SourceURL(),
		ContentHash: v.ContentHash(),
		SizeBytes:   v.SizeBytes(),
		DurationMs:  media.DurationMs,
		Width:       media.Width,
		Height:      media.Height,
		VideoCodec:  media.VideoCodec,
		AudioCodec:  media.AudioCodec,
		FPS:         media.FPS,
		BitRate:     media.BitRate,
		FormatName:  media.FormatName,
		DuplicateOf: v.DuplicateOf(),
	}
}
