package convertor

import (
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/po"
)

// VideoVariantConvertor 平台成片转换器
type VideoVariantConvertor struct{}

func NewVideoVariantConvertor() *VideoVariantConvertor {
	return &VideoVariantConvertor{}
}

// ToEntity 将PO转换为Entity，未知状态按 FAILED 处理
func (c *VideoVariantConvertor) ToEntity(p *po.VideoVariant) *entity.Variant {
	if p == nil {
		return nil
	}
	status, err := vo.NewVariantStatusFromString(p.Status)
	if err != nil {
		status = vo.VariantStatusFailed
	}
	return entity.NewVariantWithDetails(entity.VariantDetails{
		ID:            p.Id,
		VideoID:       p.VideoUUID,
		Platform:      vo.Platform(p.Platform),
		Status:        status,
		RenditionKey:  p.RenditionKey,
		RenditionURL:  p.RenditionURL,
		FileSizeBytes: p.FileSizeBytes,
		Width:         p.Width,
		Height:        p.Height,
		ErrorMessage:  p.ErrorMessage,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		StartedAt:     p.StartedAt,
		CompletedAt:   p.CompletedAt,
	})
}

// ToPO 将Entity转换为PO
func (c *VideoVariantConvertor) ToPO(v *entity.Variant) *po.VideoVariant {
	return &po.VideoVariant{
		BaseModel: po.BaseModel{
			Id:        v.ID(),
			CreatedAt: v.CreatedAt(),
			UpdatedAt: v.UpdatedAt(),
		},
		VideoUUID:     v.VideoID(),
		Platform:      v.Platform().String(),
		Status:        v.Status().String(),
		RenditionKey:  v.RenditionKey(),
		RenditionURL:  v.RenditionURL(),
		FileSizeBytes: v.FileSizeBytes(),
		Width:         v.Width(),
		Height:        v.Height(),
		ErrorMessage:  v.ErrorMessage(),
		StartedAt:     v.StartedAt(),
		CompletedAt:   v.CompletedAt(),
	}
}

func (c *VideoVariantConvertor) ToEntities(list []*po.VideoVariant) []*entity.Variant {
	out := make([]*entity.Variant, 0, len(list))
	for _, p := range list {
		out = append(out, c.ToEntity(p))
	}
	return out
}
