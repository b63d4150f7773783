package convertor

import (
	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/infrastructure/database/po"
)

// UploadSessionConvertor 上传会话转换器
type UploadSessionConvertor struct{}

func NewUploadSessionConvertor() *UploadSessionConvertor {
	return &UploadSessionConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *UploadSessionConvertor) ToEntity(p *po.UploadSession) *entity.UploadSession {
	if p == nil {
		return nil
	}
	return entity.NewUploadSessionWithDetails(
		p.VideoUUID,
		p.OwnerUUID,
		p.DeclaredLength,
		p.ReceivedOffset,
		p.TempPath,
		p.ContentType,
		p.Filename,
		p.CreatedAt,
		p.UpdatedAt,
	)
}

// ToPO 将Entity转换为PO
func (c *UploadSessionConvertor) ToPO(s *entity.UploadSession) *po.UploadSession {
	return &po.UploadSession{
		VideoUUID:      s.VideoID(),
		OwnerUUID:      s.OwnerID(),
		DeclaredLength: s.DeclaredLength(),
		ReceivedOffset: s.ReceivedOffset(),
		TempPath:       s.TempSinkPath(),
		Filename:       s.OriginalFilename(),
		ContentType:    s.ContentType(),
		CreatedAt:      s.CreatedAt(),
		UpdatedAt:      s.UpdatedAt(),
	}
}

func (c *UploadSessionConvertor) ToEntities(list []*po.UploadSession) []*entity.UploadSession {
	out := make([]*entity.UploadSession, 0, len(list))
	for _, p := range list {
		out = append(out, c.ToEntity(p))
	}
	return out
}
