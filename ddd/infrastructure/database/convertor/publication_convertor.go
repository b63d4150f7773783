package convertor

import (
	"strings"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/po"
)

// PublicationConvertor 发布记录与授权转换器
type PublicationConvertor struct{}

func NewPublicationConvertor() *PublicationConvertor {
	return &PublicationConvertor{}
}

// ToEntity 将PO转换为Entity
func (c *PublicationConvertor) ToEntity(p *po.PlatformPublication) *entity.Publication {
	if p == nil {
		return nil
	}
	privacy, err := vo.ParsePrivacy(p.Privacy)
	if err != nil {
		privacy = vo.PrivacyPrivate
	}
	return entity.NewPublicationWithDetails(entity.PublicationDetails{
		ID:      p.Id,
		VideoID: p.VideoUUID,
		Config: vo.PlatformUploadConfig{
			Platform:    vo.Platform(p.Platform),
			Title:       p.Title,
			Description: p.Description,
			Tags:        splitTags(p.Tags),
			Privacy:     privacy,
		},
		Status:          vo.PublicationStatus(p.Status),
		PlatformVideoID: p.PlatformVideoID,
		PlatformURL:     p.PlatformURL,
		RemoteStatus:    p.RemoteStatus,
		Attempts:        p.Attempts,
		ErrorMessage:    p.ErrorMessage,
		PublishedAt:     p.PublishedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	})
}

// ToPO 将Entity转换为PO
func (c *PublicationConvertor) ToPO(pub *entity.Publication) *po.PlatformPublication {
	cfg := pub.Config()
	return &po.PlatformPublication{
		BaseModel: po.BaseModel{
			Id:        pub.ID(),
			CreatedAt: pub.CreatedAt(),
			UpdatedAt: pub.UpdatedAt(),
		},
		VideoUUID:       pub.VideoID(),
		Platform:        cfg.Platform.String(),
		Title:           cfg.Title,
		Description:     cfg.Description,
		Tags:            strings.Join(cfg.Tags, ","),
		Privacy:         string(cfg.Privacy),
		Status:          pub.Status().String(),
		PlatformVideoID: pub.PlatformVideoID(),
		PlatformURL:     pub.PlatformURL(),
		RemoteStatus:    pub.RemoteStatus(),
		Attempts:        pub.Attempts(),
		ErrorMessage:    pub.ErrorMessage(),
		PublishedAt:     pub.PublishedAt(),
	}
}

func (c *PublicationConvertor) ToEntities(list []*po.PlatformPublication) []*entity.Publication {
	out := make([]*entity.Publication, 0, len(list))
	for _, p := range list {
		out = append(out, c.ToEntity(p))
	}
	return out
}

// CredentialToEntity 授权PO转Entity
func (c *PublicationConvertor) CredentialToEntity(p *po.PlatformCredential) *entity.PlatformCredential {
	if p == nil {
		return nil
	}
	return entity.NewPlatformCredentialWithDetails(p.OwnerUUID, vo.Platform(p.Platform), p.AccessToken, p.ExpiresAt, p.UpdatedAt)
}

// CredentialToPO 授权Entity转PO
func (c *PublicationConvertor) CredentialToPO(cred *entity.PlatformCredential) *po.PlatformCredential {
	return &po.PlatformCredential{
		BaseModel: po.BaseModel{
			CreatedAt: cred.UpdatedAt(),
			UpdatedAt: cred.UpdatedAt(),
		},
		OwnerUUID:   cred.OwnerID(),
		Platform:    cred.Platform().String(),
		AccessToken: cred.AccessToken(),
		ExpiresAt:   cred.ExpiresAt(),
	}
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
