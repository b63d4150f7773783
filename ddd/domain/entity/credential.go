package entity

import (
	"strings"
	"time"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// PlatformCredential 用户在某平台的授权
type PlatformCredential struct {
	ownerID     string
	platform    vo.Platform
	accessToken string
	expiresAt   *time.Time
	updatedAt   time.Time
}

// NewPlatformCredential 创建授权记录
func NewPlatformCredential(ownerID string, platform vo.Platform, accessToken string, expiresAt *time.Time) (*PlatformCredential, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errno.ErrUserUUIDRequired
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, errno.Wrapf(errno.ErrMissingParam, "access_token")
	}
	return &PlatformCredential{
		ownerID:     ownerID,
		platform:    platform,
		accessToken: accessToken,
		expiresAt:   expiresAt,
		updatedAt:   time.Now(),
	}, nil
}

// NewPlatformCredentialWithDetails 从持久化数据重建
func NewPlatformCredentialWithDetails(ownerID string, platform vo.Platform, accessToken string, expiresAt *time.Time, updatedAt time.Time) *PlatformCredential {
	return &PlatformCredential{
		ownerID:     ownerID,
		platform:    platform,
		accessToken: accessToken,
		expiresAt:   expiresAt,
		updatedAt:   updatedAt,
	}
}

func (c *PlatformCredential) OwnerID() string       { return c.ownerID }
func (c *PlatformCredential) Platform() vo.Platform { return c.platform }
func (c *PlatformCredential) AccessToken() string   { return c.accessToken }
func (c *PlatformCredential) ExpiresAt() *time.Time { return c.expiresAt }
func (c *PlatformCredential) UpdatedAt() time.Time  { return c.updatedAt }

// IsExpired 带有效期且已过期
func (c *PlatformCredential) IsExpired(now time.Time) bool {
	return c.expiresAt != nil && !c.expiresAt.After(now)
}
