package cqe

import (
	"strings"
	"time"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// DistributionTarget 单个平台的发布参数
type DistributionTarget struct {
	Platform    string   `json:"platform" binding:"required"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Privacy     string   `json:"privacy"`
}

// RequestDistributionReq 为视频登记多平台发布
type RequestDistributionReq struct {
	VideoID string               `json:"-"`
	OwnerID string               `json:"-"`
	Targets []DistributionTarget `json:"targets" binding:"required"`
}

func (req *RequestDistributionReq) Validate() error {
	if req.VideoID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if req.OwnerID == "" {
		return errno.ErrUserUUIDRequired
	}
	if len(req.Targets) == 0 {
		return errno.ErrPlatformsRequired
	}
	return nil
}

// UploadConfigs 转换为领域参数，同一平台出现多次时以最后一次为准
func (req *RequestDistributionReq) UploadConfigs() ([]vo.PlatformUploadConfig, error) {
	index := make(map[vo.Platform]int, len(req.Targets))
	configs := make([]vo.PlatformUploadConfig, 0, len(req.Targets))
	for _, t := range req.Targets {
		platform, err := vo.ParsePlatform(t.Platform)
		if err != nil {
			return nil, errno.Wrapf(errno.ErrPlatformUnsupported, "%s", t.Platform)
		}
		privacy, err := vo.ParsePrivacy(strings.ToLower(strings.TrimSpace(t.Privacy)))
		if err != nil {
			return nil, errno.NewBizError(errno.ErrInvalidParam, err)
		}
		cfg := vo.PlatformUploadConfig{
			Platform:    platform,
			Title:       strings.TrimSpace(t.Title),
			Description: t.Description,
			Tags:        cleanTags(t.Tags),
			Privacy:     privacy,
		}
		if i, ok := index[platform]; ok {
			configs[i] = cfg
			continue
		}
		index[platform] = len(configs)
		configs = append(configs, cfg)
	}
	return configs, nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || strings.Contains(tag, ",") {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// PlatformActionReq 针对单个平台的操作（重试、查询远端状态、下架）
type PlatformActionReq struct {
	VideoID  string `uri:"video_id" binding:"required"`
	Platform string `uri:"platform" binding:"required"`
	OwnerID  string `json:"-"`
}

func (req *PlatformActionReq) Validate() (vo.Platform, error) {
	if req.VideoID == "" {
		return "", errno.ErrVideoUUIDRequired
	}
	if req.OwnerID == "" {
		return "", errno.ErrUserUUIDRequired
	}
	platform, err := vo.ParsePlatform(req.Platform)
	if err != nil {
		return "", errno.Wrapf(errno.ErrPlatformUnsupported, "%s", req.Platform)
	}
	return platform, nil
}

// SaveCredentialReq 保存平台授权
type SaveCredentialReq struct {
	Platform    string     `json:"-"`
	OwnerID     string     `json:"-"`
	AccessToken string     `json:"access_token" binding:"required"`
	ExpiresAt   *time.Time `json:"expires_at"`
}

func (req *SaveCredentialReq) Validate() (vo.Platform, error) {
	if req.OwnerID == "" {
		return "", errno.ErrUserUUIDRequired
	}
	if strings.TrimSpace(req.AccessToken) == "" {
		return "", errno.Wrapf(errno.ErrMissingParam, "access_token")
	}
	platform, err := vo.ParsePlatform(req.Platform)
	if err != nil {
		return "", errno.Wrapf(errno.ErrPlatformUnsupported, "%s", req.Platform)
	}
	return platform, nil
}
