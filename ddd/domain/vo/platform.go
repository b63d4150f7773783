package vo

import (
	"fmt"
	"strings"
)

// Platform 分发目标平台
type Platform string

const (
	PlatformYouTube     Platform = "youtube"
	PlatformTikTok      Platform = "tiktok"
	PlatformInstagram   Platform = "instagram"
	PlatformFacebook    Platform = "facebook"
	PlatformLinkedIn    Platform = "linkedin"
	PlatformTwitter     Platform = "twitter"
	PlatformThreads     Platform = "threads"
	PlatformVimeo       Platform = "vimeo"
	PlatformWordPress   Platform = "wordpress"
	PlatformDailymotion Platform = "dailymotion"
	PlatformNaverClip   Platform = "naver_clip"
)

var allPlatforms = []Platform{
	PlatformYouTube, PlatformTikTok, PlatformInstagram, PlatformFacebook,
	PlatformLinkedIn, PlatformTwitter, PlatformThreads, PlatformVimeo,
	PlatformWordPress, PlatformDailymotion, PlatformNaverClip,
}

var platformAliases = map[string]Platform{
	"x":          PlatformTwitter,
	"naver":      PlatformNaverClip,
	"naverclip":  PlatformNaverClip,
	"naver-clip": PlatformNaverClip,
	"ig":         PlatformInstagram,
	"fb":         PlatformFacebook,
	"yt":         PlatformYouTube,
}

// AllPlatforms 返回全部支持的平台
func AllPlatforms() []Platform {
	out := make([]Platform, len(allPlatforms))
	copy(out, allPlatforms)
	return out
}

// ParsePlatform 大小写不敏感地解析平台名，支持常见别名
func ParsePlatform(s string) (Platform, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	p := Platform(key)
	if p.IsValid() {
		return p, nil
	}
	if alias, ok := platformAliases[key]; ok {
		return alias, nil
	}
	return "", fmt.Errorf("unsupported platform: %q", s)
}

// IsValid 检查平台是否受支持
func (p Platform) IsValid() bool {
	for _, known := range allPlatforms {
		if p == known {
			return true
		}
	}
	return false
}

func (p Platform) String() string {
	return string(p)
}

// DedupePlatforms 去重并保持原顺序
func DedupePlatforms(in []Platform) []Platform {
	seen := make(map[Platform]struct{}, len(in))
	out := make([]Platform, 0, len(in))
	for _, p := range in {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
