package vo

import (
	"fmt"
	"time"
)

// Privacy 平台可见性
type Privacy string

const (
	PrivacyPublic   Privacy = "public"
	PrivacyUnlisted Privacy = "unlisted"
	PrivacyPrivate  Privacy = "private"
)

// ParsePrivacy 空值默认 public
func ParsePrivacy(s string) (Privacy, error) {
	switch p := Privacy(s); p {
	case "":
		return PrivacyPublic, nil
	case PrivacyPublic, PrivacyUnlisted, PrivacyPrivate:
		return p, nil
	default:
		return "", fmt.Errorf("invalid privacy: %q", s)
	}
}

// PlatformUploadConfig 单个平台的发布参数
type PlatformUploadConfig struct {
	Platform    Platform
	Title       string
	Description string
	Tags        []string
	Privacy     Privacy
}

// PublishResult 一次发布流程的最终结果（成功或失败）
type PublishResult struct {
	Platform        Platform
	Success         bool
	PlatformVideoID string
	PlatformURL     string
	RemoteStatus    string
	Attempts        int
	ErrorKind       ErrorKind
	ErrorMessage    string
}

// RetryPolicy 指数退避：第 i 次失败后等待 BaseDelay * 2^i
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy 3 次尝试，等待 1s、2s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// Normalize 非法值回落到默认
func (p RetryPolicy) Normalize() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// Delay 返回第 attemptIndex（从0开始）次失败后的等待时间
func (p RetryPolicy) Delay(attemptIndex int) time.Duration {
	if attemptIndex < 0 {
		attemptIndex = 0
	}
	if attemptIndex > 30 {
		attemptIndex = 30
	}
	return p.BaseDelay << uint(attemptIndex)
}
