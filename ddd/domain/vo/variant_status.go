package vo

import "fmt"

// VariantStatus 平台成片状态
type VariantStatus string

const (
	// VariantStatusPending 待转码
	VariantStatusPending VariantStatus = "PENDING"
	// VariantStatusProcessing 转码中
	VariantStatusProcessing VariantStatus = "PROCESSING"
	// VariantStatusCompleted 已完成
	VariantStatusCompleted VariantStatus = "COMPLETED"
	// VariantStatusFailed 失败，等待显式重试
	VariantStatusFailed VariantStatus = "FAILED"
)

// NewVariantStatusFromString 解析状态字符串
func NewVariantStatusFromString(s string) (VariantStatus, error) {
	st := VariantStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("invalid variant status: %q", s)
	}
	return st, nil
}

// IsValid 检查状态是否有效
func (s VariantStatus) IsValid() bool {
	switch s {
	case VariantStatusPending, VariantStatusProcessing, VariantStatusCompleted, VariantStatusFailed:
		return true
	default:
		return false
	}
}

// String 返回状态字符串
func (s VariantStatus) String() string {
	return string(s)
}

// IsFinalStatus COMPLETED 与 FAILED 为终态（FAILED 可被重试重置）
func (s VariantStatus) IsFinalStatus() bool {
	return s == VariantStatusCompleted || s == VariantStatusFailed
}

// IsInFlight 已入队或正在转码
func (s VariantStatus) IsInFlight() bool {
	return s == VariantStatusPending || s == VariantStatusProcessing
}

// CanTransitionTo 检查是否可以转换到目标状态
func (s VariantStatus) CanTransitionTo(target VariantStatus) bool {
	switch s {
	case VariantStatusPending:
		return target == VariantStatusProcessing || target == VariantStatusFailed
	case VariantStatusProcessing:
		return target == VariantStatusCompleted || target == VariantStatusFailed
	case VariantStatusFailed:
		return target == VariantStatusPending
	default:
		return false
	}
}
