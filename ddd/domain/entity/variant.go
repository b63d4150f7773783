package entity

import (
	"time"
	"unicode/utf8"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// Variant 某个视频在某个平台上的成片，(videoID, platform) 唯一
type Variant struct {
	id            uint64
	videoID       string
	platform      vo.Platform
	status        vo.VariantStatus
	renditionKey  string
	renditionURL  string
	fileSizeBytes int64
	width         int
	height        int
	errorMessage  string
	createdAt     time.Time
	updatedAt     time.Time
	startedAt     *time.Time
	completedAt   *time.Time
}

// NewVariant 创建待转码的成片
func NewVariant(videoID string, platform vo.Platform) *Variant {
	now := time.Now()
	return &Variant{
		videoID:   videoID,
		platform:  platform,
		status:    vo.VariantStatusPending,
		createdAt: now,
		updatedAt: now,
	}
}

// VariantDetails 重建所需的持久化字段
type VariantDetails struct {
	ID            uint64
	VideoID       string
	Platform      vo.Platform
	Status        vo.VariantStatus
	RenditionKey  string
	RenditionURL  string
	FileSizeBytes int64
	Width         int
	Height        int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// NewVariantWithDetails 从持久化数据重建
func NewVariantWithDetails(d VariantDetails) *Variant {
	return &Variant{
		id:            d.ID,
		videoID:       d.VideoID,
		platform:      d.Platform,
		status:        d.Status,
		renditionKey:  d.RenditionKey,
		renditionURL:  d.RenditionURL,
		fileSizeBytes: d.FileSizeBytes,
		width:         d.Width,
		height:        d.Height,
		errorMessage:  d.ErrorMessage,
		createdAt:     d.CreatedAt,
		updatedAt:     d.UpdatedAt,
		startedAt:     d.StartedAt,
		completedAt:   d.CompletedAt,
	}
}

// Getters
func (v *Variant) ID() uint64               { return v.id }
func (v *Variant) VideoID() string          { return v.videoID }
func (v *Variant) Platform() vo.Platform    { return v.platform }
func (v *Variant) Status() vo.VariantStatus { return v.status }
func (v *Variant) RenditionKey() string     { return v.renditionKey }
func (v *Variant) RenditionURL() string     { return v.renditionURL }
func (v *Variant) FileSizeBytes() int64     { return v.fileSizeBytes }
func (v *Variant) Width() int               { return v.width }
func (v *Variant) Height() int              { return v.height }
func (v *Variant) ErrorMessage() string     { return v.errorMessage }
func (v *Variant) CreatedAt() time.Time     { return v.createdAt }
func (v *Variant) UpdatedAt() time.Time     { return v.updatedAt }
func (v *Variant) StartedAt() *time.Time    { return v.startedAt }
func (v *Variant) CompletedAt() *time.Time  { return v.completedAt }

// SetID 持久化后回填主键
func (v *Variant) SetID(id uint64) { v.id = id }

func (v *Variant) transition(target vo.VariantStatus) error {
	if !v.status.CanTransitionTo(target) {
		return errno.Wrapf(errno.ErrInvalidVariantStatus, "%s: %s -> %s", v.platform, v.status, target)
	}
	v.status = target
	v.updatedAt = time.Now()
	return nil
}

// StartProcessing PENDING -> PROCESSING
func (v *Variant) StartProcessing() error {
	if err := v.transition(vo.VariantStatusProcessing); err != nil {
		return err
	}
	now := v.updatedAt
	v.startedAt = &now
	return nil
}

// Complete PROCESSING -> COMPLETED
func (v *Variant) Complete(r vo.Rendition) error {
	if err := v.transition(vo.VariantStatusCompleted); err != nil {
		return err
	}
	v.renditionKey = r.ObjectKey
	v.renditionURL = r.URL
	v.fileSizeBytes = r.FileSizeBytes
	v.width = r.Width
	v.height = r.Height
	v.errorMessage = ""
	now := v.updatedAt
	v.completedAt = &now
	return nil
}

// Fail -> FAILED，错误信息截断到 limit 个字符
func (v *Variant) Fail(message string, limit int) error {
	if err := v.transition(vo.VariantStatusFailed); err != nil {
		return err
	}
	v.errorMessage = TruncateMessage(message, limit)
	now := v.updatedAt
	v.completedAt = &now
	return nil
}

// ResetForRetry FAILED -> PENDING，清空错误与产出
func (v *Variant) ResetForRetry() error {
	if err := v.transition(vo.VariantStatusPending); err != nil {
		return err
	}
	v.errorMessage = ""
	v.renditionKey = ""
	v.renditionURL = ""
	v.fileSizeBytes = 0
	v.width = 0
	v.height = 0
	v.startedAt = nil
	v.completedAt = nil
	return nil
}

// Clone 返回副本
func (v *Variant) Clone() *Variant {
	c := *v
	return &c
}

// TruncateMessage 按字符截断，limit<=0 不截断
func TruncateMessage(msg string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(msg) <= limit {
		return msg
	}
	runes := []rune(msg)
	return string(runes[:limit])
}
