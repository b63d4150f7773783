package vo

import "time"

// EventType 流水线事件类型
type EventType string

const (
	// EventSourceReady 源视频已持久化，可以开始转码
	EventSourceReady EventType = "source.ready"
	// EventVariantReady 某平台成片已完成，可以发布
	EventVariantReady EventType = "variant.ready"
)

// PipelineEvent 流水线阶段之间传递的事件
type PipelineEvent struct {
	Type     EventType `json:"type"`
	VideoID  string    `json:"video_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	Platform Platform  `json:"platform,omitempty"`
	// Platforms 仅对 source.ready 有效，为空表示按已登记的发布请求
	Platforms  []Platform `json:"platforms,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewSourceReadyEvent 构造 source.ready 事件
func NewSourceReadyEvent(videoID, ownerID string, platforms ...Platform) PipelineEvent {
	return PipelineEvent{
		Type:       EventSourceReady,
		VideoID:    videoID,
		OwnerID:    ownerID,
		Platforms:  platforms,
		OccurredAt: time.Now(),
	}
}

// NewVariantReadyEvent 构造 variant.ready 事件
func NewVariantReadyEvent(videoID string, platform Platform) PipelineEvent {
	return PipelineEvent{
		Type:       EventVariantReady,
		VideoID:    videoID,
		Platform:   platform,
		OccurredAt: time.Now(),
	}
}

// Key 分区键，保证同一视频的事件有序
func (e PipelineEvent) Key() string {
	return e.VideoID
}
