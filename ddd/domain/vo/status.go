package vo

// VideoStatus 视频聚合状态
type VideoStatus string

const (
	VideoStatusDraft     VideoStatus = "draft"
	VideoStatusUploading VideoStatus = "uploading"
	VideoStatusReady     VideoStatus = "ready"
)

func (s VideoStatus) String() string { return string(s) }

// PublicationStatus 平台发布状态
type PublicationStatus string

const (
	PublicationStatusPending    PublicationStatus = "pending"
	PublicationStatusPublishing PublicationStatus = "publishing"
	PublicationStatusPublished  PublicationStatus = "published"
	PublicationStatusFailed     PublicationStatus = "failed"
	PublicationStatusRemoved    PublicationStatus = "removed"
)

func (s PublicationStatus) String() string { return string(s) }

// CanPublish 待发布或失败的记录可以进入发布流程
func (s PublicationStatus) CanPublish() bool {
	return s == PublicationStatusPending || s == PublicationStatusFailed
}
