package po

import "time"

// VideoVariant 平台成片持久化对象，(video_uuid, platform) 唯一
type VideoVariant struct {
	BaseModel
	VideoUUID     string     `gorm:"column:video_uuid;type:varchar(36);uniqueIndex:uk_video_platform" json:"video_uuid"`
	Platform      string     `gorm:"column:platform;type:varchar(32);uniqueIndex:uk_video_platform" json:"platform"`
	Status        string     `gorm:"column:status;type:varchar(20);index:idx_status_updated" json:"status"` // PENDING, PROCESSING, COMPLETED, FAILED
	RenditionKey  string     `gorm:"column:rendition_key;type:varchar(512)" json:"rendition_key"`
	RenditionURL  string     `gorm:"column:rendition_url;type:varchar(1024)" json:"rendition_url"`
	FileSizeBytes int64      `gorm:"column:file_size_bytes" json:"file_size_bytes"`
	Width         int        `gorm:"column:width" json:"width"`
	Height        int        `gorm:"column:height" json:"height"`
	ErrorMessage  string     `gorm:"column:error_message;type:varchar(1024)" json:"error_message"`
	StartedAt     *time.Time `gorm:"column:started_at" json:"started_at"`
	CompletedAt   *time.Time `gorm:"column:completed_at" json:"completed_at"`
}

// TableName 指定表名
func (VideoVariant) TableName() string {
	return "video_variants"
}
