package po

// Video 视频持久化对象
type Video struct {
	BaseModel
	VideoUUID   string  `gorm:"column:video_uuid;type:varchar(36);uniqueIndex" json:"video_uuid"`
	OwnerUUID   string  `gorm:"column:owner_uuid;type:varchar(36);index:idx_owner_hash" json:"owner_uuid"`
	Title       string  `gorm:"column:title;type:varchar(255)" json:"title"`
	Description string  `gorm:"column:description;type:text" json:"description"`
	Status      string  `gorm:"column:status;type:varchar(20);index" json:"status"` // draft, uploading, ready
	SourceKey   string  `gorm:"column:source_key;type:varchar(512)" json:"source_key"`
	SourceURL   string  `gorm:"column:source_url;type:varchar(1024)" json:"source_url"`
	ContentHash string  `gorm:"column:content_hash;type:char(64);index:idx_owner_hash" json:"content_hash"`
	SizeBytes   int64   `gorm:"column:size_bytes" json:"size_bytes"`
	DurationMs  int64   `gorm:"column:duration_ms" json:"duration_ms"`
	Width       int     `gorm:"column:width" json:"width"`
	Height      int     `gorm:"column:height" json:"height"`
	VideoCodec  string  `gorm:"column:video_codec;type:varchar(32)" json:"video_codec"`
	AudioCodec  string  `gorm:"column:audio_codec;type:varchar(32)" json:"audio_codec"`
	FPS         float64 `gorm:"column:fps" json:"fps"`
	BitRate     int64   `gorm:"column:bit_rate" json:"bit_rate"`
	FormatName  string  `gorm:"column:format_name;type:varchar(64)" json:"format_name"`
	DuplicateOf string  `gorm:"column:duplicate_of;type:varchar(36)" json:"duplicate_of"`
}

// TableName 指定表名
func (Video) TableName() string {
	return "videos"
}
