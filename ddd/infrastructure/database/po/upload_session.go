package po

import "time"

// UploadSession 上传会话持久化对象
type UploadSession struct {
	VideoUUID      string    `gorm:"column:video_uuid;type:varchar(36);primaryKey" json:"video_uuid"`
	OwnerUUID      string    `gorm:"column:owner_uuid;type:varchar(36);index" json:"owner_uuid"`
	DeclaredLength int64     `gorm:"column:declared_length;not null" json:"declared_length"`
	ReceivedOffset int64     `gorm:"column:received_offset;not null;default:0" json:"received_offset"`
	TempPath       string    `gorm:"column:temp_path;type:varchar(512)" json:"temp_path"`
	Filename       string    `gorm:"column:filename;type:varchar(255)" json:"filename"`
	ContentType    string    `gorm:"column:content_type;type:varchar(128)" json:"content_type"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt      time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// TableName 指定表名
func (UploadSession) TableName() string {
	return "upload_sessions"
}
