package po

import "time"

// PlatformPublication 平台发布记录
type PlatformPublication struct {
	BaseModel
	VideoUUID       string     `gorm:"column:video_uuid;type:varchar(36);uniqueIndex:uk_pub_video_platform" json:"video_uuid"`
	Platform        string     `gorm:"column:platform;type:varchar(32);uniqueIndex:uk_pub_video_platform" json:"platform"`
	Title           string     `gorm:"column:title;type:varchar(255)" json:"title"`
	Description     string     `gorm:"column:description;type:text" json:"description"`
	Tags            string     `gorm:"column:tags;type:varchar(1024)" json:"tags"` // 逗号分隔
	Privacy         string     `gorm:"column:privacy;type:varchar(16)" json:"privacy"`
	Status          string     `gorm:"column:status;type:varchar(20);index" json:"status"`
	PlatformVideoID string     `gorm:"column:platform_video_id;type:varchar(255)" json:"platform_video_id"`
	PlatformURL     string     `gorm:"column:platform_url;type:varchar(1024)" json:"platform_url"`
	RemoteStatus    string     `gorm:"column:remote_status;type:varchar(64)" json:"remote_status"`
	Attempts        int        `gorm:"column:attempts;default:0" json:"attempts"`
	ErrorMessage    string     `gorm:"column:error_message;type:varchar(1024)" json:"error_message"`
	PublishedAt     *time.Time `gorm:"column:published_at" json:"published_at"`
}

// TableName 指定表名
func (PlatformPublication) TableName() string {
	return "platform_publications"
}

// PlatformCredential 用户平台授权
type PlatformCredential struct {
	BaseModel
	OwnerUUID   string     `gorm:"column:owner_uuid;type:varchar(36);uniqueIndex:uk_owner_platform" json:"owner_uuid"`
	Platform    string     `gorm:"column:platform;type:varchar(32);uniqueIndex:uk_owner_platform" json:"platform"`
	AccessToken string     `gorm:"column:access_token;type:text" json:"-"`
	ExpiresAt   *time.Time `gorm:"column:expires_at" json:"expires_at"`
}

// TableName 指定表名
func (PlatformCredential) TableName() string {
	return "platform_credentials"
}
