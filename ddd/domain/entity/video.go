package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

// Video 视频聚合：归属、源文件与探测信息
type Video struct {
	videoID     string
	ownerID     string
	title       string
	description string
	status      vo.VideoStatus
	sourceKey   string
	sourceURL   string
	contentHash string
	sizeBytes   int64
	media       vo.MediaInfo
	duplicateOf string
	createdAt   time.Time
	updatedAt   time.Time
}

// NewVideo 创建草稿视频
func NewVideo(ownerID, title, description string) (*Video, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, errno.ErrUserUUIDRequired
	}
	now := time.Now()
	return &Video{
		videoID:     uuid.NewString(),
		ownerID:     ownerID,
		title:       strings.TrimSpace(title),
		description: description,
		status:      vo.VideoStatusDraft,
		createdAt:   now,
		updatedAt:   now,
	}, nil
}

// VideoSource 源文件信息，用于重建
type VideoSource struct {
	Key         string
	URL         string
	ContentHash string
	SizeBytes   int64
	Media       vo.MediaInfo
	DuplicateOf string
}

// NewVideoWithDetails 从持久化数据重建
func NewVideoWithDetails(videoID, ownerID, title, description string, status vo.VideoStatus, src VideoSource, createdAt, updatedAt time.Time) *Video {
	return &Video{
		videoID:     videoID,
		ownerID:     ownerID,
		title:       title,
		description: description,
		status:      status,
		sourceKey:   src.Key,
		sourceURL:   src.URL,
		contentHash: src.ContentHash,
		sizeBytes:   src.SizeBytes,
		media:       src.Media,
		duplicateOf: src.DuplicateOf,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

// Getters
func (v *Video) VideoID() string        { return v.videoID }
func (v *Video) OwnerID() string        { return v.ownerID }
func (v *Video) Title() string          { return v.title }
func (v *Video) Description() string    { return v.description }
func (v *Video) Status() vo.VideoStatus { return v.status }
func (v *Video) SourceKey() string      { return v.sourceKey }
func (v *Video) SourceURL() string      { return v.sourceURL }
func (v *Video) ContentHash() string    { return v.contentHash }
func (v *Video) SizeBytes() int64       { return v.sizeBytes }
func (v *Video) Media() vo.MediaInfo    { return v.media }
func (v *Video) DuplicateOf() string    { return v.duplicateOf }
func (v *Video) CreatedAt() time.Time   { return v.createdAt }
func (v *Video) UpdatedAt() time.Time   { return v.updatedAt }

// Source 源文件信息
func (v *Video) Source() VideoSource {
	return VideoSource{
		Key:         v.sourceKey,
		URL:         v.sourceURL,
		ContentHash: v.contentHash,
		SizeBytes:   v.sizeBytes,
		Media:       v.media,
		DuplicateOf: v.duplicateOf,
	}
}

// IsOwnedBy 归属检查
func (v *Video) IsOwnedBy(ownerID string) bool {
	return ownerID != "" && v.ownerID == ownerID
}

// IsSourceReady 源文件已持久化
func (v *Video) IsSourceReady() bool {
	return v.status == vo.VideoStatusReady && v.sourceKey != ""
}

// MarkUploading 开始上传
func (v *Video) MarkUploading() error {
	if v.IsSourceReady() {
		return errno.ErrSourceAlreadyUploaded
	}
	v.status = vo.VideoStatusUploading
	v.updatedAt = time.Now()
	return nil
}

// ResetToDraft 上传取消或过期后回到草稿
func (v *Video) ResetToDraft() {
	if v.IsSourceReady() {
		return
	}
	v.status = vo.VideoStatusDraft
	v.updatedAt = time.Now()
}

// AttachSource 绑定源文件，只允许一次
func (v *Video) AttachSource(src VideoSource) error {
	if v.IsSourceReady() {
		return errno.ErrSourceAlreadyUploaded
	}
	if src.Key == "" || src.ContentHash == "" {
		return errno.Wrapf(errno.ErrInvalidParam, "source key and hash are required")
	}
	v.sourceKey = src.Key
	v.sourceURL = src.URL
	v.contentHash = src.ContentHash
	v.sizeBytes = src.SizeBytes
	v.media = src.Media
	v.duplicateOf = src.DuplicateOf
	v.status = vo.VideoStatusReady
	v.updatedAt = time.Now()
	return nil
}

// Clone 返回副本
func (v *Video) Clone() *Video {
	c := *v
	return &c
}
