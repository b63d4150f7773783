package entity

import (
	"path/filepath"
	"strings"
	"time"

	"distribution-service/pkg/errno"
)

// UploadSession 断点续传会话，一个视频同时最多一个
type UploadSession struct {
	videoID          string
	ownerID          string
	declaredLength   int64
	receivedOffset   int64
	tempSinkPath     string
	contentType      string
	originalFilename string
	createdAt        time.Time
	updatedAt        time.Time
}

// NewUploadSession 创建新会话，receivedOffset 从 0 开始
func NewUploadSession(videoID, ownerID string, declaredLength int64, sinkPath, contentType, filename string, now time.Time) (*UploadSession, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errno.ErrVideoUUIDRequired
	}
	if declaredLength <= 0 {
		return nil, errno.ErrUploadLengthInvalid
	}
	return &UploadSession{
		videoID:          videoID,
		ownerID:          ownerID,
		declaredLength:   declaredLength,
		tempSinkPath:     sinkPath,
		contentType:      contentType,
		originalFilename: filename,
		createdAt:        now,
		updatedAt:        now,
	}, nil
}

// NewUploadSessionWithDetails 从持久化数据重建
func NewUploadSessionWithDetails(videoID, ownerID string, declaredLength, receivedOffset int64, sinkPath, contentType, filename string, createdAt, updatedAt time.Time) *UploadSession {
	return &UploadSession{
		videoID:          videoID,
		ownerID:          ownerID,
		declaredLength:   declaredLength,
		receivedOffset:   receivedOffset,
		tempSinkPath:     sinkPath,
		contentType:      contentType,
		originalFilename: filename,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}

// Getters
func (s *UploadSession) VideoID() string          { return s.videoID }
func (s *UploadSession) OwnerID() string          { return s.ownerID }
func (s *UploadSession) DeclaredLength() int64    { return s.declaredLength }
func (s *UploadSession) ReceivedOffset() int64    { return s.receivedOffset }
func (s *UploadSession) TempSinkPath() string     { return s.tempSinkPath }
func (s *UploadSession) ContentType() string      { return s.contentType }
func (s *UploadSession) OriginalFilename() string { return s.originalFilename }
func (s *UploadSession) CreatedAt() time.Time     { return s.createdAt }
func (s *UploadSession) UpdatedAt() time.Time     { return s.updatedAt }

// Remaining 距离声明长度还差多少字节
func (s *UploadSession) Remaining() int64 {
	return s.declaredLength - s.receivedOffset
}

// IsComplete 已收齐全部字节
func (s *UploadSession) IsComplete() bool {
	return s.receivedOffset == s.declaredLength
}

// IsOwnedBy 会话属于该用户
func (s *UploadSession) IsOwnedBy(ownerID string) bool {
	return s.ownerID == ownerID
}

// Extension 原始文件扩展名（小写，不含点）
func (s *UploadSession) Extension() string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(s.originalFilename)), ".")
}

// Advance 推进偏移量，不能越过声明长度
func (s *UploadSession) Advance(n int64, now time.Time) error {
	if n < 0 || s.receivedOffset+n > s.declaredLength {
		return errno.ErrPayloadTooLarge
	}
	s.receivedOffset += n
	s.updatedAt = now
	return nil
}

// ExpiredAt 会话创建时间早于 now-maxAge 即视为过期
func (s *UploadSession) ExpiredAt(now time.Time, maxAge time.Duration) bool {
	return s.createdAt.Before(now.Add(-maxAge))
}

// Clone 返回副本
func (s *UploadSession) Clone() *UploadSession {
	c := *s
	return &c
}
