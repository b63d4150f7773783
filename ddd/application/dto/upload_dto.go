package dto

import "distribution-service/ddd/domain/entity"

// UploadSessionDto 上传进度
type UploadSessionDto struct {
	VideoID   string `json:"video_id"`
	Offset    int64  `json:"offset"`
	Length    int64  `json:"length"`
	Completed bool   `json:"completed"`
}

func NewUploadSessionDto(s *entity.UploadSession) *UploadSessionDto {
	if s == nil {
		return nil
	}
	return &UploadSessionDto{
		VideoID:   s.VideoID(),
		Offset:    s.ReceivedOffset(),
		Length:    s.DeclaredLength(),
		Completed: s.IsComplete(),
	}
}

// UploadCapabilitiesDto 协议能力声明
type UploadCapabilitiesDto struct {
	MaxSize           int64
	AllowedExtensions []string
}
