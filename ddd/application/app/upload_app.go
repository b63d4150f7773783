package app

import (
	"context"
	"time"

	"distribution-service/ddd/application/cqe"
	"distribution-service/ddd/application/dto"
	"distribution-service/ddd/domain/service"
	"distribution-service/pkg/logger"
)

type UploadApp interface {
	// Capabilities 协议能力（最大长度、允许的扩展名）
	Capabilities() *dto.UploadCapabilitiesDto
	// CreateUpload 创建上传会话
	CreateUpload(ctx context.Context, req *cqe.CreateUploadReq) (*dto.UploadSessionDto, error)
	// QueryOffset 查询已接收偏移
	QueryOffset(ctx context.Context, videoID, ownerID string) (*dto.UploadSessionDto, error)
	// AppendChunk 追加数据，最后一块会触发入库
	AppendChunk(ctx context.Context, req *cqe.AppendUploadReq) (*dto.UploadSessionDto, error)
	// CancelUpload 取消上传，幂等
	CancelUpload(ctx context.Context, videoID, ownerID string) error
	// SweepExpired 清理超过保留期的会话
	SweepExpired(ctx context.Context) (int, error)
}

type uploadAppImpl struct {
	uploads   *service.UploadService
	retention time.Duration
}

func NewUploadApp(uploads *service.UploadService, retention time.Duration) UploadApp {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &uploadAppImpl{uploads: uploads, retention: retention}
}

func (a *uploadAppImpl) Capabilities() *dto.UploadCapabilitiesDto {
	return &dto.UploadCapabilitiesDto{
		MaxSize:           a.uploads.MaxSize(),
		AllowedExtensions: a.uploads.AllowedExtensions(),
	}
}

func (a *uploadAppImpl) CreateUpload(ctx context.Context, req *cqe.CreateUploadReq) (*dto.UploadSessionDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	session, err := a.uploads.CreateSession(ctx, &service.CreateSessionCommand{
		VideoID:  req.VideoID,
		OwnerID:  req.OwnerID,
		Length:   req.Length,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	return dto.NewUploadSessionDto(session), nil
}

func (a *uploadAppImpl) QueryOffset(ctx context.Context, videoID, ownerID string) (*dto.UploadSessionDto, error) {
	session, err := a.uploads.QueryOffset(ctx, videoID, ownerID)
	if err != nil {
		return nil, err
	}
	return dto.NewUploadSessionDto(session), nil
}

func (a *uploadAppImpl) AppendChunk(ctx context.Context, req *cqe.AppendUploadReq) (*dto.UploadSessionDto, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	res, err := a.uploads.AppendChunk(ctx, &service.AppendChunkCommand{
		VideoID:       req.VideoID,
		OwnerID:       req.OwnerID,
		Offset:        req.Offset,
		ContentLength: req.ContentLength,
		Body:          req.Body,
	})
	if err != nil {
		return nil, err
	}
	return &dto.UploadSessionDto{
		VideoID:   req.VideoID,
		Offset:    res.Offset,
		Length:    res.Length,
		Completed: res.Completed,
	}, nil
}

func (a *uploadAppImpl) CancelUpload(ctx context.Context, videoID, ownerID string) error {
	return a.uploads.CancelSession(ctx, videoID, ownerID)
}

func (a *uploadAppImpl) SweepExpired(ctx context.Context) (int, error) {
	n, err := a.uploads.SweepExpired(ctx, a.retention)
	if err != nil {
		logger.Error("sweep expired uploads failed", map[string]interface{}{"error": err.Error()})
		return n, err
	}
	return n, nil
}
