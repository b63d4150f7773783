package cqe

import (
	"io"

	"distribution-service/pkg/errno"
)

// CreateUploadReq 对应协议 POST，长度和元数据来自请求头
type CreateUploadReq struct {
	VideoID  string
	OwnerID  string
	Length   int64
	Metadata map[string]string
}

func (req *CreateUploadReq) Validate() error {
	if req.VideoID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if req.OwnerID == "" {
		return errno.ErrUserUUIDRequired
	}
	if req.Length <= 0 {
		return errno.ErrUploadLengthInvalid
	}
	return nil
}

// AppendUploadReq 对应协议 PATCH
type AppendUploadReq struct {
	VideoID       string
	OwnerID       string
	Offset        int64
	ContentLength int64
	Body          io.Reader
}

func (req *AppendUploadReq) Validate() error {
	if req.VideoID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if req.OwnerID == "" {
		return errno.ErrUserUUIDRequired
	}
	if req.Offset < 0 {
		return errno.ErrOffsetConflict
	}
	return nil
}
