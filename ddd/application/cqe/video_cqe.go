package cqe

import (
	"strings"

	"distribution-service/pkg/errno"
)

// CreateVideoReq 创建视频草稿
type CreateVideoReq struct {
	OwnerID     string `json:"-"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (req *CreateVideoReq) Validate() error {
	if req.OwnerID == "" {
		return errno.ErrUserUUIDRequired
	}
	if strings.TrimSpace(req.Title) == "" {
		return errno.Wrapf(errno.ErrMissingParam, "title")
	}
	return nil
}

// QueryVideoReq 查询视频
type QueryVideoReq struct {
	VideoID string `uri:"video_id" binding:"required"`
	OwnerID string `json:"-"`
}

func (req *QueryVideoReq) Validate() error {
	if req.VideoID == "" {
		return errno.ErrVideoUUIDRequired
	}
	if req.OwnerID == "" {
		return errno.ErrUserUUIDRequired
	}
	return nil
}
