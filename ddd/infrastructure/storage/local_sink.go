package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"distribution-service/ddd/domain/gateway"
	"distribution-service/pkg/errno"
)

// LocalSink 上传临时文件，按视频一份
type LocalSink struct {
	dir string
}

// NewLocalSink 创建临时目录下的上传落盘
func NewLocalSink(dir string) (*LocalSink, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "distribution-uploads")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload temp dir: %w", err)
	}
	return &LocalSink{dir: dir}, nil
}

var _ gateway.UploadSink = (*LocalSink)(nil)

// Allocate 创建空文件，已存在时截断
func (s *LocalSink) Allocate(_ context.Context, videoID string) (string, error) {
	if videoID == "" || strings.ContainsAny(videoID, `/\`) || strings.Contains(videoID, "..") {
		return "", errno.Wrapf(errno.ErrInvalidParam, "video id %q", videoID)
	}
	p := filepath.Join(s.dir, videoID+".part")
	f, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return "", err
	}
	return p, f.Close()
}

// Append 写入不超过 limit 字节；读到第 limit+1 个字节时截断回 offset 并返回 ErrPayloadTooLarge。
// 读取中断时已写入的字节保留，返回写入数与错误
func (s *LocalSink) Append(ctx context.Context, path string, offset int64, r io.Reader, limit int64) (int64, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, err
	}

	n, err := io.Copy(f, io.LimitReader(&ctxReader{ctx: ctx, r: r}, limit))
	if err != nil {
		if terr := f.Truncate(offset + n); terr != nil {
			return 0, terr
		}
		return n, err
	}
	if n == limit {
		var probe [1]byte
		if m, _ := io.ReadFull(r, probe[:]); m > 0 {
			if err := f.Truncate(offset); err != nil {
				return 0, err
			}
			return 0, errno.Wrapf(errno.ErrPayloadTooLarge, "chunk exceeds remaining %d bytes", limit)
		}
	}
	if err := f.Sync(); err != nil {
		return n, err
	}
	return n, nil
}

func (s *LocalSink) Open(_ context.Context, path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func (s *LocalSink) Remove(_ context.Context, path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
