package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/gateway"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
)

// UploadOptions 上传协议参数
type UploadOptions struct {
	MaxSize           int64
	AllowedExtensions []string
	SourcePrefix      string
}

// CreateSessionCommand 创建上传会话
type CreateSessionCommand struct {
	VideoID  string
	OwnerID  string
	Length   int64
	Metadata map[string]string
}

// AppendChunkCommand 追加一段数据。ContentLength<0 表示未知
type AppendChunkCommand struct {
	VideoID       string
	OwnerID       string
	Offset        int64
	ContentLength int64
	Body          io.Reader
}

// AppendResult 追加结果
type AppendResult struct {
	Offset    int64
	Length    int64
	Completed bool
}

// UploadService 断点续传协议的领域实现
type UploadService struct {
	store   *UploadSessionStore
	videos  repo.VideoRepository
	sink    gateway.UploadSink
	storage gateway.StorageGateway
	probe   gateway.MediaProbe
	events  gateway.EventPublisher
	opts    UploadOptions
	allowed map[string]struct{}
}

// NewUploadService 创建上传服务
func NewUploadService(store *UploadSessionStore, videos repo.VideoRepository, sink gateway.UploadSink,
	storage gateway.StorageGateway, probe gateway.MediaProbe, events gateway.EventPublisher, opts UploadOptions) *UploadService {
	if opts.SourcePrefix == "" {
		opts.SourcePrefix = "sources"
	}
	allowed := make(map[string]struct{}, len(opts.AllowedExtensions))
	for _, ext := range opts.AllowedExtensions {
		allowed[strings.TrimPrefix(strings.ToLower(ext), ".")] = struct{}{}
	}
	return &UploadService{
		store:   store,
		videos:  videos,
		sink:    sink,
		storage: storage,
		probe:   probe,
		events:  events,
		opts:    opts,
		allowed: allowed,
	}
}

// MaxSize 单个上传允许的最大字节数
func (s *UploadService) MaxSize() int64 { return s.opts.MaxSize }

// AllowedExtensions 允许的扩展名
func (s *UploadService) AllowedExtensions() []string {
	return append([]string(nil), s.opts.AllowedExtensions...)
}

// SourceObjectKey 源文件在持久化存储中的对象键，同一视频总是相同
func SourceObjectKey(prefix, videoID, ext string) string {
	name := "source"
	if ext != "" {
		name += "." + ext
	}
	return path.Join(prefix, videoID, name)
}

// CreateSession 创建会话并分配空的临时文件
func (s *UploadService) CreateSession(ctx context.Context, cmd *CreateSessionCommand) (*entity.UploadSession, error) {
	if cmd.Length <= 0 {
		return nil, errno.ErrUploadLengthInvalid
	}
	if s.opts.MaxSize > 0 && cmd.Length > s.opts.MaxSize {
		return nil, errno.Wrapf(errno.ErrPayloadTooLarge, "length %d exceeds %d", cmd.Length, s.opts.MaxSize)
	}
	filename, contentType, err := s.parseMetadata(cmd.Metadata)
	if err != nil {
		return nil, err
	}

	if _, err := s.ownedVideo(ctx, cmd.VideoID, cmd.OwnerID); err != nil {
		return nil, err
	}

	var session *entity.UploadSession
	err = s.store.WithLock(ctx, cmd.VideoID, func(ctx context.Context) error {
		video, err := s.videos.GetVideo(ctx, cmd.VideoID)
		if err != nil {
			return err
		}
		if video.IsSourceReady() {
			return errno.ErrSourceAlreadyUploaded
		}
		exists, err := s.store.Exists(ctx, cmd.VideoID)
		if err != nil {
			return err
		}
		if exists {
			return errno.ErrUploadSessionExists
		}
		sinkPath, err := s.sink.Allocate(ctx, cmd.VideoID)
		if err != nil {
			return errno.NewBizError(errno.ErrInternalServer, err)
		}
		session, err = entity.NewUploadSession(cmd.VideoID, cmd.OwnerID, cmd.Length, sinkPath, contentType, filename, time.Now())
		if err != nil {
			_ = s.sink.Remove(ctx, sinkPath)
			return err
		}
		if err := s.store.Create(ctx, session); err != nil {
			_ = s.sink.Remove(ctx, sinkPath)
			return err
		}
		if err := video.MarkUploading(); err != nil {
			_ = s.discardLocked(ctx, session)
			return err
		}
		if err := s.videos.UpdateVideo(ctx, video); err != nil {
			// 视频仍为 draft，回收会话与临时文件以便客户端重新 POST
			if cleanupErr := s.discardLocked(ctx, session); cleanupErr != nil {
				logger.Warn("rollback upload session failed", map[string]interface{}{
					"video_id": cmd.VideoID,
					"error":    cleanupErr.Error(),
				})
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("upload session created", map[string]interface{}{
		"video_id": cmd.VideoID,
		"length":   humanize.IBytes(uint64(cmd.Length)),
		"filename": filename,
	})
	return session, nil
}

// QueryOffset 查询当前偏移量
func (s *UploadService) QueryOffset(ctx context.Context, videoID, ownerID string) (*entity.UploadSession, error) {
	if _, err := s.ownedVideo(ctx, videoID, ownerID); err != nil {
		if errors.Is(err, errno.ErrVideoNotFound) {
			return nil, errno.ErrUploadNotFound
		}
		return nil, err
	}
	return s.store.Get(ctx, videoID)
}

// AppendChunk 偏移量必须与已接收字节数完全一致；写满声明长度时在同一调用内完成入库
func (s *UploadService) AppendChunk(ctx context.Context, cmd *AppendChunkCommand) (*AppendResult, error) {
	if _, err := s.ownedVideo(ctx, cmd.VideoID, cmd.OwnerID); err != nil {
		if errors.Is(err, errno.ErrVideoNotFound) {
			return nil, errno.ErrUploadNotFound
		}
		return nil, err
	}

	var result AppendResult
	err := s.store.WithLock(ctx, cmd.VideoID, func(ctx context.Context) error {
		session, err := s.store.Get(ctx, cmd.VideoID)
		if err != nil {
			return err
		}
		if cmd.Offset != session.ReceivedOffset() {
			return errno.Wrapf(errno.ErrOffsetConflict, "claimed %d, current %d", cmd.Offset, session.ReceivedOffset())
		}
		result.Length = session.DeclaredLength()

		// 上次写满但入库失败，空请求触发重试；已无剩余空间，携带数据即超长
		if session.IsComplete() {
			if cmd.ContentLength > 0 {
				return errno.Wrapf(errno.ErrPayloadTooLarge, "chunk of %d bytes exceeds remaining 0", cmd.ContentLength)
			}
			if err := s.completeLocked(ctx, session); err != nil {
				return err
			}
			result.Offset, result.Completed = session.ReceivedOffset(), true
			return nil
		}

		remaining := session.Remaining()
		if cmd.ContentLength > remaining {
			return errno.Wrapf(errno.ErrPayloadTooLarge, "chunk of %d bytes exceeds remaining %d", cmd.ContentLength, remaining)
		}
		n, writeErr := s.sink.Append(ctx, session.TempSinkPath(), session.ReceivedOffset(), cmd.Body, remaining)
		if errors.Is(writeErr, errno.ErrPayloadTooLarge) {
			return writeErr
		}
		if n > 0 {
			if err := session.Advance(n, time.Now()); err != nil {
				return err
			}
			if err := s.store.SaveOffset(ctx, session); err != nil {
				return err
			}
		}
		result.Offset = session.ReceivedOffset()
		if writeErr != nil {
			logger.Warn("upload chunk interrupted", map[string]interface{}{
				"video_id": cmd.VideoID,
				"written":  n,
				"offset":   session.ReceivedOffset(),
				"error":    writeErr.Error(),
			})
			return errno.NewBizError(errno.ErrInternalServer, writeErr)
		}
		if session.IsComplete() {
			if err := s.completeLocked(ctx, session); err != nil {
				return err
			}
			result.Completed = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CancelSession 删除临时文件与会话，重复调用无副作用
func (s *UploadService) CancelSession(ctx context.Context, videoID, ownerID string) error {
	video, err := s.ownedVideo(ctx, videoID, ownerID)
	if err != nil {
		if errors.Is(err, errno.ErrVideoNotFound) {
			return nil
		}
		return err
	}
	return s.store.WithLock(ctx, videoID, func(ctx context.Context) error {
		session, err := s.store.Get(ctx, videoID)
		if errors.Is(err, errno.ErrUploadNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.discardLocked(ctx, session); err != nil {
			return err
		}
		logger.Info("upload session cancelled", map[string]interface{}{
			"video_id": videoID,
			"offset":   session.ReceivedOffset(),
		})
		return s.resetVideo(ctx, video.VideoID())
	})
}

const sweepBatchSize = 500

// SweepExpired 清理创建时间早于 maxAge 的会话，不论进度。返回清理数量
func (s *UploadService) SweepExpired(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	sessions, err := s.store.ListCreatedBefore(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, candidate := range sessions {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		videoID := candidate.VideoID()
		err := s.store.WithLock(ctx, videoID, func(ctx context.Context) error {
			session, err := s.store.Get(ctx, videoID)
			if errors.Is(err, errno.ErrUploadNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !session.CreatedAt().Before(cutoff) {
				return nil
			}
			if err := s.discardLocked(ctx, session); err != nil {
				return err
			}
			removed++
			return s.resetVideo(ctx, videoID)
		})
		if err != nil {
			logger.Warn("sweep upload session failed", map[string]interface{}{
				"video_id": videoID,
				"error":    err.Error(),
			})
		}
	}
	if removed > 0 {
		logger.Info("expired upload sessions swept", map[string]interface{}{"removed": removed})
	}
	return removed, nil
}

// completeLocked 计算哈希、持久化源文件、更新视频并发出 source.ready；调用方持有会话锁
func (s *UploadService) completeLocked(ctx context.Context, session *entity.UploadSession) error {
	videoID := session.VideoID()
	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return err
	}
	if video.IsSourceReady() {
		return s.discardLocked(ctx, session)
	}

	hash, size, err := s.hashSink(ctx, session.TempSinkPath())
	if err != nil {
		return errno.NewBizError(errno.ErrInternalServer, err)
	}
	if size != session.DeclaredLength() {
		return errno.Wrapf(errno.ErrInternalServer, "sink holds %d bytes, expected %d", size, session.DeclaredLength())
	}

	src := entity.VideoSource{ContentHash: hash, SizeBytes: size}
	if s.probe != nil {
		info, err := s.probe.Probe(ctx, session.TempSinkPath())
		if err != nil {
			logger.Warn("probe source failed", map[string]interface{}{"video_id": videoID, "error": err.Error()})
		} else if info != nil {
			src.Media = *info
		}
	}

	dup, err := s.videos.FindReadyByOwnerAndHash(ctx, video.OwnerID(), hash)
	if err != nil {
		return err
	}
	if dup != nil && dup.VideoID() != videoID {
		src.Key = dup.SourceKey()
		src.URL = dup.SourceURL()
		src.DuplicateOf = dup.VideoID()
	} else {
		key := SourceObjectKey(s.opts.SourcePrefix, videoID, session.Extension())
		url, err := s.storage.PutFile(ctx, session.TempSinkPath(), key, session.ContentType())
		if err != nil {
			return errno.NewBizError(errno.ErrInternalServer, fmt.Errorf("store source: %w", err))
		}
		src.Key = key
		src.URL = url
	}

	if err := video.AttachSource(src); err != nil {
		return err
	}
	if err := s.videos.UpdateVideo(ctx, video); err != nil {
		return err
	}
	if err := s.events.Publish(ctx, vo.NewSourceReadyEvent(videoID, video.OwnerID())); err != nil {
		logger.Error("publish source ready failed", map[string]interface{}{"video_id": videoID, "error": err.Error()})
	}
	logger.Info("upload completed", map[string]interface{}{
		"video_id":     videoID,
		"size":         humanize.IBytes(uint64(size)),
		"sha256":       hash,
		"duplicate_of": src.DuplicateOf,
	})
	return s.discardLocked(ctx, session)
}

func (s *UploadService) discardLocked(ctx context.Context, session *entity.UploadSession) error {
	if err := s.sink.Remove(ctx, session.TempSinkPath()); err != nil {
		logger.Warn("remove upload sink failed", map[string]interface{}{
			"video_id": session.VideoID(),
			"path":     session.TempSinkPath(),
			"error":    err.Error(),
		})
	}
	return s.store.Delete(ctx, session.VideoID())
}

func (s *UploadService) resetVideo(ctx context.Context, videoID string) error {
	video, err := s.videos.GetVideo(ctx, videoID)
	if errors.Is(err, errno.ErrVideoNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if video.IsSourceReady() {
		return nil
	}
	video.ResetToDraft()
	return s.videos.UpdateVideo(ctx, video)
}

func (s *UploadService) hashSink(ctx context.Context, sinkPath string) (string, int64, error) {
	rc, err := s.sink.Open(ctx, sinkPath)
	if err != nil {
		return "", 0, err
	}
	defer rc.Close()
	h := sha256.New()
	n, err := io.Copy(h, rc)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

func (s *UploadService) ownedVideo(ctx context.Context, videoID, ownerID string) (*entity.Video, error) {
	if strings.TrimSpace(videoID) == "" {
		return nil, errno.ErrVideoUUIDRequired
	}
	video, err := s.videos.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if !video.IsOwnedBy(ownerID) {
		return nil, errno.ErrForbidden
	}
	return video, nil
}

func (s *UploadService) parseMetadata(meta map[string]string) (string, string, error) {
	filename := meta["filename"]
	if filename == "" {
		filename = meta["name"]
	}
	contentType := meta["filetype"]
	if contentType == "" {
		contentType = meta["contentType"]
	}
	if filename != "" {
		if strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
			return "", "", errno.Wrapf(errno.ErrFileNameIllegal, "%q", filename)
		}
		if len(s.allowed) > 0 {
			ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
			if _, ok := s.allowed[ext]; !ok {
				return "", "", errno.Wrapf(errno.ErrFileNameIllegal, "extension %q is not allowed", ext)
			}
		}
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return filename, contentType, nil
}
