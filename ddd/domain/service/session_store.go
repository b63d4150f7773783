package service

import (
	"context"
	"errors"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/pkg/errno"
)

// KeyLocker 按 key 互斥，返回的 unlock 必须调用且只调用一次
type KeyLocker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// UploadSessionStore 会话存储：仓储 + 按视频加锁
type UploadSessionStore struct {
	repo     repo.UploadSessionRepository
	locker   KeyLocker
	lockWait time.Duration
}

// NewUploadSessionStore 创建会话存储，lockWait<=0 表示只受调用方 ctx 约束
func NewUploadSessionStore(r repo.UploadSessionRepository, locker KeyLocker, lockWait time.Duration) *UploadSessionStore {
	return &UploadSessionStore{repo: r, locker: locker, lockWait: lockWait}
}

// WithLock 持有视频锁执行 fn，fn 返回前锁一直有效
func (s *UploadSessionStore) WithLock(ctx context.Context, videoID string, fn func(ctx context.Context) error) error {
	lockCtx := ctx
	if s.lockWait > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, s.lockWait)
		defer cancel()
	}
	unlock, err := s.locker.Lock(lockCtx, "upload:"+videoID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errno.NewBizError(errno.ErrLockTimeout, err)
	}
	defer unlock()
	return fn(ctx)
}

func (s *UploadSessionStore) Create(ctx context.Context, session *entity.UploadSession) error {
	return s.repo.CreateSession(ctx, session)
}

func (s *UploadSessionStore) Get(ctx context.Context, videoID string) (*entity.UploadSession, error) {
	return s.repo.GetSession(ctx, videoID)
}

// Exists 会话是否存在
func (s *UploadSessionStore) Exists(ctx context.Context, videoID string) (bool, error) {
	_, err := s.repo.GetSession(ctx, videoID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errno.ErrUploadNotFound) {
		return false, nil
	}
	return false, err
}

func (s *UploadSessionStore) SaveOffset(ctx context.Context, session *entity.UploadSession) error {
	return s.repo.UpdateOffset(ctx, session.VideoID(), session.ReceivedOffset(), session.UpdatedAt())
}

func (s *UploadSessionStore) Delete(ctx context.Context, videoID string) error {
	return s.repo.DeleteSession(ctx, videoID)
}

func (s *UploadSessionStore) ListCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*entity.UploadSession, error) {
	return s.repo.ListSessionsCreatedBefore(ctx, before, limit)
}
