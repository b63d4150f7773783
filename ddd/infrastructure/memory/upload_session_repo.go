// Package memory holds process-local repositories used when database.driver
// is "memory" and by tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/pkg/errno"
)

type UploadSessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*entity.UploadSession
}

var _ repo.UploadSessionRepository = (*UploadSessionRepo)(nil)

func NewUploadSessionRepo() *UploadSessionRepo {
	return &UploadSessionRepo{sessions: make(map[string]*entity.UploadSession)}
}

func (r *UploadSessionRepo) CreateSession(_ context.Context, s *entity.UploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.VideoID()]; ok {
		return errno.ErrUploadSessionExists
	}
	r.sessions[s.VideoID()] = s.Clone()
	return nil
}

func (r *UploadSessionRepo) GetSession(_ context.Context, videoID string) (*entity.UploadSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[videoID]
	if !ok {
		return nil, errno.ErrUploadNotFound
	}
	return s.Clone(), nil
}

func (r *UploadSessionRepo) UpdateOffset(_ context.Context, videoID string, offset int64, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[videoID]
	if !ok {
		return errno.ErrUploadNotFound
	}
	r.sessions[videoID] = entity.NewUploadSessionWithDetails(s.VideoID(), s.OwnerID(), s.DeclaredLength(), offset,
		s.TempSinkPath(), s.ContentType(), s.OriginalFilename(), s.CreatedAt(), updatedAt)
	return nil
}

func (r *UploadSessionRepo) DeleteSession(_ context.Context, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, videoID)
	return nil
}

func (r *UploadSessionRepo) ListSessionsCreatedBefore(_ context.Context, before time.Time, limit int) ([]*entity.UploadSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.UploadSession
	for _, s := range r.sessions {
		if s.CreatedAt().Before(before) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt().Before(out[j].CreatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
