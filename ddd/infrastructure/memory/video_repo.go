package memory

import (
	"context"
	"sync"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/pkg/errno"
)

type VideoRepo struct {
	mu     sync.RWMutex
	videos map[string]*entity.Video
}

var _ repo.VideoRepository = (*VideoRepo)(nil)

func NewVideoRepo() *VideoRepo {
	return &VideoRepo{videos: make(map[string]*entity.Video)}
}

func (r *VideoRepo) CreateVideo(_ context.Context, v *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.VideoID()]; ok {
		return errno.Wrapf(errno.ErrInvalidParam, "video %s already exists", v.VideoID())
	}
	r.videos[v.VideoID()] = v.Clone()
	return nil
}

func (r *VideoRepo) GetVideo(_ context.Context, videoID string) (*entity.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.videos[videoID]
	if !ok {
		return nil, errno.ErrVideoNotFound
	}
	return v.Clone(), nil
}

func (r *VideoRepo) UpdateVideo(_ context.Context, v *entity.Video) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.videos[v.VideoID()]; !ok {
		return errno.ErrVideoNotFound
	}
	r.videos[v.VideoID()] = v.Clone()
	return nil
}

func (r *VideoRepo) FindReadyByOwnerAndHash(_ context.Context, ownerID, contentHash string) (*entity.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var found *entity.Video
	for _, v := range r.videos {
		if v.OwnerID() != ownerID || v.ContentHash() != contentHash || !v.IsSourceReady() {
			continue
		}
		// 取最早的一条作为原件
		if found == nil || v.CreatedAt().Before(found.CreatedAt()) {
			found = v
		}
	}
	if found == nil {
		return nil, nil
	}
	return found.Clone(), nil
}
