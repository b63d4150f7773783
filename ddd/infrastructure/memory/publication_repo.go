package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/pkg/errno"
)

type PublicationRepo struct {
	mu     sync.RWMutex
	nextID uint64
	pubs   map[variantKey]*entity.Publication
}

var _ repo.PublicationRepository = (*PublicationRepo)(nil)

func NewPublicationRepo() *PublicationRepo {
	return &PublicationRepo{pubs: make(map[variantKey]*entity.Publication)}
}

func (r *PublicationRepo) UpsertPublication(_ context.Context, p *entity.Publication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := variantKey{p.VideoID(), p.Platform()}
	if cur, ok := r.pubs[k]; ok {
		p.SetID(cur.ID())
	} else {
		r.nextID++
		p.SetID(r.nextID)
	}
	r.pubs[k] = p.Clone()
	return nil
}

func (r *PublicationRepo) GetPublication(_ context.Context, videoID string, platform vo.Platform) (*entity.Publication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pubs[variantKey{videoID, platform}]
	if !ok {
		return nil, errno.ErrPublicationNotFound
	}
	return p.Clone(), nil
}

func (r *PublicationRepo) SavePublication(_ context.Context, p *entity.Publication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := variantKey{p.VideoID(), p.Platform()}
	if _, ok := r.pubs[k]; !ok {
		return errno.ErrPublicationNotFound
	}
	r.pubs[k] = p.Clone()
	return nil
}

func (r *PublicationRepo) ListPublicationsByVideo(_ context.Context, videoID string) ([]*entity.Publication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Publication
	for k, p := range r.pubs {
		if k.videoID == videoID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform() < out[j].Platform() })
	return out, nil
}

func (r *PublicationRepo) ListStalePublishing(_ context.Context, before time.Time, limit int) ([]*entity.Publication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Publication
	for _, p := range r.pubs {
		if p.Status() == vo.PublicationStatusPublishing && p.UpdatedAt().Before(before) {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt().Before(out[j].UpdatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type credentialKey struct {
	ownerID  string
	platform vo.Platform
}

type CredentialRepo struct {
	mu    sync.RWMutex
	creds map[credentialKey]*entity.PlatformCredential
}

var _ repo.CredentialRepository = (*CredentialRepo)(nil)

func NewCredentialRepo() *CredentialRepo {
	return &CredentialRepo{creds: make(map[credentialKey]*entity.PlatformCredential)}
}

func (r *CredentialRepo) FindCredential(_ context.Context, ownerID string, platform vo.Platform) (*entity.PlatformCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.creds[credentialKey{ownerID, platform}]
	if !ok {
		return nil, errno.ErrCredentialNotFound
	}
	return c, nil
}

func (r *CredentialRepo) SaveCredential(_ context.Context, c *entity.PlatformCredential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creds[credentialKey{c.OwnerID(), c.Platform()}] = c
	return nil
}
