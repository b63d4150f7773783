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

type variantKey struct {
	videoID  string
	platform vo.Platform
}

type VariantRepo struct {
	mu       sync.RWMutex
	nextID   uint64
	variants map[variantKey]*entity.Variant
	// history 记录每次写入后的状态，便于观察状态流转
	history map[variantKey][]vo.VariantStatus
}

var _ repo.VariantRepository = (*VariantRepo)(nil)

func NewVariantRepo() *VariantRepo {
	return &VariantRepo{
		variants: make(map[variantKey]*entity.Variant),
		history:  make(map[variantKey][]vo.VariantStatus),
	}
}

func (r *VariantRepo) CreateVariant(_ context.Context, v *entity.Variant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := variantKey{v.VideoID(), v.Platform()}
	if _, ok := r.variants[k]; ok {
		return errno.ErrVariantExists
	}
	r.nextID++
	v.SetID(r.nextID)
	r.variants[k] = v.Clone()
	r.history[k] = append(r.history[k], v.Status())
	return nil
}

func (r *VariantRepo) GetVariant(_ context.Context, videoID string, platform vo.Platform) (*entity.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.variants[variantKey{videoID, platform}]
	if !ok {
		return nil, errno.ErrVariantNotFound
	}
	return v.Clone(), nil
}

func (r *VariantRepo) CompareAndSave(_ context.Context, v *entity.Variant, expected vo.VariantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := variantKey{v.VideoID(), v.Platform()}
	cur, ok := r.variants[k]
	if !ok {
		return errno.ErrVariantNotFound
	}
	if cur.Status() != expected {
		return errno.Wrapf(errno.ErrVariantConflict, "%s/%s is %s, expected %s", v.VideoID(), v.Platform(), cur.Status(), expected)
	}
	c := v.Clone()
	c.SetID(cur.ID())
	r.variants[k] = c
	r.history[k] = append(r.history[k], v.Status())
	return nil
}

func (r *VariantRepo) ListVariantsByVideo(_ context.Context, videoID string) ([]*entity.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*entity.Variant
	for k, v := range r.variants {
		if k.videoID == videoID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform() < out[j].Platform() })
	return out, nil
}

func (r *VariantRepo) ListStaleVariants(_ context.Context, statuses []vo.VariantStatus, before time.Time, limit int) ([]*entity.Variant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[vo.VariantStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*entity.Variant
	for _, v := range r.variants {
		if want[v.Status()] && v.UpdatedAt().Before(before) {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt().Before(out[j].UpdatedAt()) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// History 返回某个成片持久化过的状态序列
func (r *VariantRepo) History(videoID string, platform vo.Platform) []vo.VariantStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]vo.VariantStatus(nil), r.history[variantKey{videoID, platform}]...)
}

// Put 直接写入，供初始化与测试使用
func (r *VariantRepo) Put(v *entity.Variant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := variantKey{v.VideoID(), v.Platform()}
	if v.ID() == 0 {
		r.nextID++
		v.SetID(r.nextID)
	}
	r.variants[k] = v.Clone()
	r.history[k] = append(r.history[k], v.Status())
}
