package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/convertor"
	"distribution-service/ddd/infrastructure/database/dao"
	"distribution-service/pkg/errno"
)

// variantRepositoryImpl 平台成片仓储实现
type variantRepositoryImpl struct {
	variantDao *dao.VideoVariantDao
	convertor  *convertor.VideoVariantConvertor
}

// NewVariantRepository 创建平台成片仓储
func NewVariantRepository(db *gorm.DB) repo.VariantRepository {
	return &variantRepositoryImpl{
		variantDao: dao.NewVideoVariantDao(db),
		convertor:  convertor.NewVideoVariantConvertor(),
	}
}

func (r *variantRepositoryImpl) CreateVariant(ctx context.Context, variant *entity.Variant) error {
	p := r.convertor.ToPO(variant)
	if err := r.variantDao.Create(ctx, p); err != nil {
		return translate(err, nil, errno.ErrVariantExists)
	}
	variant.SetID(p.Id)
	return nil
}

func (r *variantRepositoryImpl) GetVariant(ctx context.Context, videoID string, platform vo.Platform) (*entity.Variant, error) {
	p, err := r.variantDao.FindByVideoAndPlatform(ctx, videoID, platform.String())
	if err != nil {
		return nil, translate(err, errno.ErrVariantNotFound, nil)
	}
	return r.convertor.ToEntity(p), nil
}

// CompareAndSave 以状态作为乐观锁版本
func (r *variantRepositoryImpl) CompareAndSave(ctx context.Context, variant *entity.Variant, expected vo.VariantStatus) error {
	rows, err := r.variantDao.UpdateIfStatus(ctx, r.convertor.ToPO(variant), expected.String())
	if err != nil {
		return translate(err, nil, nil)
	}
	if rows == 0 {
		cur, err := r.GetVariant(ctx, variant.VideoID(), variant.Platform())
		if err != nil {
			return err
		}
		return errno.Wrapf(errno.ErrVariantConflict, "%s/%s is %s, expected %s",
			variant.VideoID(), variant.Platform(), cur.Status(), expected)
	}
	return nil
}

func (r *variantRepositoryImpl) ListVariantsByVideo(ctx context.Context, videoID string) ([]*entity.Variant, error) {
	list, err := r.variantDao.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntities(list), nil
}

func (r *variantRepositoryImpl) ListStaleVariants(ctx context.Context, statuses []vo.VariantStatus, before time.Time, limit int) ([]*entity.Variant, error) {
	names := make([]string, 0, len(statuses))
	for _, s := range statuses {
		names = append(names, s.String())
	}
	list, err := r.variantDao.ListStale(ctx, names, before, limit)
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntities(list), nil
}
