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

// publicationRepositoryImpl 发布记录仓储实现
type publicationRepositoryImpl struct {
	pubDao    *dao.PlatformPublicationDao
	convertor *convertor.PublicationConvertor
}

// NewPublicationRepository 创建发布记录仓储
func NewPublicationRepository(db *gorm.DB) repo.PublicationRepository {
	return &publicationRepositoryImpl{
		pubDao:    dao.NewPlatformPublicationDao(db),
		convertor: convertor.NewPublicationConvertor(),
	}
}

func (r *publicationRepositoryImpl) UpsertPublication(ctx context.Context, pub *entity.Publication) error {
	return translate(r.pubDao.Upsert(ctx, r.convertor.ToPO(pub)), nil, nil)
}

func (r *publicationRepositoryImpl) GetPublication(ctx context.Context, videoID string, platform vo.Platform) (*entity.Publication, error) {
	p, err := r.pubDao.FindByVideoAndPlatform(ctx, videoID, platform.String())
	if err != nil {
		return nil, translate(err, errno.ErrPublicationNotFound, nil)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *publicationRepositoryImpl) SavePublication(ctx context.Context, pub *entity.Publication) error {
	rows, err := r.pubDao.Update(ctx, r.convertor.ToPO(pub))
	if err != nil {
		return translate(err, nil, nil)
	}
	if rows == 0 {
		if _, err := r.pubDao.FindByVideoAndPlatform(ctx, pub.VideoID(), pub.Platform().String()); err != nil {
			return translate(err, errno.ErrPublicationNotFound, nil)
		}
	}
	return nil
}

func (r *publicationRepositoryImpl) ListPublicationsByVideo(ctx context.Context, videoID string) ([]*entity.Publication, error) {
	list, err := r.pubDao.ListByVideo(ctx, videoID)
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntities(list), nil
}

func (r *publicationRepositoryImpl) ListStalePublishing(ctx context.Context, before time.Time, limit int) ([]*entity.Publication, error) {
	list, err := r.pubDao.ListStale(ctx, vo.PublicationStatusPublishing.String(), before, limit)
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntities(list), nil
}

// credentialRepositoryImpl 平台授权仓储实现
type credentialRepositoryImpl struct {
	credDao   *dao.PlatformCredentialDao
	convertor *convertor.PublicationConvertor
}

// NewCredentialRepository 创建平台授权仓储
func NewCredentialRepository(db *gorm.DB) repo.CredentialRepository {
	return &credentialRepositoryImpl{
		credDao:   dao.NewPlatformCredentialDao(db),
		convertor: convertor.NewPublicationConvertor(),
	}
}

func (r *credentialRepositoryImpl) FindCredential(ctx context.Context, ownerID string, platform vo.Platform) (*entity.PlatformCredential, error) {
	p, err := r.credDao.Find(ctx, ownerID, platform.String())
	if err != nil {
		return nil, translate(err, errno.ErrCredentialNotFound, nil)
	}
	return r.convertor.CredentialToEntity(p), nil
}

func (r *credentialRepositoryImpl) SaveCredential(ctx context.Context, cred *entity.PlatformCredential) error {
	return translate(r.credDao.Upsert(ctx, r.convertor.CredentialToPO(cred)), nil, nil)
}
