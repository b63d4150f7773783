package persistence

import (
	"context"
	"time"

	"gorm.io/gorm"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/infrastructure/database/convertor"
	"distribution-service/ddd/infrastructure/database/dao"
	"distribution-service/pkg/errno"
)

// uploadSessionRepositoryImpl 上传会话仓储实现
type uploadSessionRepositoryImpl struct {
	sessionDao *dao.UploadSessionDao
	convertor  *convertor.UploadSessionConvertor
}

// NewUploadSessionRepository 创建上传会话仓储
func NewUploadSessionRepository(db *gorm.DB) repo.UploadSessionRepository {
	return &uploadSessionRepositoryImpl{
		sessionDao: dao.NewUploadSessionDao(db),
		convertor:  convertor.NewUploadSessionConvertor(),
	}
}

func (r *uploadSessionRepositoryImpl) CreateSession(ctx context.Context, session *entity.UploadSession) error {
	err := r.sessionDao.Create(ctx, r.convertor.ToPO(session))
	return translate(err, nil, errno.ErrUploadSessionExists)
}

func (r *uploadSessionRepositoryImpl) GetSession(ctx context.Context, videoID string) (*entity.UploadSession, error) {
	p, err := r.sessionDao.FindByVideoUUID(ctx, videoID)
	if err != nil {
		return nil, translate(err, errno.ErrUploadNotFound, nil)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *uploadSessionRepositoryImpl) UpdateOffset(ctx context.Context, videoID string, offset int64, updatedAt time.Time) error {
	rows, err := r.sessionDao.UpdateOffset(ctx, videoID, offset, updatedAt)
	if err != nil {
		return translate(err, nil, nil)
	}
	if rows == 0 {
		return errno.ErrUploadNotFound
	}
	return nil
}

func (r *uploadSessionRepositoryImpl) DeleteSession(ctx context.Context, videoID string) error {
	return translate(r.sessionDao.Delete(ctx, videoID), nil, nil)
}

func (r *uploadSessionRepositoryImpl) ListSessionsCreatedBefore(ctx context.Context, before time.Time, limit int) ([]*entity.UploadSession, error) {
	list, err := r.sessionDao.ListCreatedBefore(ctx, before, limit)
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntities(list), nil
}
