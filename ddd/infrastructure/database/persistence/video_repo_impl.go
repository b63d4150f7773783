package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"distribution-service/ddd/domain/entity"
	"distribution-service/ddd/domain/repo"
	"distribution-service/ddd/domain/vo"
	"distribution-service/ddd/infrastructure/database/convertor"
	"distribution-service/ddd/infrastructure/database/dao"
	"distribution-service/pkg/errno"
)

// videoRepositoryImpl 视频仓储实现
type videoRepositoryImpl struct {
	videoDao  *dao.VideoDao
	convertor *convertor.VideoConvertor
}

// NewVideoRepository 创建视频仓储
func NewVideoRepository(db *gorm.DB) repo.VideoRepository {
	return &videoRepositoryImpl{
		videoDao:  dao.NewVideoDao(db),
		convertor: convertor.NewVideoConvertor(),
	}
}

func (r *videoRepositoryImpl) CreateVideo(ctx context.Context, video *entity.Video) error {
	err := r.videoDao.Create(ctx, r.convertor.ToPO(video))
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errno.Wrapf(errno.ErrInvalidParam, "video %s already exists", video.VideoID())
	}
	return translate(err, nil, nil)
}

func (r *videoRepositoryImpl) GetVideo(ctx context.Context, videoID string) (*entity.Video, error) {
	p, err := r.videoDao.FindByVideoUUID(ctx, videoID)
	if err != nil {
		return nil, translate(err, errno.ErrVideoNotFound, nil)
	}
	return r.convertor.ToEntity(p), nil
}

func (r *videoRepositoryImpl) UpdateVideo(ctx context.Context, video *entity.Video) error {
	rows, err := r.videoDao.UpdateByVideoUUID(ctx, r.convertor.ToPO(video))
	if err != nil {
		return translate(err, nil, nil)
	}
	if rows == 0 {
		// 内容未变化时 MySQL 也返回 0 行，需确认记录存在
		if _, err := r.videoDao.FindByVideoUUID(ctx, video.VideoID()); err != nil {
			return translate(err, errno.ErrVideoNotFound, nil)
		}
	}
	return nil
}

func (r *videoRepositoryImpl) FindReadyByOwnerAndHash(ctx context.Context, ownerID, contentHash string) (*entity.Video, error) {
	p, err := r.videoDao.FindFirstReadyByOwnerAndHash(ctx, ownerID, contentHash, vo.VideoStatusReady.String())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, translate(err, nil, nil)
	}
	return r.convertor.ToEntity(p), nil
}
