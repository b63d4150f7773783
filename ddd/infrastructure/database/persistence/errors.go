package persistence

import (
	"errors"

	"gorm.io/gorm"

	"distribution-service/pkg/errno"
)

// translate 将 gorm 错误映射为业务错误码
func translate(err error, notFound, duplicated *errno.Errno) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey) && duplicated != nil:
		return duplicated
	default:
		return errno.NewBizError(errno.ErrDatabase, err)
	}
}
