package errno

import (
	"errors"
	"fmt"
)

// BizError 业务错误，携带错误码以及底层原因
type BizError struct {
	Errno *Errno
	Cause error
}

// NewBizError 创建业务错误
func NewBizError(e *Errno, cause error) *BizError {
	if e == nil {
		e = ErrUnknown
	}
	return &BizError{Errno: e, Cause: cause}
}

// Wrapf 使用格式化的原因构造业务错误
func Wrapf(e *Errno, format string, args ...interface{}) *BizError {
	return NewBizError(e, fmt.Errorf(format, args...))
}

func (b *BizError) Error() string {
	if b.Cause == nil {
		return b.Errno.Message
	}
	return b.Errno.Message + ": " + b.Cause.Error()
}

// Unwrap 同时暴露错误码与原因，便于 errors.Is/As 判断
func (b *BizError) Unwrap() []error {
	if b.Cause == nil {
		return []error{b.Errno}
	}
	return []error{b.Errno, b.Cause}
}

// Decode 从任意错误中解析出错误码与提示信息
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}
	var biz *BizError
	if errors.As(err, &biz) {
		return biz.Errno.Code, biz.Error()
	}
	var e *Errno
	if errors.As(err, &e) {
		return e.Code, e.Message
	}
	return ErrInternalServer.Code, err.Error()
}
