package vo

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
)

// ErrorKind 流水线错误分类，决定发布阶段是否重试
type ErrorKind string

const (
	ErrorKindTransient ErrorKind = "transient"
	ErrorKindPermanent ErrorKind = "permanent"
)

var (
	// ErrTransient 标记可重试的传输类错误
	ErrTransient = errors.New("transient failure")
	// ErrPermanent 标记不可重试的错误（凭证、参数、平台拒绝）
	ErrPermanent = errors.New("permanent failure")
)

// Transient 在错误产生处打上可重试标记
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrorKindTransient, err: err}
}

// Permanent 在错误产生处打上不可重试标记
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: ErrorKindPermanent, err: err}
}

type kindError struct {
	kind ErrorKind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() []error {
	marker := ErrPermanent
	if e.kind == ErrorKindTransient {
		marker = ErrTransient
	}
	return []error{e.err, marker}
}

// KindOf 返回错误分类。显式标记优先；未标记时网络超时、连接重置、
// 意外EOF与上下文超时视为可重试，其余一律不可重试。
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	switch {
	case errors.Is(err, ErrTransient):
		return ErrorKindTransient
	case errors.Is(err, ErrPermanent):
		return ErrorKindPermanent
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE):
		return ErrorKindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorKindTransient
	}
	return ErrorKindPermanent
}

// IsTransient 便捷判断
func IsTransient(err error) bool {
	return KindOf(err) == ErrorKindTransient
}
