package errno

import (
	"errors"
	"net/http"
)

// code=0 请求成功
// code=4xx 客户端请求错误
// code=5xx 服务器端错误
// code=2xxxx 业务处理错误码

type Errno struct {
	Code    int
	Message string
}

// Error 实现error接口
func (e *Errno) Error() string {
	return e.Message
}

var (
	OK = &Errno{Code: 200, Message: "Success"}

	ErrInvalidParam = &Errno{Code: 400, Message: "Invalid parameter"}
	ErrUnauthorized = &Errno{Code: 401, Message: "Unauthorized"}
	ErrForbidden    = &Errno{Code: 403, Message: "Forbidden"}
	ErrNotFound     = &Errno{Code: 404, Message: "Not found"}

	ErrInternalServer = &Errno{Code: 500, Message: "Internal server error"}
	ErrDatabase       = &Errno{Code: 501, Message: "Database error"}
	ErrUnknown        = &Errno{Code: 510, Message: "Unknown error"}

	// 上传协议错误码
	ErrMissingParam          = &Errno{Code: 20001, Message: "Missing required parameter"}
	ErrFileNameIllegal       = &Errno{Code: 20002, Message: "File name is illegal"}
	ErrUploadLengthInvalid   = &Errno{Code: 20003, Message: "Upload length must be positive"}
	ErrPayloadTooLarge       = &Errno{Code: 20004, Message: "Upload exceeds the allowed size"}
	ErrOffsetConflict        = &Errno{Code: 20005, Message: "Upload offset does not match"}
	ErrUnsupportedMediaType  = &Errno{Code: 20006, Message: "Unsupported content type"}
	ErrUploadNotFound        = &Errno{Code: 20007, Message: "Upload session not found"}
	ErrUploadSessionExists   = &Errno{Code: 20008, Message: "Upload session already exists"}
	ErrUploadMetadataInvalid = &Errno{Code: 20009, Message: "Upload metadata is invalid"}
	ErrSourceAlreadyUploaded = &Errno{Code: 20010, Message: "Source video already uploaded"}
	ErrLockTimeout           = &Errno{Code: 20011, Message: "Upload session is busy"}

	// 分发流水线错误码
	ErrVideoNotFound         = &Errno{Code: 20101, Message: "Video not found"}
	ErrVideoUUIDRequired     = &Errno{Code: 20102, Message: "Video UUID is required"}
	ErrUserUUIDRequired      = &Errno{Code: 20103, Message: "User UUID is required"}
	ErrPlatformUnsupported   = &Errno{Code: 20104, Message: "Platform is not supported"}
	ErrVariantNotFound       = &Errno{Code: 20105, Message: "Variant not found"}
	ErrInvalidVariantStatus  = &Errno{Code: 20106, Message: "Invalid variant status"}
	ErrCredentialNotFound    = &Errno{Code: 20107, Message: "Platform credential not found"}
	ErrPublicationNotFound   = &Errno{Code: 20108, Message: "Publication not found"}
	ErrSourceNotReady        = &Errno{Code: 20109, Message: "Source video is not ready"}
	ErrQueueFull             = &Errno{Code: 20110, Message: "Event queue is full"}
	ErrPlatformsRequired     = &Errno{Code: 20111, Message: "At least one platform is required"}
	ErrInvalidPublishStatus  = &Errno{Code: 20112, Message: "Invalid publication status"}
	ErrVariantExists         = &Errno{Code: 20113, Message: "Variant already exists"}
	ErrVariantConflict       = &Errno{Code: 20114, Message: "Variant was modified concurrently"}
	ErrPlatformRequestFailed = &Errno{Code: 20115, Message: "Platform request failed"}
)

// HTTPStatus 将错误映射为HTTP状态码，未知错误按500处理
func HTTPStatus(err error) int {
	var e *Errno
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e {
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrUploadNotFound, ErrVideoNotFound, ErrVariantNotFound,
		ErrCredentialNotFound, ErrPublicationNotFound:
		return http.StatusNotFound
	case ErrOffsetConflict, ErrUploadSessionExists, ErrSourceAlreadyUploaded,
		ErrInvalidVariantStatus, ErrSourceNotReady, ErrInvalidPublishStatus, ErrLockTimeout,
		ErrVariantExists, ErrVariantConflict:
		return http.StatusConflict
	case ErrPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case ErrUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ErrQueueFull:
		return http.StatusServiceUnavailable
	case ErrPlatformRequestFailed:
		return http.StatusBadGateway
	}
	switch {
	case e.Code >= 400 && e.Code < 500:
		return e.Code
	case e.Code >= 20000:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
