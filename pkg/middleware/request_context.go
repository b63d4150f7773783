package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ContextUserUUID  = "user_uuid"
	ContextRequestID = "request_id"
)

// RequestContextMiddleware 注入 request_id，便于下游和日志使用。
func RequestContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(ContextRequestID, reqID)
		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Next()
	}
}

// CORSMiddleware 放开跨域，并暴露断点续传需要读取的响应头
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, HEAD, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-UUID, X-Request-ID, Upload-Length, Upload-Offset, Upload-Metadata, Tus-Resumable")
		h.Set("Access-Control-Expose-Headers", "Location, Upload-Length, Upload-Offset, Tus-Resumable, Tus-Version, Tus-Max-Size, Tus-Extension, X-Request-ID")
		c.Next()
	}
}

// UserUUID 读取已认证的用户ID
func UserUUID(c *gin.Context) string {
	return c.GetString(ContextUserUUID)
}
