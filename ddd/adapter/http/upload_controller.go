package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"

	"distribution-service/ddd/application/app"
	"distribution-service/ddd/application/cqe"
	"distribution-service/pkg/assert"
	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/logger"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/middleware"
	"distribution-service/pkg/tus"
)

var (
	uploadControllerOnce      sync.Once
	singletonUploadController UploadController
)

type UploadControllerPlugin struct {
}

func (p *UploadControllerPlugin) Name() string {
	return "uploadControllerPlugin"
}

func (p *UploadControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	assert.NotCircular()
	uploadControllerOnce.Do(func() {
		uploadApp, ok := deps.UploadApp.(app.UploadApp)
		if !ok {
			return
		}
		singletonUploadController = NewUploadController(uploadApp, jwtConfig(deps))
	})
	assert.NotNil(singletonUploadController)
	return singletonUploadController
}

type UploadController interface {
	manager.Controller
}

// uploadControllerImpl 断点续传协议：状态码和响应头即协议本身，不走统一 JSON 响应
type uploadControllerImpl struct {
	uploadApp app.UploadApp
	jwt       config.JWTConfig
}

func NewUploadController(uploadApp app.UploadApp, jwt config.JWTConfig) UploadController {
	return &uploadControllerImpl{uploadApp: uploadApp, jwt: jwt}
}

func (u *uploadControllerImpl) RegisterRoutes(r gin.IRouter) {
	auth := middleware.AuthMiddleware(u.jwt)
	g := r.Group("/api/v1/upload")
	g.Use(tusResumable())
	{
		g.OPTIONS("/:video_id", u.Options)
		g.POST("/:video_id", auth, u.Create)
		g.HEAD("/:video_id", auth, u.Head)
		g.PATCH("/:video_id", auth, u.Patch)
		g.DELETE("/:video_id", auth, u.Delete)
	}
}

func tusResumable() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(tus.HeaderResumable, tus.Version)
		c.Next()
	}
}

// Options 协议能力声明
func (u *uploadControllerImpl) Options(c *gin.Context) {
	caps := u.uploadApp.Capabilities()
	c.Header(tus.HeaderVersion, tus.Version)
	c.Header(tus.HeaderExtension, tus.Extensions)
	c.Header(tus.HeaderMaxSize, strconv.FormatInt(caps.MaxSize, 10))
	c.Header(tus.HeaderAllowedTypes, strings.Join(caps.AllowedExtensions, ","))
	c.Status(http.StatusNoContent)
}

// Create 创建上传会话
func (u *uploadControllerImpl) Create(c *gin.Context) {
	length, err := tus.ParseInt64(c.GetHeader(tus.HeaderUploadLength))
	if err != nil {
		u.fail(c, errno.NewBizError(errno.ErrUploadLengthInvalid, err))
		return
	}
	meta, err := tus.ParseMetadata(c.GetHeader(tus.HeaderUploadMetadata))
	if err != nil {
		u.fail(c, errno.NewBizError(errno.ErrUploadMetadataInvalid, err))
		return
	}
	session, err := u.uploadApp.CreateUpload(c.Request.Context(), &cqe.CreateUploadReq{
		VideoID:  c.Param("video_id"),
		OwnerID:  middleware.UserUUID(c),
		Length:   length,
		Metadata: meta,
	})
	if err != nil {
		// 创建时超过上限属于参数错误
		if errors.Is(err, errno.ErrPayloadTooLarge) {
			u.failWith(c, http.StatusBadRequest, err)
			return
		}
		u.fail(c, err)
		return
	}
	c.Header("Location", c.Request.URL.Path)
	c.Header(tus.HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	c.Status(http.StatusCreated)
}

// Head 查询已接收偏移
func (u *uploadControllerImpl) Head(c *gin.Context) {
	session, err := u.uploadApp.QueryOffset(c.Request.Context(), c.Param("video_id"), middleware.UserUUID(c))
	if err != nil {
		u.fail(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header(tus.HeaderUploadOffset, strconv.FormatInt(session.Offset, 10))
	c.Header(tus.HeaderUploadLength, strconv.FormatInt(session.Length, 10))
	c.Status(http.StatusOK)
}

// Patch 追加数据
func (u *uploadControllerImpl) Patch(c *gin.Context) {
	if !strings.EqualFold(mediaType(c.GetHeader("Content-Type")), tus.ContentTypeOffsetStream) {
		u.fail(c, errno.ErrUnsupportedMediaType)
		return
	}
	offset, err := tus.ParseInt64(c.GetHeader(tus.HeaderUploadOffset))
	if err != nil {
		u.fail(c, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	res, err := u.uploadApp.AppendChunk(c.Request.Context(), &cqe.AppendUploadReq{
		VideoID:       c.Param("video_id"),
		OwnerID:       middleware.UserUUID(c),
		Offset:        offset,
		ContentLength: c.Request.ContentLength,
		Body:          c.Request.Body,
	})
	if err != nil {
		u.fail(c, err)
		return
	}
	c.Header(tus.HeaderUploadOffset, strconv.FormatInt(res.Offset, 10))
	c.Status(http.StatusNoContent)
}

// Delete 取消上传，幂等
func (u *uploadControllerImpl) Delete(c *gin.Context) {
	if err := u.uploadApp.CancelUpload(c.Request.Context(), c.Param("video_id"), middleware.UserUUID(c)); err != nil {
		u.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (u *uploadControllerImpl) fail(c *gin.Context, err error) {
	u.failWith(c, errno.HTTPStatus(err), err)
}

func (u *uploadControllerImpl) failWith(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		logger.Error("upload request failed", map[string]interface{}{
			"method":     c.Request.Method,
			"video_id":   c.Param("video_id"),
			"request_id": c.GetString(middleware.ContextRequestID),
			"error":      err.Error(),
		})
	}
	_, msg := errno.Decode(err)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.AbortWithStatus(status)
	if c.Request.Method != http.MethodHead {
		_, _ = c.Writer.WriteString(msg)
	}
}

func mediaType(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

func jwtConfig(deps *manager.Dependencies) config.JWTConfig {
	if deps != nil && deps.Config != nil {
		return deps.Config.JWT
	}
	if cfg := config.GetGlobalConfig(); cfg != nil {
		return cfg.JWT
	}
	return config.JWTConfig{}
}
