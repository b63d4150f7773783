package http

import (
	"sync"

	"github.com/gin-gonic/gin"

	"distribution-service/ddd/application/app"
	"distribution-service/ddd/application/cqe"
	"distribution-service/pkg/assert"
	"distribution-service/pkg/config"
	"distribution-service/pkg/errno"
	"distribution-service/pkg/manager"
	"distribution-service/pkg/middleware"
	"distribution-service/pkg/restapi"
)

var (
	videoControllerOnce      sync.Once
	singletonVideoController VideoController
)

type VideoControllerPlugin struct {
}

func (p *VideoControllerPlugin) Name() string {
	return "videoControllerPlugin"
}

func (p *VideoControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	assert.NotCircular()
	videoControllerOnce.Do(func() {
		videoApp, ok := deps.VideoApp.(app.VideoApp)
		if !ok {
			return
		}
		singletonVideoController = NewVideoController(videoApp, jwtConfig(deps))
	})
	assert.NotNil(singletonVideoController)
	return singletonVideoController
}

type VideoController interface {
	manager.Controller
}

type videoControllerImpl struct {
	videoApp app.VideoApp
	jwt      config.JWTConfig
}

func NewVideoController(videoApp app.VideoApp, jwt config.JWTConfig) VideoController {
	return &videoControllerImpl{videoApp: videoApp, jwt: jwt}
}

func (v *videoControllerImpl) RegisterRoutes(r gin.IRouter) {
	videos := r.Group("/api/v1/videos", middleware.AuthMiddleware(v.jwt))
	{
		videos.POST("", v.CreateVideo)       // 创建视频草稿
		videos.GET("/:video_id", v.GetVideo) // 视频详情
	}
}

func (v *videoControllerImpl) CreateVideo(ctx *gin.Context) {
	var req cqe.CreateVideoReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	req.OwnerID = middleware.UserUUID(ctx)
	video, err := v.videoApp.CreateVideo(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Created(ctx, video)
}

func (v *videoControllerImpl) GetVideo(ctx *gin.Context) {
	req := cqe.QueryVideoReq{VideoID: ctx.Param("video_id"), OwnerID: middleware.UserUUID(ctx)}
	video, err := v.videoApp.GetVideo(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, video)
}
