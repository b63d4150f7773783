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
	distributionControllerOnce      sync.Once
	singletonDistributionController DistributionController
)

type DistributionControllerPlugin struct {
}

func (p *DistributionControllerPlugin) Name() string {
	return "distributionControllerPlugin"
}

func (p *DistributionControllerPlugin) MustCreateController(deps *manager.Dependencies) manager.Controller {
	assert.NotCircular()
	distributionControllerOnce.Do(func() {
		distributionApp, ok := deps.DistributionApp.(app.DistributionApp)
		if !ok {
			return
		}
		singletonDistributionController = NewDistributionController(distributionApp, jwtConfig(deps))
	})
	assert.NotNil(singletonDistributionController)
	return singletonDistributionController
}

type DistributionController interface {
	manager.Controller
}

type distributionControllerImpl struct {
	distributionApp app.DistributionApp
	jwt             config.JWTConfig
}

func NewDistributionController(distributionApp app.DistributionApp, jwt config.JWTConfig) DistributionController {
	return &distributionControllerImpl{distributionApp: distributionApp, jwt: jwt}
}

func (d *distributionControllerImpl) RegisterRoutes(r gin.IRouter) {
	auth := middleware.AuthMiddleware(d.jwt)
	videos := r.Group("/api/v1/videos/:video_id", auth)
	{
		videos.POST("/distributions", d.RequestDistribution)          // 登记多平台发布
		videos.GET("/distributions", d.ListStatus)                    // 各平台状态
		videos.POST("/distributions/:platform/retry", d.RetryPublish) // 重新发布
		videos.GET("/distributions/:platform/remote", d.RemoteStatus) // 平台侧状态
		videos.DELETE("/distributions/:platform", d.Unpublish)        // 平台侧删除
		videos.POST("/variants/:platform/retry", d.RetryVariant)      // 重新转码
	}
	r.PUT("/api/v1/credentials/:platform", auth, d.SaveCredential) // 保存平台授权
}

func (d *distributionControllerImpl) RequestDistribution(ctx *gin.Context) {
	var req cqe.RequestDistributionReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	req.VideoID = ctx.Param("video_id")
	req.OwnerID = middleware.UserUUID(ctx)
	status, err := d.distributionApp.RequestDistribution(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) ListStatus(ctx *gin.Context) {
	req := cqe.QueryVideoReq{VideoID: ctx.Param("video_id"), OwnerID: middleware.UserUUID(ctx)}
	status, err := d.distributionApp.ListStatus(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) RetryVariant(ctx *gin.Context) {
	status, err := d.distributionApp.RetryVariant(ctx.Request.Context(), platformAction(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) RetryPublish(ctx *gin.Context) {
	status, err := d.distributionApp.RetryPublish(ctx.Request.Context(), platformAction(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) RemoteStatus(ctx *gin.Context) {
	status, err := d.distributionApp.RemoteStatus(ctx.Request.Context(), platformAction(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) Unpublish(ctx *gin.Context) {
	status, err := d.distributionApp.Unpublish(ctx.Request.Context(), platformAction(ctx))
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, status)
}

func (d *distributionControllerImpl) SaveCredential(ctx *gin.Context) {
	var req cqe.SaveCredentialReq
	if err := ctx.ShouldBindJSON(&req); err != nil {
		restapi.Failed(ctx, errno.NewBizError(errno.ErrInvalidParam, err))
		return
	}
	req.Platform = ctx.Param("platform")
	req.OwnerID = middleware.UserUUID(ctx)
	cred, err := d.distributionApp.SaveCredential(ctx.Request.Context(), &req)
	if err != nil {
		restapi.Failed(ctx, err)
		return
	}
	restapi.Success(ctx, cred)
}

func platformAction(ctx *gin.Context) *cqe.PlatformActionReq {
	return &cqe.PlatformActionReq{
		VideoID:  ctx.Param("video_id"),
		Platform: ctx.Param("platform"),
		OwnerID:  middleware.UserUUID(ctx),
	}
}
