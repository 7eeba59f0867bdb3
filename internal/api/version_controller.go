package api

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/utils"
	"github.com/gin-gonic/gin"
)

// VersionController 版本控制器
type VersionController struct {
	assessmentService service.AssessmentService
}

// NewVersionController 创建版本控制器
func NewVersionController(assessmentService service.AssessmentService) *VersionController {
	return &VersionController{assessmentService: assessmentService}
}

func pathVersion(ctx *gin.Context) (int, bool) {
	v, err := utils.ParseVersion(ctx.Param("version"))
	if err != nil {
		RespondError(ctx, err)
		return 0, false
	}
	return v, true
}

// List 版本列表
func (c *VersionController) List(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	versions, err := c.assessmentService.ListVersions(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, versions)
}

// Get 获取指定版本快照
func (c *VersionController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	version, ok := pathVersion(ctx)
	if !ok {
		return
	}

	v, err := c.assessmentService.GetVersion(ctx.Request.Context(), id, version, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, v)
}

// Restore 以历史版本内容生成新版本
func (c *VersionController) Restore(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	version, ok := pathVersion(ctx)
	if !ok {
		return
	}

	v, err := c.assessmentService.RestoreVersion(ctx.Request.Context(), id, version, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Created(ctx, v)
}
