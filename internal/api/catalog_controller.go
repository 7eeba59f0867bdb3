package api

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/gin-gonic/gin"
)

// CatalogController 维度目录与组织统计
type CatalogController struct {
	policy   *policy.Policy
	statsSvc service.StatisticsService
}

// NewCatalogController 创建目录控制器
func NewCatalogController(p *policy.Policy, statsSvc service.StatisticsService) *CatalogController {
	return &CatalogController{policy: p, statsSvc: statsSvc}
}

// Axes 返回 DRD 维度及成熟度等级
func (c *CatalogController) Axes(ctx *gin.Context) {
	Success(ctx, c.policy.Axes())
}

// OrganizationStatistics 组织评估统计
func (c *CatalogController) OrganizationStatistics(ctx *gin.Context) {
	orgID, ok := pathID(ctx, "orgId")
	if !ok {
		return
	}

	stats, err := c.statsSvc.OrganizationStatistics(ctx.Request.Context(), auth.UserID(ctx), orgID)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, stats)
}
