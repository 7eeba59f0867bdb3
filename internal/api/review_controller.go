package api

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/utils"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
)

// ReviewController 评审控制器
type ReviewController struct {
	assessmentService service.AssessmentService
}

// NewReviewController 创建评审控制器
func NewReviewController(assessmentService service.AssessmentService) *ReviewController {
	return &ReviewController{assessmentService: assessmentService}
}

// SaveDraft 保存评审草稿
func (c *ReviewController) SaveDraft(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var in workflow.ReviewInput
	if !bindJSON(ctx, &in) {
		return
	}

	r, err := c.assessmentService.SaveReviewDraft(ctx.Request.Context(), id, auth.UserID(ctx), in)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, r)
}

// Submit 提交评审,返回法定人数进度
func (c *ReviewController) Submit(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var in workflow.ReviewInput
	if !bindJSON(ctx, &in) {
		return
	}

	out, err := c.assessmentService.SubmitReview(ctx.Request.Context(), id, auth.UserID(ctx), in)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Created(ctx, out)
}

// List 查询评审,可按版本过滤
func (c *ReviewController) List(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var version *int
	if raw, present := ctx.GetQuery("version"); present {
		v, err := utils.ParseVersion(raw)
		if err != nil {
			RespondError(ctx, err)
			return
		}
		version = &v
	}

	reviews, err := c.assessmentService.ListReviews(ctx.Request.Context(), id, auth.UserID(ctx), version)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, reviews)
}
