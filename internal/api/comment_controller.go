package api

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
)

// CommentController 评论控制器
type CommentController struct {
	assessmentService service.AssessmentService
}

// NewCommentController 创建评论控制器
func NewCommentController(assessmentService service.AssessmentService) *CommentController {
	return &CommentController{assessmentService: assessmentService}
}

// Add 添加评论或回复
func (c *CommentController) Add(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var in workflow.CommentInput
	if !bindJSON(ctx, &in) {
		return
	}

	comment, err := c.assessmentService.AddComment(ctx.Request.Context(), id, auth.UserID(ctx), in)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Created(ctx, comment)
}

// Resolve 标记评论已解决
func (c *CommentController) Resolve(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	commentID, ok := pathID(ctx, "commentId")
	if !ok {
		return
	}

	comment, err := c.assessmentService.ResolveComment(ctx.Request.Context(), id, commentID, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, comment)
}

// List 查询评论,可按维度过滤
func (c *CommentController) List(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var axisID *string
	if axis, present := ctx.GetQuery("axisId"); present {
		axisID = &axis
	}

	comments, err := c.assessmentService.ListComments(ctx.Request.Context(), id, auth.UserID(ctx), axisID)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, comments)
}
