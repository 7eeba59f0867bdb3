package api

import (
	"net/http"
	"strconv"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/auth"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/integration"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/service"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/utils"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateAssessmentRequest 创建评估请求
type CreateAssessmentRequest struct {
	OrganizationID string `json:"organizationId" binding:"required,max=64"`
	Title          string `json:"title" binding:"required"`
}

// ArchiveRequest 归档请求
type ArchiveRequest struct {
	Reason string `json:"reason" binding:"max=2000"`
}

// DecisionRequest 审批决定请求
type DecisionRequest struct {
	Decision workflow.Decision `json:"decision" binding:"required"`
	Reason   string            `json:"reason" binding:"max=2000"`
}

// AssignStakeholderRequest 指定参与人请求
type AssignStakeholderRequest struct {
	UserID string                   `json:"userId" binding:"required,max=64"`
	Kind   workflow.StakeholderKind `json:"kind" binding:"required"`
}

// AssessmentController 评估控制器
type AssessmentController struct {
	assessmentService service.AssessmentService
}

// NewAssessmentController 创建评估控制器
func NewAssessmentController(assessmentService service.AssessmentService) *AssessmentController {
	return &AssessmentController{assessmentService: assessmentService}
}

// pathID 读取并校验路径 ID,失败时已写出响应
func pathID(ctx *gin.Context, name string) (string, bool) {
	id := ctx.Param(name)
	if err := utils.ValidateID(id); err != nil {
		RespondError(ctx, err)
		return "", false
	}
	return id, true
}

// bindJSON 绑定请求体,失败时已写出响应
func bindJSON(ctx *gin.Context, req interface{}) bool {
	if err := ctx.ShouldBindJSON(req); err != nil {
		Error(ctx, http.StatusBadRequest, "invalid request", gin.H{"kind": workflow.KindValidation, "error": err.Error()})
		return false
	}
	return true
}

// pageParams 解析分页参数
func pageParams(ctx *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(ctx.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(ctx.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// Create 创建评估
func (c *AssessmentController) Create(ctx *gin.Context) {
	var req CreateAssessmentRequest
	if !bindJSON(ctx, &req) {
		return
	}

	a, err := c.assessmentService.Create(ctx.Request.Context(), auth.UserID(ctx), req.OrganizationID, req.Title)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Created(ctx, a)
}

// List 查询组织内的评估
func (c *AssessmentController) List(ctx *gin.Context) {
	page, pageSize := pageParams(ctx)
	filter := integration.ListFilter{
		OrganizationID: ctx.Query("organizationId"),
		OwnerID:        ctx.Query("ownerId"),
		Status:         workflow.Status(ctx.Query("status")),
		Offset:         (page - 1) * pageSize,
		Limit:          pageSize,
	}

	items, total, err := c.assessmentService.List(ctx.Request.Context(), auth.UserID(ctx), filter)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Paginated(ctx, items, NewPaginationInfo(page, pageSize, total))
}

// Get 获取评估
func (c *AssessmentController) Get(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	a, err := c.assessmentService.Get(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// UpdateAxis 修改维度评分
func (c *AssessmentController) UpdateAxis(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var patch workflow.AxisPatch
	if !bindJSON(ctx, &patch) {
		return
	}

	a, err := c.assessmentService.UpdateAxis(ctx.Request.Context(), id, auth.UserID(ctx), ctx.Param("axisId"), patch)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// Submit 提交评审
func (c *AssessmentController) Submit(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	a, err := c.assessmentService.SubmitForReview(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// Revise 驳回后重新编辑
func (c *AssessmentController) Revise(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	a, err := c.assessmentService.StartRevision(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// Archive 归档
func (c *AssessmentController) Archive(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req ArchiveRequest
	if ctx.Request.ContentLength != 0 && !bindJSON(ctx, &req) {
		return
	}

	a, err := c.assessmentService.Archive(ctx.Request.Context(), id, auth.UserID(ctx), req.Reason)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// Decide 审批决定
func (c *AssessmentController) Decide(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req DecisionRequest
	if !bindJSON(ctx, &req) {
		return
	}

	a, err := c.assessmentService.Decide(ctx.Request.Context(), id, auth.UserID(ctx), req.Decision, req.Reason)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, a)
}

// AssignStakeholder 指定评审人或审批人
func (c *AssessmentController) AssignStakeholder(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}
	var req AssignStakeholderRequest
	if !bindJSON(ctx, &req) {
		return
	}

	st, err := c.assessmentService.AssignStakeholder(ctx.Request.Context(), id, auth.UserID(ctx), req.UserID, req.Kind)
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Created(ctx, st)
}

// ListStakeholders 查询参与人
func (c *AssessmentController) ListStakeholders(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	list, err := c.assessmentService.ListStakeholders(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, list)
}

// History 状态流转记录
func (c *AssessmentController) History(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	history, err := c.assessmentService.History(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, history)
}

// AuditTrail 操作审计记录
func (c *AssessmentController) AuditTrail(ctx *gin.Context) {
	id, ok := pathID(ctx, "id")
	if !ok {
		return
	}

	entries, err := c.assessmentService.AuditTrail(ctx.Request.Context(), id, auth.UserID(ctx))
	if err != nil {
		RespondError(ctx, err)
		return
	}
	Success(ctx, entries)
}
