package service

import (
	"context"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/integration"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
)

// AssessmentService 评估服务
//
// 在流程引擎之上记录操作审计。查询操作直接委托给引擎。
type AssessmentService interface {
	integration.AssessmentManager
	AuditTrail(ctx context.Context, id, actorID string) ([]*AuditEntry, error)
}

type assessmentService struct {
	integration.AssessmentManager
	auditLogSvc AuditLogService
}

// NewAssessmentService 创建评估服务,auditLogSvc 可为 nil
func NewAssessmentService(manager integration.AssessmentManager, auditLogSvc AuditLogService) AssessmentService {
	return &assessmentService{AssessmentManager: manager, auditLogSvc: auditLogSvc}
}

// audit 审计失败只记录日志,不影响已提交的操作
func (s *assessmentService) audit(ctx context.Context, userID, organizationID, action, resourceType, resourceID string, details interface{}) {
	if s.auditLogSvc == nil {
		return
	}
	if err := s.auditLogSvc.RecordAction(ctx, userID, organizationID, action, resourceType, resourceID, details); err != nil {
		logger.FromContext(ctx).WithError(err).WithField("action", action).Warn("failed to record audit log")
	}
}

// Create 创建评估
func (s *assessmentService) Create(ctx context.Context, actorID, organizationID, title string) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.Create(ctx, actorID, organizationID, title)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, a.OrganizationID, "create", "assessment", a.ID, map[string]string{"title": a.Title})
	return a, nil
}

// UpdateAxis 更新维度
func (s *assessmentService) UpdateAxis(ctx context.Context, id, actorID, axisID string, patch workflow.AxisPatch) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.UpdateAxis(ctx, id, actorID, axisID, patch)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, a.OrganizationID, "update_axis", "assessment", id, map[string]interface{}{"axis": axisID, "patch": patch})
	return a, nil
}

// SubmitForReview 提交评审
func (s *assessmentService) SubmitForReview(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.SubmitForReview(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, a.OrganizationID, "submit", "assessment", id, map[string]int{"version": a.CurrentVersion})
	return a, nil
}

// StartRevision 驳回后重新编辑
func (s *assessmentService) StartRevision(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.StartRevision(ctx, id, actorID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, a.OrganizationID, "revise", "assessment", id, nil)
	return a, nil
}

// Archive 归档
func (s *assessmentService) Archive(ctx context.Context, id, actorID, reason string) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.Archive(ctx, id, actorID, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, a.OrganizationID, "archive", "assessment", id, map[string]string{"reason": reason})
	return a, nil
}

// Decide 审批决定
func (s *assessmentService) Decide(ctx context.Context, id, approverID string, decision workflow.Decision, reason string) (*workflow.Assessment, error) {
	a, err := s.AssessmentManager.Decide(ctx, id, approverID, decision, reason)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, approverID, a.OrganizationID, "decide", "assessment", id, map[string]string{
		"decision": string(decision),
		"reason":   reason,
	})
	return a, nil
}

// AssignStakeholder 指定参与人
func (s *assessmentService) AssignStakeholder(ctx context.Context, id, actorID, userID string, kind workflow.StakeholderKind) (*workflow.Stakeholder, error) {
	st, err := s.AssessmentManager.AssignStakeholder(ctx, id, actorID, userID, kind)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "", "assign_stakeholder", "assessment", id, map[string]string{
		"user_id": userID,
		"kind":    string(kind),
	})
	return st, nil
}

// SaveReviewDraft 保存评审草稿
func (s *assessmentService) SaveReviewDraft(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*workflow.Review, error) {
	r, err := s.AssessmentManager.SaveReviewDraft(ctx, id, reviewerID, in)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, reviewerID, "", "save_review_draft", "review", r.ID, map[string]interface{}{
		"assessment_id": id,
		"version":       r.Version,
	})
	return r, nil
}

// SubmitReview 提交评审
func (s *assessmentService) SubmitReview(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*integration.ReviewOutcome, error) {
	out, err := s.AssessmentManager.SubmitReview(ctx, id, reviewerID, in)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, reviewerID, out.Assessment.OrganizationID, "submit_review", "review", out.Review.ID, map[string]interface{}{
		"assessment_id":  id,
		"version":        out.Review.Version,
		"recommendation": out.Review.Recommendation,
		"quorum_reached": out.QuorumReached,
	})
	return out, nil
}

// RestoreVersion 恢复历史版本
func (s *assessmentService) RestoreVersion(ctx context.Context, id string, version int, actorID string) (*workflow.Version, error) {
	v, err := s.AssessmentManager.RestoreVersion(ctx, id, version, actorID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, v.Snapshot.OrganizationID, "restore", "assessment", id, map[string]int{
		"restored_from": version,
		"version":       v.Version,
	})
	return v, nil
}

// AddComment 添加评论
func (s *assessmentService) AddComment(ctx context.Context, id, actorID string, in workflow.CommentInput) (*workflow.Comment, error) {
	c, err := s.AssessmentManager.AddComment(ctx, id, actorID, in)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "", "comment", "comment", c.ID, map[string]string{
		"assessment_id": id,
		"axis":          c.AxisID,
	})
	return c, nil
}

// ResolveComment 解决评论
func (s *assessmentService) ResolveComment(ctx context.Context, id, commentID, actorID string) (*workflow.Comment, error) {
	c, err := s.AssessmentManager.ResolveComment(ctx, id, commentID, actorID)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actorID, "", "resolve_comment", "comment", commentID, map[string]string{"assessment_id": id})
	return c, nil
}

// AuditTrail 返回评估的操作记录,需要查看权限
func (s *assessmentService) AuditTrail(ctx context.Context, id, actorID string) ([]*AuditEntry, error) {
	if _, err := s.AssessmentManager.Get(ctx, id, actorID); err != nil {
		return nil, err
	}
	if s.auditLogSvc == nil {
		return []*AuditEntry{}, nil
	}
	return s.auditLogSvc.ListByResource("assessment", id)
}
