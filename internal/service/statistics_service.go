package service

import (
	"context"
	"fmt"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/integration"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"gorm.io/gorm"
)

// OrganizationStatistics 组织评估统计
type OrganizationStatistics struct {
	OrganizationID  string                    `json:"organizationId"`
	ByStatus        map[workflow.Status]int64 `json:"byStatus"`
	Recommendations map[string]int64          `json:"recommendations"`
	ApprovalRate    float64                   `json:"approvalRate"` // 已决定评估中批准的百分比
}

// StatisticsService 统计服务接口
type StatisticsService interface {
	OrganizationStatistics(ctx context.Context, actorID, organizationID string) (*OrganizationStatistics, error)
}

// statisticsService 统计服务实现
type statisticsService struct {
	db     *gorm.DB
	policy *policy.Policy
	roles  integration.RoleResolver
}

// NewStatisticsService 创建统计服务
func NewStatisticsService(db *gorm.DB, p *policy.Policy, roles integration.RoleResolver) StatisticsService {
	return &statisticsService{db: db, policy: p, roles: roles}
}

// OrganizationStatistics 统计组织内评估状态与评审建议分布
func (s *statisticsService) OrganizationStatistics(ctx context.Context, actorID, organizationID string) (*OrganizationStatistics, error) {
	if organizationID == "" {
		return nil, workflow.NewValidationError("organizationId", "organization is required")
	}
	role, err := s.roles.ResolveRole(ctx, actorID, organizationID)
	if err != nil {
		return nil, err
	}
	if !s.policy.Can(role, policy.PermAssessmentView) {
		return nil, workflow.NewAuthorizationError(string(policy.PermAssessmentView),
			"user %s cannot view assessments of organization %s", actorID, organizationID)
	}

	stats := &OrganizationStatistics{
		OrganizationID:  organizationID,
		ByStatus:        make(map[workflow.Status]int64, len(workflow.AllStatuses)),
		Recommendations: map[string]int64{},
	}
	for _, st := range workflow.AllStatuses {
		stats.ByStatus[st] = 0
	}

	var byStatus []struct {
		Status string
		Count  int64
	}
	err = s.db.WithContext(ctx).Model(&model.AssessmentModel{}).
		Select("status, COUNT(*) as count").
		Where("organization_id = ?", organizationID).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment statistics by status: %w", err)
	}
	for _, r := range byStatus {
		stats.ByStatus[workflow.Status(r.Status)] = r.Count
	}

	var byRecommendation []struct {
		Recommendation string
		Count          int64
	}
	err = s.db.WithContext(ctx).Model(&model.ReviewModel{}).
		Select("reviews.recommendation, COUNT(*) as count").
		Joins("JOIN assessments ON assessments.id = reviews.assessment_id").
		Where("assessments.organization_id = ? AND reviews.submitted_at IS NOT NULL", organizationID).
		Group("reviews.recommendation").
		Scan(&byRecommendation).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get review statistics: %w", err)
	}
	for _, r := range byRecommendation {
		stats.Recommendations[r.Recommendation] = r.Count
	}

	// 被新批准版本替代而归档的评估也计为批准
	approved := stats.ByStatus[workflow.StatusApproved] + stats.ByStatus[workflow.StatusArchived]
	if decided := approved + stats.ByStatus[workflow.StatusRejected]; decided > 0 {
		stats.ApprovalRate = float64(approved) / float64(decided) * 100
	}
	return stats, nil
}
