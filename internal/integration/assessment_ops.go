package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/logger"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/repository"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxTitleLength = 200

// Create 创建评估草稿
func (m *assessmentManager) Create(ctx context.Context, actorID, organizationID, title string) (*workflow.Assessment, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, workflow.NewValidationError("organizationId", "organization is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, workflow.NewValidationError("title", "title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, workflow.NewValidationError("title", "title exceeds %d characters", maxTitleLength)
	}

	role, err := m.roles.ResolveRole(ctx, actorID, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role of %s: %w", actorID, err)
	}
	if !m.policy.Can(role, policy.PermAssessmentCreate) {
		return nil, workflow.NewAuthorizationError(string(policy.PermAssessmentCreate),
			"user %s may not create assessments in organization %s", actorID, organizationID)
	}

	a := workflow.NewAssessment(uuid.New().String(), organizationID, actorID, title, m.policy, m.now())
	row, err := assessmentToModel(a)
	if err != nil {
		return nil, err
	}
	if err := repository.NewAssessmentRepository(m.db.WithContext(ctx)).Create(row); err != nil {
		return nil, fmt.Errorf("failed to create assessment: %w", err)
	}
	metrics.RecordAssessmentCreated()

	logger.FromContext(ctx).WithFields(logrus.Fields{
		"assessment_id":   a.ID,
		"organization_id": organizationID,
	}).Info("assessment created")
	return a, nil
}

// Get 查询评估
func (m *assessmentManager) Get(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	return m.viewable(ctx, id, actorID)
}

// List 分页查询组织内的评估
func (m *assessmentManager) List(ctx context.Context, actorID string, filter ListFilter) ([]*workflow.Assessment, int64, error) {
	if filter.OrganizationID == "" {
		return nil, 0, workflow.NewValidationError("organizationId", "organization is required")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, workflow.NewValidationError("status", "unknown status %s", filter.Status)
	}
	role, err := m.roles.ResolveRole(ctx, actorID, filter.OrganizationID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve role of %s: %w", actorID, err)
	}
	if !m.policy.Can(role, policy.PermAssessmentView) {
		return nil, 0, workflow.NewAuthorizationError(string(policy.PermAssessmentView),
			"user %s may not view assessments of organization %s", actorID, filter.OrganizationID)
	}

	query := &repository.AssessmentFilter{
		OrganizationID: &filter.OrganizationID,
		Offset:         filter.Offset,
		Limit:          filter.Limit,
	}
	if filter.OwnerID != "" {
		query.OwnerID = &filter.OwnerID
	}
	if filter.Status != "" {
		status := string(filter.Status)
		query.Status = &status
	}

	rows, total, err := m.assessmentRepo.FindByFilter(query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list assessments: %w", err)
	}
	items := make([]*workflow.Assessment, 0, len(rows))
	for _, row := range rows {
		a, err := assessmentFromModel(row)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

// UpdateAxis 修改单个维度,字段级后写覆盖先写
func (m *assessmentManager) UpdateAxis(ctx context.Context, id, actorID, axisID string, patch workflow.AxisPatch) (*workflow.Assessment, error) {
	return m.mutate(ctx, mutation{
		op:      "update_axis",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if !a.Status.Editable() {
				return workflow.NewStateError("updateAxis", a.Status, workflow.StatusDraft, workflow.StatusRejected)
			}
			if err := s.requireOwnerOr(policy.PermAssessmentEdit); err != nil {
				return err
			}
			if !m.policy.HasAxis(axisID) {
				return workflow.NewValidationError("axisId", "unknown axis %s", axisID)
			}
			if err := patch.Validate(); err != nil {
				return err
			}
			a.ApplyAxisPatch(axisID, patch)
			s.dirty = true
			return nil
		},
	})
}

// SubmitForReview 冻结当前数据为新版本并进入评审
func (m *assessmentManager) SubmitForReview(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	return m.mutate(ctx, mutation{
		op:      "submit",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if !a.Status.Editable() {
				return workflow.NewStateError("submitForReview", a.Status, workflow.StatusDraft, workflow.StatusRejected)
			}
			if err := s.requireOwnerOr(policy.PermAssessmentSubmit); err != nil {
				return err
			}
			if err := a.CheckComplete(m.policy); err != nil {
				return err
			}

			latest, err := s.versions.MaxVersion(a.ID)
			if err != nil {
				return fmt.Errorf("failed to read latest version: %w", err)
			}
			a.CurrentVersion = latest + 1
			if err := s.transition(a, workflow.StatusInReview, ""); err != nil {
				return err
			}
			submittedAt := s.now
			a.SubmittedAt = &submittedAt
			a.SLAWarnedAt = nil
			a.ReviewCount = 0
			a.RejectionReason = ""

			if _, err := s.createVersion(a, latest, 0, "Submitted for review"); err != nil {
				return err
			}
			// 上一轮未提交的评审草稿作废
			discarded, err := s.reviews.DeleteOpen(a.ID)
			if err != nil {
				return fmt.Errorf("failed to discard open reviews: %w", err)
			}
			if discarded > 0 {
				logger.FromContext(ctx).WithFields(logrus.Fields{
					"assessment_id": a.ID,
					"discarded":     discarded,
				}).Info("open reviews of the previous round discarded")
			}
			return nil
		},
	})
}

// StartRevision 被驳回后由负责人重新开始修改
func (m *assessmentManager) StartRevision(ctx context.Context, id, actorID string) (*workflow.Assessment, error) {
	return m.mutate(ctx, mutation{
		op:      "start_revision",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if a.Status != workflow.StatusRejected {
				return workflow.NewStateError("startRevision", a.Status, workflow.StatusRejected)
			}
			if !a.IsOwner(actorID) {
				return workflow.NewAuthorizationError(string(policy.PermAssessmentEdit),
					"only the owner may start a revision of assessment %s", a.ID)
			}
			if err := s.require(policy.PermAssessmentEdit); err != nil {
				return err
			}
			return s.transition(a, workflow.StatusDraft, "revision started")
		},
	})
}

// Archive 归档已批准的评估
func (m *assessmentManager) Archive(ctx context.Context, id, actorID, reason string) (*workflow.Assessment, error) {
	return m.mutate(ctx, mutation{
		op:      "archive",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if a.Status != workflow.StatusApproved {
				return workflow.NewStateError("archive", a.Status, workflow.StatusApproved)
			}
			if err := s.require(policy.PermAssessmentArchive); err != nil {
				return err
			}
			return s.transition(a, workflow.StatusArchived, strings.TrimSpace(reason))
		},
	})
}

// Decide 审批决定
//
// 批准时同组织内其他已批准的评估被归档。
func (m *assessmentManager) Decide(ctx context.Context, id, approverID string, decision workflow.Decision, reason string) (*workflow.Assessment, error) {
	return m.mutate(ctx, mutation{
		op:      "decide",
		id:      id,
		actorID: approverID,
		apply: func(s *txScope) error {
			a := s.current
			if a.Status != workflow.StatusAwaitingApproval {
				return workflow.NewStateError("decide", a.Status, workflow.StatusAwaitingApproval)
			}
			if err := s.require(policy.PermAssessmentApprove); err != nil {
				return err
			}
			if !decision.Valid() {
				return workflow.NewValidationError("decision", "decision must be APPROVE or REJECT")
			}
			reason = strings.TrimSpace(reason)

			if decision == workflow.DecisionReject {
				if reason == "" {
					return workflow.NewValidationError("reason", "a reason is required to reject an assessment")
				}
				a.RejectionReason = reason
				return s.transition(a, workflow.StatusRejected, reason)
			}

			if err := s.transition(a, workflow.StatusApproved, reason); err != nil {
				return err
			}
			return s.supersede(a)
		},
	})
}

// supersede 归档同组织内更早批准的评估
func (s *txScope) supersede(approved *workflow.Assessment) error {
	rows, err := s.assessments.FindApprovedInOrganization(approved.OrganizationID, approved.ID)
	if err != nil {
		return fmt.Errorf("failed to find approved assessments: %w", err)
	}
	for _, row := range rows {
		older, err := assessmentFromModel(row)
		if err != nil {
			return err
		}
		if err := s.transitionAs(older, workflow.StatusArchived, "superseded by "+approved.ID, SystemActor); err != nil {
			return err
		}
		if err := s.save(older); err != nil {
			return err
		}
	}
	return nil
}

// History 状态变更历史
func (m *assessmentManager) History(ctx context.Context, id, actorID string) ([]*workflow.StateChange, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	rows, err := m.historyRepo.FindByAssessmentID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	out := make([]*workflow.StateChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, historyFromModel(row))
	}
	return out, nil
}

// AssignStakeholder 指定评审人或审批人
func (m *assessmentManager) AssignStakeholder(ctx context.Context, id, actorID, userID string, kind workflow.StakeholderKind) (*workflow.Stakeholder, error) {
	var assigned *workflow.Stakeholder
	_, err := m.mutate(ctx, mutation{
		op:      "assign_stakeholder",
		id:      id,
		actorID: actorID,
		others:  []string{userID},
		apply: func(s *txScope) error {
			a := s.current
			if a.Status.Terminal() {
				return workflow.NewStateError("assignStakeholder", a.Status,
					workflow.StatusDraft, workflow.StatusInReview, workflow.StatusAwaitingApproval,
					workflow.StatusApproved, workflow.StatusRejected)
			}
			if err := s.require(policy.PermStakeholderAssign); err != nil {
				return err
			}
			if strings.TrimSpace(userID) == "" {
				return workflow.NewValidationError("userId", "user is required")
			}
			if !kind.Valid() {
				return workflow.NewValidationError("kind", "kind must be REVIEWER or APPROVER")
			}
			role := s.roles[userID]
			if role == "" {
				return workflow.NewValidationError("userId",
					"user %s is not a member of organization %s", userID, a.OrganizationID)
			}
			needed := policy.PermAssessmentReview
			if kind == workflow.StakeholderApprover {
				needed = policy.PermAssessmentApprove
			}
			if !m.policy.Can(role, needed) {
				return workflow.NewValidationError("userId", "role %s of user %s lacks %s", role, userID, needed)
			}

			row := &model.StakeholderModel{
				AssessmentID: a.ID,
				UserID:       userID,
				Kind:         string(kind),
				AssignedBy:   actorID,
				CreatedAt:    s.now,
			}
			exists, err := s.stakeholders.Exists(a.ID, userID, string(kind))
			if err != nil {
				return fmt.Errorf("failed to check stakeholder: %w", err)
			}
			if err := s.stakeholders.Save(row); err != nil {
				return fmt.Errorf("failed to save stakeholder: %w", err)
			}
			assigned = stakeholderFromModel(row)
			if !exists {
				s.emit(a, events.StakeholderAssigned{UserID: userID, Kind: string(kind), AssignedBy: actorID})
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// ListStakeholders 列出参与人
func (m *assessmentManager) ListStakeholders(ctx context.Context, id, actorID string) ([]*workflow.Stakeholder, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	rows, err := m.stakeholderRepo.ListByAssessment(id)
	if err != nil {
		return nil, fmt.Errorf("failed to list stakeholders: %w", err)
	}
	out := make([]*workflow.Stakeholder, 0, len(rows))
	for _, row := range rows {
		out = append(out, stakeholderFromModel(row))
	}
	return out, nil
}

// isNotFound 判断记录是否不存在
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
