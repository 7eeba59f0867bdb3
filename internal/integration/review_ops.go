package integration

import (
	"context"
	"fmt"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/google/uuid"
)

// requireReviewer 评审人必须被指定为 REVIEWER 且拥有评审权限
func (s *txScope) requireReviewer() error {
	if err := s.require(policy.PermAssessmentReview); err != nil {
		return err
	}
	assigned, err := s.stakeholders.Exists(s.current.ID, s.actorID, string(workflow.StakeholderReviewer))
	if err != nil {
		return fmt.Errorf("failed to check stakeholder: %w", err)
	}
	if !assigned {
		return workflow.NewAuthorizationError(string(policy.PermAssessmentReview),
			"user %s is not an assigned reviewer of assessment %s", s.actorID, s.current.ID)
	}
	return nil
}

// alreadySubmitted 判断评审人是否已评审当前版本
func (s *txScope) alreadySubmitted() error {
	_, err := s.reviews.FindSubmitted(s.current.ID, s.current.CurrentVersion, s.actorID)
	if err == nil {
		return workflow.NewConflictError(fmt.Sprintf("reviewer %s already reviewed version %d of assessment %s",
			s.actorID, s.current.CurrentVersion, s.current.ID), nil)
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check submitted review: %w", err)
	}
	return nil
}

// openReview 取出评审人的草稿,没有时新建
func (s *txScope) openReview() (*workflow.Review, error) {
	row, err := s.reviews.FindOpen(s.current.ID, s.actorID)
	if err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("failed to load open review: %w", err)
		}
		return &workflow.Review{
			ID:           uuid.New().String(),
			AssessmentID: s.current.ID,
			ReviewerID:   s.actorID,
			CreatedAt:    s.now,
		}, nil
	}
	return reviewFromModel(row)
}

func (s *txScope) saveReview(r *workflow.Review) error {
	r.Version = s.current.CurrentVersion
	r.UpdatedAt = s.now
	row, err := reviewToModel(r)
	if err != nil {
		return err
	}
	if err := s.reviews.Save(row); err != nil {
		return fmt.Errorf("failed to save review: %w", err)
	}
	return nil
}

// SaveReviewDraft 保存评审草稿,每个评审人只有一份
func (m *assessmentManager) SaveReviewDraft(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*workflow.Review, error) {
	var draft *workflow.Review
	_, err := m.mutate(ctx, mutation{
		op:      "save_review_draft",
		id:      id,
		actorID: reviewerID,
		apply: func(s *txScope) error {
			if s.current.Status != workflow.StatusInReview {
				return workflow.NewStateError("saveReviewDraft", s.current.Status, workflow.StatusInReview)
			}
			if err := s.requireReviewer(); err != nil {
				return err
			}
			if err := in.ValidateDraft(m.policy); err != nil {
				return err
			}
			if err := s.alreadySubmitted(); err != nil {
				return err
			}
			r, err := s.openReview()
			if err != nil {
				return err
			}
			r.Apply(in)
			if err := s.saveReview(r); err != nil {
				return err
			}
			draft = r
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// SubmitReview 提交评审
//
// 当前版本的去重评审人数达到法定人数时转入待审批,只触发一次。
func (m *assessmentManager) SubmitReview(ctx context.Context, id, reviewerID string, in workflow.ReviewInput) (*ReviewOutcome, error) {
	outcome := &ReviewOutcome{Quorum: m.policy.Rules().ReviewQuorum}
	a, err := m.mutate(ctx, mutation{
		op:      "submit_review",
		id:      id,
		actorID: reviewerID,
		apply: func(s *txScope) error {
			a := s.current
			if a.Status != workflow.StatusInReview {
				return workflow.NewStateError("submitReview", a.Status, workflow.StatusInReview)
			}
			if err := s.requireReviewer(); err != nil {
				return err
			}
			if err := in.Validate(m.policy); err != nil {
				return err
			}
			if err := s.alreadySubmitted(); err != nil {
				return err
			}

			r, err := s.openReview()
			if err != nil {
				return err
			}
			r.Apply(in)
			submittedAt := s.now
			r.SubmittedAt = &submittedAt
			if err := s.saveReview(r); err != nil {
				return err
			}

			count, err := s.reviews.CountSubmittedReviewers(a.ID, a.CurrentVersion)
			if err != nil {
				return fmt.Errorf("failed to count reviews: %w", err)
			}
			a.ReviewCount = count
			s.dirty = true
			outcome.Review = r
			outcome.SubmittedCount = count

			s.emit(a, events.ReviewSubmitted{
				ReviewID:       r.ID,
				ReviewerID:     r.ReviewerID,
				Version:        r.Version,
				Recommendation: string(r.Recommendation),
				SubmittedCount: count,
				Quorum:         outcome.Quorum,
			})
			recommendation := string(r.Recommendation)
			s.afterCommit = append(s.afterCommit, func() { metrics.RecordReviewSubmitted(recommendation) })

			if count >= outcome.Quorum {
				reason := fmt.Sprintf("%d of %d reviews received", count, outcome.Quorum)
				if err := s.transitionAs(a, workflow.StatusAwaitingApproval, reason, SystemActor); err != nil {
					return err
				}
				outcome.QuorumReached = true
				s.afterCommit = append(s.afterCommit, metrics.RecordQuorumReached)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	outcome.Assessment = a
	return outcome, nil
}

// ListReviews 列出评审,version 为空时返回全部版本
func (m *assessmentManager) ListReviews(ctx context.Context, id, actorID string, version *int) ([]*workflow.Review, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	rows, err := m.reviewRepo.ListByAssessment(id, version)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	out := make([]*workflow.Review, 0, len(rows))
	for _, row := range rows {
		r, err := reviewFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}
