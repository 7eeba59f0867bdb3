package integration

import (
	"context"
	"fmt"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/google/uuid"
)

// commentable 已归档的评估不再接受评论
func commentable(op string, a *workflow.Assessment) error {
	if a.Status.Terminal() {
		return workflow.NewStateError(op, a.Status,
			workflow.StatusDraft, workflow.StatusInReview, workflow.StatusAwaitingApproval,
			workflow.StatusApproved, workflow.StatusRejected)
	}
	return nil
}

// findComment 读取属于当前评估的评论
func (s *txScope) findComment(commentID string) (*workflow.Comment, error) {
	row, err := s.comments.FindByID(commentID)
	if err != nil {
		if isNotFound(err) {
			return nil, workflow.NewNotFoundError("comment", commentID)
		}
		return nil, fmt.Errorf("failed to load comment: %w", err)
	}
	if row.AssessmentID != s.current.ID {
		return nil, workflow.NewNotFoundError("comment", commentID)
	}
	return commentFromModel(row), nil
}

// AddComment 在维度下发表评论或回复
func (m *assessmentManager) AddComment(ctx context.Context, id, actorID string, in workflow.CommentInput) (*workflow.Comment, error) {
	var added *workflow.Comment
	_, err := m.mutate(ctx, mutation{
		op:      "add_comment",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if err := commentable("addComment", a); err != nil {
				return err
			}
			if err := s.require(policy.PermCommentAdd); err != nil {
				return err
			}
			if err := in.Validate(); err != nil {
				return err
			}
			if !m.policy.HasAxis(in.AxisID) {
				return workflow.NewValidationError("comment.axisId", "unknown axis %s", in.AxisID)
			}

			var parent *workflow.Comment
			if in.ParentCommentID != nil && *in.ParentCommentID != "" {
				p, err := s.findComment(*in.ParentCommentID)
				if err != nil {
					return err
				}
				if p.AxisID != in.AxisID {
					return workflow.NewValidationError("comment.axisId",
						"reply must be on axis %s like its parent", p.AxisID)
				}
				parent = p
			}
			depth, err := workflow.ReplyDepth(parent, m.policy.Rules().MaxCommentDepth)
			if err != nil {
				return err
			}

			row := &model.CommentModel{
				ID:           uuid.New().String(),
				AssessmentID: a.ID,
				AxisID:       in.AxisID,
				UserID:       actorID,
				Body:         in.Body,
				Depth:        depth,
				CreatedAt:    s.now,
			}
			parentID := ""
			if parent != nil {
				parentID = parent.ID
				row.ParentCommentID = &parentID
			}
			if err := s.comments.Create(row); err != nil {
				return fmt.Errorf("failed to create comment: %w", err)
			}
			added = commentFromModel(row)
			s.emit(a, events.CommentAdded{
				CommentID:       row.ID,
				AxisID:          row.AxisID,
				UserID:          actorID,
				ParentCommentID: parentID,
				Depth:           depth,
			})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// ResolveComment 标记评论已解决,子回复不受影响
//
// 作者可以解决自己的评论;他人的评论只能由负责人或拥有 comment.resolve_any 的角色解决。
func (m *assessmentManager) ResolveComment(ctx context.Context, id, commentID, actorID string) (*workflow.Comment, error) {
	var resolved *workflow.Comment
	_, err := m.mutate(ctx, mutation{
		op:      "resolve_comment",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			if err := commentable("resolveComment", a); err != nil {
				return err
			}
			c, err := s.findComment(commentID)
			if err != nil {
				return err
			}

			switch {
			case c.UserID == actorID:
				if err := s.require(policy.PermAssessmentView); err != nil {
					return err
				}
			case a.IsOwner(actorID):
				if err := s.require(policy.PermAssessmentView); err != nil {
					return err
				}
			default:
				if err := s.require(policy.PermCommentResolveAny); err != nil {
					return err
				}
			}

			if c.IsResolved {
				resolved = c
				return nil
			}
			if err := s.comments.MarkResolved(c.ID, actorID, s.now); err != nil {
				return fmt.Errorf("failed to resolve comment: %w", err)
			}
			by, at := actorID, s.now
			c.IsResolved = true
			c.ResolvedBy = &by
			c.ResolvedAt = &at
			resolved = c
			s.emit(a, events.CommentResolved{CommentID: c.ID, ResolvedBy: actorID})
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// ListComments 列出评论,axisID 为空时返回全部维度
func (m *assessmentManager) ListComments(ctx context.Context, id, actorID string, axisID *string) ([]*workflow.Comment, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	if axisID != nil && !m.policy.HasAxis(*axisID) {
		return nil, workflow.NewValidationError("axisId", "unknown axis %s", *axisID)
	}
	rows, err := m.commentRepo.ListByAssessment(id, axisID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	out := make([]*workflow.Comment, 0, len(rows))
	for _, row := range rows {
		out = append(out, commentFromModel(row))
	}
	return out, nil
}
