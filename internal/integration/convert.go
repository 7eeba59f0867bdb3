package integration

import (
	"encoding/json"
	"fmt"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
)

func assessmentFromModel(m *model.AssessmentModel) (*workflow.Assessment, error) {
	axes := map[string]workflow.AxisScore{}
	if len(m.Axes) > 0 {
		if err := json.Unmarshal(m.Axes, &axes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal axes of assessment %s: %w", m.ID, err)
		}
	}
	return &workflow.Assessment{
		ID:              m.ID,
		OrganizationID:  m.OrganizationID,
		OwnerID:         m.OwnerID,
		Title:           m.Title,
		Status:          workflow.Status(m.Status),
		CurrentVersion:  m.CurrentVersion,
		Axes:            axes,
		RejectionReason: m.RejectionReason,
		ReviewCount:     m.ReviewCount,
		SubmittedAt:     m.SubmittedAt,
		SLAWarnedAt:     m.SLAWarnedAt,
		RowVersion:      m.RowVersion,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func assessmentToModel(a *workflow.Assessment) (*model.AssessmentModel, error) {
	axes, err := json.Marshal(a.Axes)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal axes: %w", err)
	}
	return &model.AssessmentModel{
		ID:              a.ID,
		OrganizationID:  a.OrganizationID,
		OwnerID:         a.OwnerID,
		Title:           a.Title,
		Status:          string(a.Status),
		CurrentVersion:  a.CurrentVersion,
		Axes:            axes,
		RejectionReason: a.RejectionReason,
		ReviewCount:     a.ReviewCount,
		SubmittedAt:     a.SubmittedAt,
		SLAWarnedAt:     a.SLAWarnedAt,
		RowVersion:      a.RowVersion,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}, nil
}

func versionFromModel(m *model.AssessmentVersionModel) (*workflow.Version, error) {
	snapshot, err := workflow.DecodeSnapshot(m.SnapshotData)
	if err != nil {
		return nil, fmt.Errorf("version %d of assessment %s: %w", m.Version, m.AssessmentID, err)
	}
	changed := []string{}
	if len(m.ChangedAxes) > 0 {
		if err := json.Unmarshal(m.ChangedAxes, &changed); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changed axes: %w", err)
		}
	}
	return &workflow.Version{
		ID:            m.ID,
		AssessmentID:  m.AssessmentID,
		Version:       m.Version,
		Snapshot:      snapshot,
		ChangeSummary: m.ChangeSummary,
		ChangedAxes:   changed,
		RestoredFrom:  m.RestoredFrom,
		CreatedBy:     m.CreatedBy,
		CreatedAt:     m.CreatedAt,
	}, nil
}

func reviewFromModel(m *model.ReviewModel) (*workflow.Review, error) {
	var axisComments map[string]string
	if len(m.AxisComments) > 0 {
		if err := json.Unmarshal(m.AxisComments, &axisComments); err != nil {
			return nil, fmt.Errorf("failed to unmarshal axis comments: %w", err)
		}
	}
	return &workflow.Review{
		ID:             m.ID,
		AssessmentID:   m.AssessmentID,
		Version:        m.Version,
		ReviewerID:     m.ReviewerID,
		Recommendation: workflow.Recommendation(m.Recommendation),
		Rating:         m.Rating,
		Comments:       m.Comments,
		AxisComments:   axisComments,
		SubmittedAt:    m.SubmittedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}, nil
}

func reviewToModel(r *workflow.Review) (*model.ReviewModel, error) {
	var axisComments []byte
	if len(r.AxisComments) > 0 {
		data, err := json.Marshal(r.AxisComments)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal axis comments: %w", err)
		}
		axisComments = data
	}
	return &model.ReviewModel{
		ID:             r.ID,
		AssessmentID:   r.AssessmentID,
		Version:        r.Version,
		ReviewerID:     r.ReviewerID,
		Recommendation: string(r.Recommendation),
		Rating:         r.Rating,
		Comments:       r.Comments,
		AxisComments:   axisComments,
		SubmittedAt:    r.SubmittedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

func commentFromModel(m *model.CommentModel) *workflow.Comment {
	return &workflow.Comment{
		ID:              m.ID,
		AssessmentID:    m.AssessmentID,
		AxisID:          m.AxisID,
		UserID:          m.UserID,
		Body:            m.Body,
		ParentCommentID: m.ParentCommentID,
		Depth:           m.Depth,
		IsResolved:      m.IsResolved,
		ResolvedBy:      m.ResolvedBy,
		ResolvedAt:      m.ResolvedAt,
		CreatedAt:       m.CreatedAt,
	}
}

func stakeholderFromModel(m *model.StakeholderModel) *workflow.Stakeholder {
	return &workflow.Stakeholder{
		AssessmentID: m.AssessmentID,
		UserID:       m.UserID,
		Kind:         workflow.StakeholderKind(m.Kind),
		AssignedBy:   m.AssignedBy,
		CreatedAt:    m.CreatedAt,
	}
}

func historyFromModel(m *model.StateHistoryModel) *workflow.StateChange {
	return &workflow.StateChange{
		From:     workflow.Status(m.FromState),
		To:       workflow.Status(m.ToState),
		Reason:   m.Reason,
		Operator: m.Operator,
		Time:     m.CreatedAt,
	}
}
