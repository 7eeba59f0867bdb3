package workflow

import (
	"strings"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
)

// Recommendation 评审建议
type Recommendation string

const (
	RecommendationApprove        Recommendation = "APPROVE"
	RecommendationRequestChanges Recommendation = "REQUEST_CHANGES"
	RecommendationReject         Recommendation = "REJECT"
)

// Review 评审意见,SubmittedAt 为空表示尚未提交
type Review struct {
	ID             string            `json:"id"`
	AssessmentID   string            `json:"assessmentId"`
	Version        int               `json:"version"`
	ReviewerID     string            `json:"reviewerId"`
	Recommendation Recommendation    `json:"recommendation,omitempty"`
	Rating         *int              `json:"rating,omitempty"`
	Comments       string            `json:"comments"`
	AxisComments   map[string]string `json:"axisComments,omitempty"`
	SubmittedAt    *time.Time        `json:"submittedAt,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Submitted 是否已提交
func (r *Review) Submitted() bool {
	return r.SubmittedAt != nil
}

// ReviewInput 评审内容
type ReviewInput struct {
	Recommendation Recommendation    `json:"recommendation" validate:"omitempty,oneof=APPROVE REQUEST_CHANGES REJECT"`
	Comments       string            `json:"comments" validate:"max=20000"`
	Rating         *int              `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	AxisComments   map[string]string `json:"axisComments,omitempty" validate:"omitempty,dive,max=5000"`
}

// ValidateDraft 校验评审草稿,允许不填建议
func (in ReviewInput) ValidateDraft(p *policy.Policy) error {
	if err := validateStruct(in, "review"); err != nil {
		return err
	}
	for axisID := range in.AxisComments {
		if !p.HasAxis(axisID) {
			return NewValidationError("review.axisComments."+axisID, "unknown axis %s", axisID)
		}
	}
	return nil
}

// Validate 校验提交的评审
func (in ReviewInput) Validate(p *policy.Policy) error {
	if in.Recommendation == "" {
		return NewValidationError("review.recommendation", "recommendation is required")
	}
	if err := in.ValidateDraft(p); err != nil {
		return err
	}
	if in.Recommendation == RecommendationReject && strings.TrimSpace(in.Comments) == "" {
		return NewValidationError("review.comments", "comments are required when recommending rejection")
	}
	return nil
}

// Apply 将输入写入评审
func (r *Review) Apply(in ReviewInput) {
	r.Recommendation = in.Recommendation
	r.Comments = in.Comments
	if in.Rating != nil {
		v := *in.Rating
		r.Rating = &v
	} else {
		r.Rating = nil
	}
	r.AxisComments = nil
	if len(in.AxisComments) > 0 {
		r.AxisComments = make(map[string]string, len(in.AxisComments))
		for k, v := range in.AxisComments {
			r.AxisComments[k] = v
		}
	}
}

// Decision 审批决定
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

// Valid 判断决定取值是否合法
func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}

// StakeholderKind 参与人类型
type StakeholderKind string

const (
	StakeholderReviewer StakeholderKind = "REVIEWER"
	StakeholderApprover StakeholderKind = "APPROVER"
)

// Valid 判断类型取值是否合法
func (k StakeholderKind) Valid() bool {
	return k == StakeholderReviewer || k == StakeholderApprover
}

// Stakeholder 评估指定的参与人
type Stakeholder struct {
	AssessmentID string          `json:"assessmentId"`
	UserID       string          `json:"userId"`
	Kind         StakeholderKind `json:"kind"`
	AssignedBy   string          `json:"assignedBy"`
	CreatedAt    time.Time       `json:"createdAt"`
}
