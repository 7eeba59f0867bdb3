package workflow

import (
	"time"
	"unicode/utf8"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
)

// Priority 维度改进优先级
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// AxisScore 单个维度的评分
type AxisScore struct {
	ActualScore   *int     `json:"actualScore,omitempty"`
	TargetScore   *int     `json:"targetScore,omitempty"`
	Justification string   `json:"justification"`
	Evidence      []string `json:"evidence,omitempty"`
	Priority      Priority `json:"priority,omitempty"`
	Timeline      string   `json:"timeline,omitempty"`
}

// Clone 深拷贝
func (s AxisScore) Clone() AxisScore {
	out := s
	if s.ActualScore != nil {
		v := *s.ActualScore
		out.ActualScore = &v
	}
	if s.TargetScore != nil {
		v := *s.TargetScore
		out.TargetScore = &v
	}
	if len(s.Evidence) > 0 {
		out.Evidence = append([]string(nil), s.Evidence...)
	} else {
		out.Evidence = nil
	}
	return out
}

// Assessment 评估草稿
type Assessment struct {
	ID              string               `json:"id"`
	OrganizationID  string               `json:"organizationId"`
	OwnerID         string               `json:"ownerId"`
	Title           string               `json:"title"`
	Status          Status               `json:"status"`
	CurrentVersion  int                  `json:"currentVersion"`
	Axes            map[string]AxisScore `json:"axes"`
	RejectionReason string               `json:"rejectionReason,omitempty"`
	// ReviewCount 当前版本已提交评审的去重人数
	ReviewCount int        `json:"reviewCount"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	// SLAWarnedAt 本轮评审发出超时提醒的时间
	SLAWarnedAt *time.Time `json:"slaWarnedAt,omitempty"`
	RowVersion  int64      `json:"rowVersion"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewAssessment 创建草稿,每个维度初始化为空评分
func NewAssessment(id, organizationID, ownerID, title string, p *policy.Policy, now time.Time) *Assessment {
	axes := make(map[string]AxisScore, len(p.AxisIDs()))
	for _, axisID := range p.AxisIDs() {
		axes[axisID] = AxisScore{}
	}
	return &Assessment{
		ID:             id,
		OrganizationID: organizationID,
		OwnerID:        ownerID,
		Title:          title,
		Status:         StatusDraft,
		Axes:           axes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsOwner 判断用户是否为负责人
func (a *Assessment) IsOwner(userID string) bool {
	return userID != "" && a.OwnerID == userID
}

// CheckComplete 校验全部维度已完整填写
//
// 按目录顺序检查,返回第一个不完整维度的 ValidationError。
func (a *Assessment) CheckComplete(p *policy.Policy) error {
	minLen := p.Rules().MinJustificationLength
	for _, axisID := range p.AxisIDs() {
		score, ok := a.Axes[axisID]
		if !ok {
			return NewValidationError("axes."+axisID, "axis %s has not been scored", axisID)
		}
		if !validScore(score.ActualScore) {
			return NewValidationError("axes."+axisID+".actualScore",
				"axis %s needs an actual score between 1 and %d", axisID, policy.MaturityLevels)
		}
		if !validScore(score.TargetScore) {
			return NewValidationError("axes."+axisID+".targetScore",
				"axis %s needs a target score between 1 and %d", axisID, policy.MaturityLevels)
		}
		if n := utf8.RuneCountInString(score.Justification); n < minLen {
			return NewValidationError("axes."+axisID+".justification",
				"axis %s justification has %d characters, at least %d required", axisID, n, minLen)
		}
	}
	return nil
}

func validScore(v *int) bool {
	return v != nil && *v >= 1 && *v <= policy.MaturityLevels
}

// AxisPatch 维度字段级更新,nil 字段保持不变
type AxisPatch struct {
	ActualScore   *int      `json:"actualScore,omitempty" validate:"omitempty,min=1,max=7"`
	TargetScore   *int      `json:"targetScore,omitempty" validate:"omitempty,min=1,max=7"`
	Justification *string   `json:"justification,omitempty" validate:"omitempty,max=10000"`
	Evidence      *[]string `json:"evidence,omitempty" validate:"omitempty,max=50,dive,required,max=2000"`
	Priority      *Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Timeline      *string   `json:"timeline,omitempty" validate:"omitempty,max=200"`
}

// Empty 判断是否没有任何字段
func (p AxisPatch) Empty() bool {
	return p.ActualScore == nil && p.TargetScore == nil && p.Justification == nil &&
		p.Evidence == nil && p.Priority == nil && p.Timeline == nil
}

// Validate 校验更新内容
func (p AxisPatch) Validate() error {
	if p.Empty() {
		return NewValidationError("axis", "patch does not change any field")
	}
	return validateStruct(p, "axis")
}

// ApplyAxisPatch 将更新合并到维度,后写覆盖先写
func (a *Assessment) ApplyAxisPatch(axisID string, patch AxisPatch) []string {
	score := a.Axes[axisID].Clone()
	var changed []string
	if patch.ActualScore != nil {
		v := *patch.ActualScore
		score.ActualScore = &v
		changed = append(changed, "actualScore")
	}
	if patch.TargetScore != nil {
		v := *patch.TargetScore
		score.TargetScore = &v
		changed = append(changed, "targetScore")
	}
	if patch.Justification != nil {
		score.Justification = *patch.Justification
		changed = append(changed, "justification")
	}
	if patch.Evidence != nil {
		score.Evidence = append([]string(nil), (*patch.Evidence)...)
		changed = append(changed, "evidence")
	}
	if patch.Priority != nil {
		score.Priority = *patch.Priority
		changed = append(changed, "priority")
	}
	if patch.Timeline != nil {
		score.Timeline = *patch.Timeline
		changed = append(changed, "timeline")
	}
	if a.Axes == nil {
		a.Axes = make(map[string]AxisScore)
	}
	a.Axes[axisID] = score
	return changed
}

// CloneAxes 深拷贝全部维度
func CloneAxes(axes map[string]AxisScore) map[string]AxisScore {
	out := make(map[string]AxisScore, len(axes))
	for id, score := range axes {
		out[id] = score.Clone()
	}
	return out
}
