// Package events defines the domain events emitted by the assessment
// workflow. Every event travels in an Envelope whose Payload is one of a
// closed set of typed structs, selected by Type and checked against
// SchemaVersion when decoded.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SchemaVersion 当前事件结构版本
const SchemaVersion = "1"

// Type 事件类型
type Type string

const (
	TypeStatusChanged       Type = "assessment.status_changed"
	TypeVersionCreated      Type = "assessment.version_created"
	TypeReviewSubmitted     Type = "assessment.review_submitted"
	TypeCommentAdded        Type = "assessment.comment_added"
	TypeCommentResolved     Type = "assessment.comment_resolved"
	TypeStakeholderAssigned Type = "assessment.stakeholder_assigned"
	TypeReviewSLABreached   Type = "assessment.review_sla_breached"
)

// Envelope 事件信封
type Envelope struct {
	ID             string          `json:"id"`
	Type           Type            `json:"type"`
	Version        string          `json:"version"`
	AssessmentID   string          `json:"assessment_id"`
	OrganizationID string          `json:"organization_id"`
	Audience       []string        `json:"audience,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Payload        json.RawMessage `json:"payload"`
}

// Payload 事件负载,仅本包内的类型可以实现
type Payload interface {
	EventType() Type
	sealed()
}

// StatusChanged 状态变更
type StatusChanged struct {
	From     string `json:"from" validate:"required"`
	To       string `json:"to" validate:"required"`
	Reason   string `json:"reason,omitempty"`
	Operator string `json:"operator" validate:"required"`
	Version  int    `json:"version" validate:"min=0"`
}

// VersionCreated 新版本
type VersionCreated struct {
	Version      int      `json:"version" validate:"min=1"`
	RestoredFrom int      `json:"restored_from,omitempty" validate:"min=0"`
	ChangedAxes  []string `json:"changed_axes"`
	CreatedBy    string   `json:"created_by" validate:"required"`
}

// ReviewSubmitted 评审提交
type ReviewSubmitted struct {
	ReviewID       string `json:"review_id" validate:"required"`
	ReviewerID     string `json:"reviewer_id" validate:"required"`
	Version        int    `json:"version" validate:"min=1"`
	Recommendation string `json:"recommendation" validate:"required,oneof=APPROVE REQUEST_CHANGES REJECT"`
	SubmittedCount int    `json:"submitted_count" validate:"min=1"`
	Quorum         int    `json:"quorum" validate:"min=1"`
}

// CommentAdded 新评论
type CommentAdded struct {
	CommentID       string `json:"comment_id" validate:"required"`
	AxisID          string `json:"axis_id" validate:"required"`
	UserID          string `json:"user_id" validate:"required"`
	ParentCommentID string `json:"parent_comment_id,omitempty"`
	Depth           int    `json:"depth" validate:"min=0"`
}

// CommentResolved 评论已解决
type CommentResolved struct {
	CommentID  string `json:"comment_id" validate:"required"`
	ResolvedBy string `json:"resolved_by" validate:"required"`
}

// StakeholderAssigned 指定参与人
type StakeholderAssigned struct {
	UserID     string `json:"user_id" validate:"required"`
	Kind       string `json:"kind" validate:"required,oneof=REVIEWER APPROVER"`
	AssignedBy string `json:"assigned_by" validate:"required"`
}

// ReviewSLABreached 评审超时
type ReviewSLABreached struct {
	Version     int       `json:"version" validate:"min=1"`
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
	DueAt       time.Time `json:"due_at" validate:"required"`
	Received    int       `json:"received"`
	Quorum      int       `json:"quorum" validate:"min=1"`
}

func (StatusChanged) EventType() Type       { return TypeStatusChanged }
func (VersionCreated) EventType() Type      { return TypeVersionCreated }
func (ReviewSubmitted) EventType() Type     { return TypeReviewSubmitted }
func (CommentAdded) EventType() Type        { return TypeCommentAdded }
func (CommentResolved) EventType() Type     { return TypeCommentResolved }
func (StakeholderAssigned) EventType() Type { return TypeStakeholderAssigned }
func (ReviewSLABreached) EventType() Type   { return TypeReviewSLABreached }

func (StatusChanged) sealed()       {}
func (VersionCreated) sealed()      {}
func (ReviewSubmitted) sealed()     {}
func (CommentAdded) sealed()        {}
func (CommentResolved) sealed()     {}
func (StakeholderAssigned) sealed() {}
func (ReviewSLABreached) sealed()   {}

var validate = validator.New(validator.WithRequiredStructEnabled())

// New 创建信封,负载在写入前校验
func New(assessmentID, organizationID string, audience []string, payload Payload, now time.Time) (Envelope, error) {
	if err := validate.Struct(payload); err != nil {
		return Envelope{}, fmt.Errorf("invalid %s payload: %w", payload.EventType(), err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to marshal %s payload: %w", payload.EventType(), err)
	}
	return Envelope{
		ID:             uuid.New().String(),
		Type:           payload.EventType(),
		Version:        SchemaVersion,
		AssessmentID:   assessmentID,
		OrganizationID: organizationID,
		Audience:       dedupe(audience),
		Timestamp:      now.UTC(),
		Payload:        raw,
	}, nil
}

// Decode 按类型解析负载
func (e Envelope) Decode() (Payload, error) {
	if e.Version != SchemaVersion {
		return nil, fmt.Errorf("unsupported event schema version %q", e.Version)
	}

	var p Payload
	switch e.Type {
	case TypeStatusChanged:
		p = decodeInto[StatusChanged](e.Payload)
	case TypeVersionCreated:
		p = decodeInto[VersionCreated](e.Payload)
	case TypeReviewSubmitted:
		p = decodeInto[ReviewSubmitted](e.Payload)
	case TypeCommentAdded:
		p = decodeInto[CommentAdded](e.Payload)
	case TypeCommentResolved:
		p = decodeInto[CommentResolved](e.Payload)
	case TypeStakeholderAssigned:
		p = decodeInto[StakeholderAssigned](e.Payload)
	case TypeReviewSLABreached:
		p = decodeInto[ReviewSLABreached](e.Payload)
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	if p == nil {
		return nil, fmt.Errorf("malformed %s payload", e.Type)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", e.Type, err)
	}
	return p, nil
}

func decodeInto[T Payload](raw json.RawMessage) Payload {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Sink 事件下游
type Sink interface {
	Publish(ctx context.Context, env Envelope) error
}

// NopSink 丢弃所有事件
type NopSink struct{}

// Publish 实现 Sink
func (NopSink) Publish(context.Context, Envelope) error { return nil }

// SinkFunc 函数适配器
type SinkFunc func(ctx context.Context, env Envelope) error

// Publish 实现 Sink
func (f SinkFunc) Publish(ctx context.Context, env Envelope) error { return f(ctx, env) }
