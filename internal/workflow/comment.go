package workflow

import (
	"strings"
	"time"
)

// Comment 维度讨论评论
type Comment struct {
	ID              string     `json:"id"`
	AssessmentID    string     `json:"assessmentId"`
	AxisID          string     `json:"axisId"`
	UserID          string     `json:"userId"`
	Body            string     `json:"body"`
	ParentCommentID *string    `json:"parentCommentId,omitempty"`
	Depth           int        `json:"depth"`
	IsResolved      bool       `json:"isResolved"`
	ResolvedBy      *string    `json:"resolvedBy,omitempty"`
	ResolvedAt      *time.Time `json:"resolvedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// CommentInput 新评论
type CommentInput struct {
	AxisID          string  `json:"axisId" validate:"required"`
	Body            string  `json:"body" validate:"required,max=10000"`
	ParentCommentID *string `json:"parentCommentId,omitempty"`
}

// Validate 校验评论内容
func (in CommentInput) Validate() error {
	if strings.TrimSpace(in.Body) == "" {
		return NewValidationError("comment.body", "comment body is required")
	}
	return validateStruct(in, "comment")
}

// ReplyDepth 回复 parent 后的层级。根评论层级为 0,回复层级 1..maxDepth,超出返回 ValidationError
func ReplyDepth(parent *Comment, maxDepth int) (int, error) {
	if parent == nil {
		return 0, nil
	}
	depth := parent.Depth + 1
	if depth > maxDepth {
		return 0, NewValidationError("comment.parentCommentId",
			"replies are limited to %d levels, parent comment is already at depth %d", maxDepth, parent.Depth)
	}
	return depth, nil
}
