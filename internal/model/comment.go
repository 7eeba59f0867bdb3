package model

import (
	"errors"
	"time"
)

// CommentModel 维度评论
type CommentModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	AssessmentID    string     `gorm:"type:varchar(64);not null;index:idx_comments_assessment_axis,priority:1"`
	AxisID          string     `gorm:"type:varchar(64);not null;index:idx_comments_assessment_axis,priority:2"`
	UserID          string     `gorm:"type:varchar(64);not null"`
	Body            string     `gorm:"type:text;not null"`
	ParentCommentID *string    `gorm:"type:varchar(64);index"`
	Depth           int        `gorm:"type:int;not null"`
	IsResolved      bool       `gorm:"not null;default:false"`
	ResolvedBy      *string    `gorm:"type:varchar(64)"`
	ResolvedAt      *time.Time
	CreatedAt       time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (CommentModel) TableName() string {
	return "comments"
}

// Validate 验证评论模型
func (cm *CommentModel) Validate() error {
	if cm.ID == "" {
		return errors.New("comment ID is required")
	}
	if cm.AssessmentID == "" || cm.AxisID == "" {
		return errors.New("assessment ID and axis ID are required")
	}
	if cm.UserID == "" {
		return errors.New("user ID is required")
	}
	if cm.Body == "" {
		return errors.New("comment body is required")
	}
	if cm.Depth < 0 {
		return errors.New("comment depth must not be negative")
	}
	return nil
}
