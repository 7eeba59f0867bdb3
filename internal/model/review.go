package model

import (
	"errors"
	"time"
)

// ReviewModel 评审数据模型
type ReviewModel struct {
	ID             string     `gorm:"primaryKey;type:varchar(64)"`
	AssessmentID   string     `gorm:"type:varchar(64);not null;index:idx_reviews_assessment_version,priority:1"`
	Version        int        `gorm:"type:int;not null;index:idx_reviews_assessment_version,priority:2"`
	ReviewerID     string     `gorm:"type:varchar(64);not null;index"`
	Recommendation string     `gorm:"type:varchar(32)"` // APPROVE/REQUEST_CHANGES/REJECT
	Rating         *int       `gorm:"type:int"`
	Comments       string     `gorm:"type:text"`
	AxisComments   []byte     `gorm:"type:jsonb"`
	SubmittedAt    *time.Time `gorm:"index"` // 为空表示草稿
	CreatedAt      time.Time  `gorm:"not null"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName 指定表名
func (ReviewModel) TableName() string {
	return "reviews"
}

// Validate 验证评审模型
func (rm *ReviewModel) Validate() error {
	if rm.ID == "" {
		return errors.New("review ID is required")
	}
	if rm.AssessmentID == "" {
		return errors.New("assessment ID is required")
	}
	if rm.ReviewerID == "" {
		return errors.New("reviewer ID is required")
	}
	if rm.SubmittedAt != nil && rm.Recommendation == "" {
		return errors.New("submitted review requires a recommendation")
	}
	return nil
}
