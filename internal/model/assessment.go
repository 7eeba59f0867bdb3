package model

import (
	"errors"
	"time"
)

// AssessmentModel 评估数据模型
type AssessmentModel struct {
	ID              string     `gorm:"primaryKey;type:varchar(64)"`
	OrganizationID  string     `gorm:"type:varchar(64);not null;index"`
	OwnerID         string     `gorm:"type:varchar(64);not null;index"`
	Title           string     `gorm:"type:varchar(255)"`
	Status          string     `gorm:"type:varchar(32);not null;index"`
	CurrentVersion  int        `gorm:"type:int;not null;default:0"`
	Axes            []byte     `gorm:"type:jsonb;not null"` // 序列化后的七个维度评分
	RejectionReason string     `gorm:"type:text"`
	ReviewCount     int        `gorm:"type:int;not null;default:0"` // 当前版本已提交评审人数
	SubmittedAt     *time.Time `gorm:"index"`                       // 本轮评审开始时间
	SLAWarnedAt     *time.Time // 本轮评审超时提醒时间
	RowVersion      int64      `gorm:"not null;default:0"` // 乐观锁
	CreatedAt       time.Time  `gorm:"not null;index"`
	UpdatedAt       time.Time  `gorm:"not null;index"`
}

// TableName 指定表名
func (AssessmentModel) TableName() string {
	return "assessments"
}

// Validate 验证评估模型
func (am *AssessmentModel) Validate() error {
	if am.ID == "" {
		return errors.New("assessment ID is required")
	}
	if am.OrganizationID == "" {
		return errors.New("organization ID is required")
	}
	if am.OwnerID == "" {
		return errors.New("owner ID is required")
	}
	if am.Status == "" {
		return errors.New("assessment status is required")
	}
	if len(am.Axes) == 0 {
		return errors.New("assessment axes are required")
	}
	return nil
}
