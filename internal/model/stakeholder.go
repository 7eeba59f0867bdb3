package model

import "time"

// StakeholderModel 评估参与人
type StakeholderModel struct {
	AssessmentID string    `gorm:"primaryKey;type:varchar(64)"`
	UserID       string    `gorm:"primaryKey;type:varchar(64);index"`
	Kind         string    `gorm:"primaryKey;type:varchar(32)"` // REVIEWER/APPROVER
	AssignedBy   string    `gorm:"type:varchar(64);not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (StakeholderModel) TableName() string {
	return "assessment_stakeholders"
}

// MembershipModel 组织成员角色
type MembershipModel struct {
	OrganizationID string    `gorm:"primaryKey;type:varchar(64)"`
	UserID         string    `gorm:"primaryKey;type:varchar(64);index"`
	Role           string    `gorm:"type:varchar(32);not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName 指定表名
func (MembershipModel) TableName() string {
	return "organization_members"
}
