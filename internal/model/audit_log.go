package model

import (
	"errors"
	"time"
)

// AuditLogModel 操作审计日志
type AuditLogModel struct {
	ID             string    `gorm:"primaryKey;type:varchar(64)"`
	UserID         string    `gorm:"type:varchar(64);not null;index"`
	OrganizationID string    `gorm:"type:varchar(64);index"`
	Action         string    `gorm:"type:varchar(64);not null;index"` // create/update_axis/submit/review/decide/restore/comment...
	ResourceType   string    `gorm:"type:varchar(32);not null"`      // assessment/review/comment/stakeholder
	ResourceID     string    `gorm:"type:varchar(64);not null;index"`
	RequestID      string    `gorm:"type:varchar(64);index"`
	IP             string    `gorm:"type:varchar(45)"`
	UserAgent      string    `gorm:"type:text"`
	Details        []byte    `gorm:"type:jsonb"`
	CreatedAt      time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// Validate 验证审计日志模型
func (alm *AuditLogModel) Validate() error {
	switch {
	case alm.ID == "":
		return errors.New("audit log ID is required")
	case alm.UserID == "":
		return errors.New("user ID is required")
	case alm.Action == "":
		return errors.New("action is required")
	case alm.ResourceType == "" || alm.ResourceID == "":
		return errors.New("resource type and ID are required")
	}
	return nil
}
