package model

import (
	"errors"
	"time"
)

// 事件推送状态
const (
	EventStatusPending = "pending"
	EventStatusSuccess = "success"
	EventStatusFailed  = "failed"
)

// EventModel 领域事件(发件箱)
type EventModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(64)"` // 与事件信封 ID 一致
	AssessmentID string    `gorm:"type:varchar(64);not null;index"`
	Type         string    `gorm:"type:varchar(64);not null;index"`
	Data         []byte    `gorm:"type:jsonb;not null"` // 序列化后的事件信封
	Status       string    `gorm:"type:varchar(32);not null;default:'pending';index"`
	RetryCount   int       `gorm:"type:int;default:0"`
	CreatedAt    time.Time `gorm:"not null;index"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName 指定表名
func (EventModel) TableName() string {
	return "events"
}

// Validate 验证事件模型
func (em *EventModel) Validate() error {
	if em.ID == "" {
		return errors.New("event ID is required")
	}
	if em.AssessmentID == "" {
		return errors.New("assessment ID is required")
	}
	if em.Type == "" {
		return errors.New("event type is required")
	}
	if len(em.Data) == 0 {
		return errors.New("event data is required")
	}
	if em.Status == "" {
		em.Status = EventStatusPending
	}
	return nil
}
