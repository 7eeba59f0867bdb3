package repository

import (
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// EventRepository 事件仓储接口
type EventRepository interface {
	Save(event *model.EventModel) error
	FindByID(id string) (*model.EventModel, error)
	FindByAssessmentID(assessmentID string) ([]*model.EventModel, error)
	FindPending(limit int) ([]*model.EventModel, error)
	UpdateStatus(id, status string, retryCount int) error
}

type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建事件仓储
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Save 保存事件
func (r *eventRepository) Save(event *model.EventModel) error {
	return r.db.Save(event).Error
}

// FindByID 根据 ID 查找事件
func (r *eventRepository) FindByID(id string) (*model.EventModel, error) {
	var m model.EventModel
	if err := r.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByAssessmentID 按时间顺序列出评估事件
func (r *eventRepository) FindByAssessmentID(assessmentID string) ([]*model.EventModel, error) {
	var events []*model.EventModel
	err := r.db.Where("assessment_id = ?", assessmentID).Order("created_at ASC").Find(&events).Error
	return events, err
}

// FindPending 查找待推送事件
func (r *eventRepository) FindPending(limit int) ([]*model.EventModel, error) {
	var events []*model.EventModel
	query := r.db.Where("status = ?", model.EventStatusPending).Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&events).Error
	return events, err
}

// UpdateStatus 更新推送状态
func (r *eventRepository) UpdateStatus(id, status string, retryCount int) error {
	return r.db.Model(&model.EventModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"retry_count": retryCount,
			"updated_at":  time.Now().UTC(),
		}).Error
}
