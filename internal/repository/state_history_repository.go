package repository

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// StateHistoryRepository 状态历史仓储接口
type StateHistoryRepository interface {
	Save(history *model.StateHistoryModel) error
	FindByAssessmentID(assessmentID string) ([]*model.StateHistoryModel, error)
}

type stateHistoryRepository struct {
	db *gorm.DB
}

// NewStateHistoryRepository 创建状态历史仓储
func NewStateHistoryRepository(db *gorm.DB) StateHistoryRepository {
	return &stateHistoryRepository{db: db}
}

// Save 保存状态历史
func (r *stateHistoryRepository) Save(history *model.StateHistoryModel) error {
	return r.db.Create(history).Error
}

// FindByAssessmentID 按时间顺序列出
func (r *stateHistoryRepository) FindByAssessmentID(assessmentID string) ([]*model.StateHistoryModel, error) {
	var items []*model.StateHistoryModel
	err := r.db.Where("assessment_id = ?", assessmentID).Order("created_at ASC").Find(&items).Error
	return items, err
}
