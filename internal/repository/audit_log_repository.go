package repository

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口
type AuditLogRepository interface {
	Save(log *model.AuditLogModel) error
	FindByUserID(userID string, limit int) ([]*model.AuditLogModel, error)
	FindByResource(resourceType, resourceID string) ([]*model.AuditLogModel, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 保存审计日志
func (r *auditLogRepository) Save(log *model.AuditLogModel) error {
	return r.db.Create(log).Error
}

// FindByUserID 查找用户最近的操作
func (r *auditLogRepository) FindByUserID(userID string, limit int) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	query := r.db.Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	return logs, err
}

// FindByResource 查找某资源的操作记录
func (r *auditLogRepository) FindByResource(resourceType, resourceID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("resource_type = ? AND resource_id = ?", resourceType, resourceID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
