package repository

import (
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AssessmentRepository 评估仓储接口
type AssessmentRepository interface {
	Create(assessment *model.AssessmentModel) error
	FindByID(id string) (*model.AssessmentModel, error)
	FindByIDForUpdate(id string) (*model.AssessmentModel, error)
	// UpdateCAS 仅当 row_version 等于 expected 时写入,返回是否写入成功
	UpdateCAS(assessment *model.AssessmentModel, expected int64) (bool, error)
	FindByFilter(filter *AssessmentFilter) ([]*model.AssessmentModel, int64, error)
	FindApprovedInOrganization(organizationID string, excludeID string) ([]*model.AssessmentModel, error)
	FindReviewOverdue(startedBefore time.Time) ([]*model.AssessmentModel, error)
	CountByStatus() (map[string]int64, error)
}

// AssessmentFilter 评估查询过滤器
type AssessmentFilter struct {
	OrganizationID *string
	OwnerID        *string
	Status         *string
	Offset         int
	Limit          int
}

// assessmentRepository 评估仓储实现
type assessmentRepository struct {
	db *gorm.DB
}

// NewAssessmentRepository 创建评估仓储
func NewAssessmentRepository(db *gorm.DB) AssessmentRepository {
	return &assessmentRepository{db: db}
}

// Create 新建评估
func (r *assessmentRepository) Create(assessment *model.AssessmentModel) error {
	return r.db.Create(assessment).Error
}

// FindByID 根据 ID 查找评估
func (r *assessmentRepository) FindByID(id string) (*model.AssessmentModel, error) {
	var m model.AssessmentModel
	if err := r.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByIDForUpdate 加行锁读取(SQLite 忽略锁子句)
func (r *assessmentRepository) FindByIDForUpdate(id string) (*model.AssessmentModel, error) {
	var m model.AssessmentModel
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateCAS 比较并交换更新
func (r *assessmentRepository) UpdateCAS(assessment *model.AssessmentModel, expected int64) (bool, error) {
	assessment.RowVersion = expected + 1
	result := r.db.Model(&model.AssessmentModel{}).
		Where("id = ? AND row_version = ?", assessment.ID, expected).
		Select("title", "status", "current_version", "axes", "rejection_reason",
			"review_count", "submitted_at", "sla_warned_at", "row_version", "updated_at").
		Updates(assessment)
	if result.Error != nil {
		assessment.RowVersion = expected
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		assessment.RowVersion = expected
		return false, nil
	}
	return true, nil
}

// FindByFilter 根据过滤器分页查找评估
func (r *assessmentRepository) FindByFilter(filter *AssessmentFilter) ([]*model.AssessmentModel, int64, error) {
	query := r.db.Model(&model.AssessmentModel{})
	limit := 20
	offset := 0

	if filter != nil {
		if filter.OrganizationID != nil {
			query = query.Where("organization_id = ?", *filter.OrganizationID)
		}
		if filter.OwnerID != nil {
			query = query.Where("owner_id = ?", *filter.OwnerID)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if filter.Offset > 0 {
			offset = filter.Offset
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*model.AssessmentModel
	err := query.Order("updated_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, total, err
}

// FindApprovedInOrganization 查找组织内其他已批准的评估
func (r *assessmentRepository) FindApprovedInOrganization(organizationID string, excludeID string) ([]*model.AssessmentModel, error) {
	var items []*model.AssessmentModel
	err := r.db.Where("organization_id = ? AND status = ? AND id <> ?", organizationID, "APPROVED", excludeID).
		Order("updated_at ASC").
		Find(&items).Error
	return items, err
}

// FindReviewOverdue 查找评审开始早于 startedBefore 且尚未提醒的评估
func (r *assessmentRepository) FindReviewOverdue(startedBefore time.Time) ([]*model.AssessmentModel, error) {
	var items []*model.AssessmentModel
	err := r.db.Where("status = ? AND submitted_at < ? AND sla_warned_at IS NULL", "IN_REVIEW", startedBefore).
		Order("submitted_at ASC").
		Find(&items).Error
	return items, err
}

// CountByStatus 按状态统计
func (r *assessmentRepository) CountByStatus() (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.Model(&model.AssessmentModel{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
