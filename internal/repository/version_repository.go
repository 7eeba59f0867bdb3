package repository

import (
	"database/sql"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// VersionRepository 版本仓储接口,只追加不修改
type VersionRepository interface {
	Create(version *model.AssessmentVersionModel) error
	FindByNumber(assessmentID string, version int) (*model.AssessmentVersionModel, error)
	ListByAssessment(assessmentID string) ([]*model.AssessmentVersionModel, error)
	MaxVersion(assessmentID string) (int, error)
}

type versionRepository struct {
	db *gorm.DB
}

// NewVersionRepository 创建版本仓储
func NewVersionRepository(db *gorm.DB) VersionRepository {
	return &versionRepository{db: db}
}

// Create 写入新版本
func (r *versionRepository) Create(version *model.AssessmentVersionModel) error {
	return r.db.Create(version).Error
}

// FindByNumber 根据版本号查找
func (r *versionRepository) FindByNumber(assessmentID string, version int) (*model.AssessmentVersionModel, error) {
	var m model.AssessmentVersionModel
	err := r.db.Where("assessment_id = ? AND version = ?", assessmentID, version).First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByAssessment 按版本号升序列出
func (r *versionRepository) ListByAssessment(assessmentID string) ([]*model.AssessmentVersionModel, error) {
	var versions []*model.AssessmentVersionModel
	err := r.db.Where("assessment_id = ?", assessmentID).Order("version ASC").Find(&versions).Error
	return versions, err
}

// MaxVersion 返回最大版本号,没有版本时返回 0
func (r *versionRepository) MaxVersion(assessmentID string) (int, error) {
	var max sql.NullInt64
	row := r.db.Model(&model.AssessmentVersionModel{}).
		Where("assessment_id = ?", assessmentID).
		Select("MAX(version)").
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}
