package repository

import (
	"errors"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StakeholderRepository 参与人仓储接口
type StakeholderRepository interface {
	Save(stakeholder *model.StakeholderModel) error
	Exists(assessmentID, userID, kind string) (bool, error)
	ListByAssessment(assessmentID string) ([]*model.StakeholderModel, error)
}

type stakeholderRepository struct {
	db *gorm.DB
}

// NewStakeholderRepository 创建参与人仓储
func NewStakeholderRepository(db *gorm.DB) StakeholderRepository {
	return &stakeholderRepository{db: db}
}

// Save 重复指定时忽略
func (r *stakeholderRepository) Save(stakeholder *model.StakeholderModel) error {
	return r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(stakeholder).Error
}

// Exists 判断是否已指定
func (r *stakeholderRepository) Exists(assessmentID, userID, kind string) (bool, error) {
	var m model.StakeholderModel
	err := r.db.Where("assessment_id = ? AND user_id = ? AND kind = ?", assessmentID, userID, kind).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListByAssessment 列出评估的全部参与人
func (r *stakeholderRepository) ListByAssessment(assessmentID string) ([]*model.StakeholderModel, error) {
	var items []*model.StakeholderModel
	err := r.db.Where("assessment_id = ?", assessmentID).Order("created_at ASC").Find(&items).Error
	return items, err
}

// MembershipRepository 组织成员仓储接口
type MembershipRepository interface {
	Save(member *model.MembershipModel) error
	FindRole(organizationID, userID string) (string, error)
}

type membershipRepository struct {
	db *gorm.DB
}

// NewMembershipRepository 创建组织成员仓储
func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

// Save 新建或覆盖成员角色
func (r *membershipRepository) Save(member *model.MembershipModel) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "updated_at"}),
	}).Create(member).Error
}

// FindRole 查找成员角色,不是成员时返回 gorm.ErrRecordNotFound
func (r *membershipRepository) FindRole(organizationID, userID string) (string, error) {
	var m model.MembershipModel
	if err := r.db.Where("organization_id = ? AND user_id = ?", organizationID, userID).First(&m).Error; err != nil {
		return "", err
	}
	return m.Role, nil
}
