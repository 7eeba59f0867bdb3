package repository

import (
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// ReviewRepository 评审仓储接口
type ReviewRepository interface {
	Save(review *model.ReviewModel) error
	FindOpen(assessmentID, reviewerID string) (*model.ReviewModel, error)
	// DeleteOpen 删除全部未提交的评审草稿,返回删除数量
	DeleteOpen(assessmentID string) (int64, error)
	FindSubmitted(assessmentID string, version int, reviewerID string) (*model.ReviewModel, error)
	// CountSubmittedReviewers 统计某版本已提交评审的去重人数
	CountSubmittedReviewers(assessmentID string, version int) (int, error)
	ListByAssessment(assessmentID string, version *int) ([]*model.ReviewModel, error)
}

type reviewRepository struct {
	db *gorm.DB
}

// NewReviewRepository 创建评审仓储
func NewReviewRepository(db *gorm.DB) ReviewRepository {
	return &reviewRepository{db: db}
}

// Save 新建或更新评审
func (r *reviewRepository) Save(review *model.ReviewModel) error {
	return r.db.Save(review).Error
}

// FindOpen 查找未提交的评审草稿
func (r *reviewRepository) FindOpen(assessmentID, reviewerID string) (*model.ReviewModel, error) {
	var m model.ReviewModel
	err := r.db.Where("assessment_id = ? AND reviewer_id = ? AND submitted_at IS NULL", assessmentID, reviewerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// DeleteOpen 删除未提交评审
func (r *reviewRepository) DeleteOpen(assessmentID string) (int64, error) {
	result := r.db.Where("assessment_id = ? AND submitted_at IS NULL", assessmentID).Delete(&model.ReviewModel{})
	return result.RowsAffected, result.Error
}

// FindSubmitted 查找某版本已提交的评审
func (r *reviewRepository) FindSubmitted(assessmentID string, version int, reviewerID string) (*model.ReviewModel, error) {
	var m model.ReviewModel
	err := r.db.Where("assessment_id = ? AND version = ? AND reviewer_id = ? AND submitted_at IS NOT NULL",
		assessmentID, version, reviewerID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountSubmittedReviewers 统计去重评审人
func (r *reviewRepository) CountSubmittedReviewers(assessmentID string, version int) (int, error) {
	var count int64
	err := r.db.Model(&model.ReviewModel{}).
		Where("assessment_id = ? AND version = ? AND submitted_at IS NOT NULL", assessmentID, version).
		Distinct("reviewer_id").
		Count(&count).Error
	return int(count), err
}

// ListByAssessment 列出评审,version 为空时返回全部版本
func (r *reviewRepository) ListByAssessment(assessmentID string, version *int) ([]*model.ReviewModel, error) {
	var reviews []*model.ReviewModel
	query := r.db.Where("assessment_id = ?", assessmentID)
	if version != nil {
		query = query.Where("version = ?", *version)
	}
	err := query.Order("version ASC, created_at ASC").Find(&reviews).Error
	return reviews, err
}
