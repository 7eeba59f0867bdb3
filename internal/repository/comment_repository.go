package repository

import (
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"gorm.io/gorm"
)

// CommentRepository 评论仓储接口
type CommentRepository interface {
	Create(comment *model.CommentModel) error
	FindByID(id string) (*model.CommentModel, error)
	ListByAssessment(assessmentID string, axisID *string) ([]*model.CommentModel, error)
	MarkResolved(id, resolvedBy string, at time.Time) error
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository 创建评论仓储
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// Create 新建评论
func (r *commentRepository) Create(comment *model.CommentModel) error {
	return r.db.Create(comment).Error
}

// FindByID 根据 ID 查找评论
func (r *commentRepository) FindByID(id string) (*model.CommentModel, error) {
	var m model.CommentModel
	if err := r.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByAssessment 按时间顺序列出评论
func (r *commentRepository) ListByAssessment(assessmentID string, axisID *string) ([]*model.CommentModel, error) {
	var comments []*model.CommentModel
	query := r.db.Where("assessment_id = ?", assessmentID)
	if axisID != nil {
		query = query.Where("axis_id = ?", *axisID)
	}
	err := query.Order("created_at ASC").Find(&comments).Error
	return comments, err
}

// MarkResolved 只更新这一条评论,不影响子评论
func (r *commentRepository) MarkResolved(id, resolvedBy string, at time.Time) error {
	return r.db.Model(&model.CommentModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_resolved": true,
			"resolved_by": resolvedBy,
			"resolved_at": at,
		}).Error
}
