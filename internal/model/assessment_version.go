package model

import (
	"errors"
	"time"
)

// AssessmentVersionModel 评估版本快照,写入后不再修改
type AssessmentVersionModel struct {
	ID            string    `gorm:"primaryKey;type:varchar(64)"`
	AssessmentID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_versions_assessment_version,priority:1"`
	Version       int       `gorm:"type:int;not null;uniqueIndex:idx_versions_assessment_version,priority:2"`
	SnapshotData  []byte    `gorm:"type:jsonb;not null"`
	ChangeSummary string    `gorm:"type:text"`
	ChangedAxes   []byte    `gorm:"type:jsonb"`
	RestoredFrom  int       `gorm:"type:int;not null;default:0"` // 恢复来源版本,0 表示提交产生
	CreatedBy     string    `gorm:"type:varchar(64);not null"`
	CreatedAt     time.Time `gorm:"not null;index"`
}

// TableName 指定表名
func (AssessmentVersionModel) TableName() string {
	return "assessment_versions"
}

// Validate 验证版本模型
func (vm *AssessmentVersionModel) Validate() error {
	if vm.ID == "" {
		return errors.New("version ID is required")
	}
	if vm.AssessmentID == "" {
		return errors.New("assessment ID is required")
	}
	if vm.Version < 1 {
		return errors.New("version number must be positive")
	}
	if len(vm.SnapshotData) == 0 {
		return errors.New("snapshot data is required")
	}
	if vm.CreatedBy == "" {
		return errors.New("creator is required")
	}
	return nil
}
