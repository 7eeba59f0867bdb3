package integration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/events"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/metrics"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/model"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/workflow"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// createVersion 以 a.CurrentVersion 为版本号写入快照,并与 previous 版本比较维度变化
func (s *txScope) createVersion(a *workflow.Assessment, previous, restoredFrom int, summary string) (*workflow.Version, error) {
	snapshot := workflow.TakeSnapshot(a)

	var prev *workflow.Snapshot
	if previous > 0 {
		row, err := s.versions.FindByNumber(a.ID, previous)
		if err != nil {
			return nil, fmt.Errorf("failed to load version %d: %w", previous, err)
		}
		decoded, err := workflow.DecodeSnapshot(row.SnapshotData)
		if err != nil {
			return nil, err
		}
		prev = &decoded
	}
	changed := workflow.ChangedAxes(prev, snapshot, s.m.policy.AxisIDs())

	data, err := snapshot.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	changedData, err := json.Marshal(changed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal changed axes: %w", err)
	}
	summary = fmt.Sprintf("%s; %d of %d axes changed", summary, len(changed), len(s.m.policy.AxisIDs()))

	row := &model.AssessmentVersionModel{
		ID:            uuid.New().String(),
		AssessmentID:  a.ID,
		Version:       a.CurrentVersion,
		SnapshotData:  data,
		ChangeSummary: summary,
		ChangedAxes:   changedData,
		RestoredFrom:  restoredFrom,
		CreatedBy:     s.actorID,
		CreatedAt:     s.now,
	}
	if err := s.versions.Create(row); err != nil {
		// 唯一索引冲突说明其他进程已写入同一版本号
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, workflow.NewConflictError(
				fmt.Sprintf("version %d of assessment %s already exists", a.CurrentVersion, a.ID), err)
		}
		return nil, fmt.Errorf("failed to create version: %w", err)
	}

	s.emit(a, events.VersionCreated{
		Version:      a.CurrentVersion,
		RestoredFrom: restoredFrom,
		ChangedAxes:  changed,
		CreatedBy:    s.actorID,
	})
	origin := "submit"
	if restoredFrom > 0 {
		origin = "restore"
	}
	s.afterCommit = append(s.afterCommit, func() { metrics.RecordVersionCreated(origin) })

	return &workflow.Version{
		ID:            row.ID,
		AssessmentID:  a.ID,
		Version:       row.Version,
		Snapshot:      snapshot,
		ChangeSummary: summary,
		ChangedAxes:   changed,
		RestoredFrom:  restoredFrom,
		CreatedBy:     s.actorID,
		CreatedAt:     s.now,
	}, nil
}

// RestoreVersion 以历史版本的维度数据生成新版本
//
// 状态不变,工作数据替换为该版本的维度。
func (m *assessmentManager) RestoreVersion(ctx context.Context, id string, version int, actorID string) (*workflow.Version, error) {
	var restored *workflow.Version
	_, err := m.mutate(ctx, mutation{
		op:      "restore",
		id:      id,
		actorID: actorID,
		apply: func(s *txScope) error {
			a := s.current
			row, err := s.versions.FindByNumber(a.ID, version)
			if err != nil {
				if isNotFound(err) {
					return workflow.NewNotFoundError("version", strconv.Itoa(version))
				}
				return fmt.Errorf("failed to load version %d: %w", version, err)
			}
			if err := s.requireOwnerOr(policy.PermAssessmentRestore); err != nil {
				return err
			}
			if !a.Status.Editable() {
				return workflow.NewStateError("restoreVersion", a.Status, workflow.StatusDraft, workflow.StatusRejected)
			}

			source, err := workflow.DecodeSnapshot(row.SnapshotData)
			if err != nil {
				return err
			}
			latest, err := s.versions.MaxVersion(a.ID)
			if err != nil {
				return fmt.Errorf("failed to read latest version: %w", err)
			}

			a.Axes = workflow.CloneAxes(source.Axes)
			a.CurrentVersion = latest + 1
			restored, err = s.createVersion(a, latest, version, fmt.Sprintf("Restored from version %d", version))
			if err != nil {
				return err
			}
			s.dirty = true
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return restored, nil
}

// ListVersions 按版本号升序列出
func (m *assessmentManager) ListVersions(ctx context.Context, id, actorID string) ([]*workflow.Version, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	rows, err := m.versionRepo.ListByAssessment(id)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	out := make([]*workflow.Version, 0, len(rows))
	for _, row := range rows {
		v, err := versionFromModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// GetVersion 查询单个版本
func (m *assessmentManager) GetVersion(ctx context.Context, id string, version int, actorID string) (*workflow.Version, error) {
	if _, err := m.viewable(ctx, id, actorID); err != nil {
		return nil, err
	}
	row, err := m.versionRepo.FindByNumber(id, version)
	if err != nil {
		if isNotFound(err) {
			return nil, workflow.NewNotFoundError("version", strconv.Itoa(version))
		}
		return nil, fmt.Errorf("failed to load version: %w", err)
	}
	return versionFromModel(row)
}
