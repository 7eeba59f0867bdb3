package workflow

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// SnapshotSchemaVersion 快照数据结构版本
const SnapshotSchemaVersion = 1

// Snapshot 版本快照数据
type Snapshot struct {
	SchemaVersion  int                  `json:"schemaVersion"`
	OrganizationID string               `json:"organizationId"`
	OwnerID        string               `json:"ownerId"`
	Title          string               `json:"title"`
	Status         Status               `json:"status"`
	Axes           map[string]AxisScore `json:"axes"`
}

// TakeSnapshot 复制评估当前数据
func TakeSnapshot(a *Assessment) Snapshot {
	return Snapshot{
		SchemaVersion:  SnapshotSchemaVersion,
		OrganizationID: a.OrganizationID,
		OwnerID:        a.OwnerID,
		Title:          a.Title,
		Status:         a.Status,
		Axes:           CloneAxes(a.Axes),
	}
}

// Encode 序列化快照
func (s Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot 反序列化快照,拒绝未知的结构版本
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if s.SchemaVersion != SnapshotSchemaVersion {
		return Snapshot{}, fmt.Errorf("unsupported snapshot schema version %d", s.SchemaVersion)
	}
	return s, nil
}

// Version 不可变的评估版本
type Version struct {
	ID            string    `json:"id"`
	AssessmentID  string    `json:"assessmentId"`
	Version       int       `json:"version"`
	Snapshot      Snapshot  `json:"snapshotData"`
	ChangeSummary string    `json:"changeSummary"`
	ChangedAxes   []string  `json:"changedAxes"`
	RestoredFrom  int       `json:"restoredFrom,omitempty"`
	CreatedBy     string    `json:"createdBy"`
	CreatedAt     time.Time `json:"createdAt"`
}

// ChangedAxes 对比两个快照,按 order 顺序返回发生变化的维度
//
// prev 为 nil 时(首个版本)返回所有有数据的维度。
func ChangedAxes(prev *Snapshot, next Snapshot, order []string) []string {
	changed := []string{}
	for _, axisID := range order {
		after := next.Axes[axisID].Clone()
		if prev == nil {
			if !reflect.DeepEqual(after, AxisScore{}) {
				changed = append(changed, axisID)
			}
			continue
		}
		before := prev.Axes[axisID].Clone()
		if !reflect.DeepEqual(before, after) {
			changed = append(changed, axisID)
		}
	}
	return changed
}
