package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func completeAssessment(p *policy.Policy) *Assessment {
	a := NewAssessment("a-1", "org-1", "alice", "Plant review", p, time.Now())
	for _, axisID := range p.AxisIDs() {
		a.ApplyAxisPatch(axisID, AxisPatch{
			ActualScore:   intPtr(3),
			TargetScore:   intPtr(5),
			Justification: strPtr(strings.Repeat("j", p.Rules().MinJustificationLength)),
		})
	}
	return a
}

func TestNewAssessment(t *testing.T) {
	p := policy.Default()
	a := NewAssessment("a-1", "org-1", "alice", "Plant review", p, time.Now())

	assert.Equal(t, StatusDraft, a.Status)
	assert.Equal(t, 0, a.CurrentVersion)
	assert.Len(t, a.Axes, len(p.AxisIDs()))
	assert.True(t, a.IsOwner("alice"))
	assert.False(t, a.IsOwner(""))
}

func TestCheckComplete(t *testing.T) {
	p := policy.Default()
	ids := p.AxisIDs()

	require.NoError(t, completeAssessment(p).CheckComplete(p))

	a := completeAssessment(p)
	score := a.Axes[ids[2]]
	score.TargetScore = nil
	a.Axes[ids[2]] = score
	err := a.CheckComplete(p)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Equal(t, "axes."+ids[2]+".targetScore", err.(*Error).Field)

	a = completeAssessment(p)
	a.ApplyAxisPatch(ids[0], AxisPatch{Justification: strPtr(strings.Repeat("ż", p.Rules().MinJustificationLength-1))})
	err = a.CheckComplete(p)
	assert.Equal(t, "axes."+ids[0]+".justification", err.(*Error).Field)

	a = completeAssessment(p)
	delete(a.Axes, ids[len(ids)-1])
	err = a.CheckComplete(p)
	assert.Equal(t, "axes."+ids[len(ids)-1], err.(*Error).Field)
}

func TestAxisPatch_Validate(t *testing.T) {
	bad := Priority("URGENT")
	tests := []struct {
		name  string
		patch AxisPatch
		field string
	}{
		{"empty", AxisPatch{}, "axis"},
		{"actual too low", AxisPatch{ActualScore: intPtr(0)}, "axis.actualScore"},
		{"target too high", AxisPatch{TargetScore: intPtr(8)}, "axis.targetScore"},
		{"priority", AxisPatch{Priority: &bad}, "axis.priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.patch.Validate()
			require.Error(t, err)
			assert.Equal(t, tt.field, err.(*Error).Field)
		})
	}

	high := PriorityHigh
	assert.NoError(t, AxisPatch{ActualScore: intPtr(7), Priority: &high}.Validate())
}

func TestApplyAxisPatch(t *testing.T) {
	p := policy.Default()
	axisID := p.AxisIDs()[0]
	a := NewAssessment("a-1", "org-1", "alice", "Plant review", p, time.Now())

	changed := a.ApplyAxisPatch(axisID, AxisPatch{ActualScore: intPtr(2), Timeline: strPtr("Q3")})
	assert.Equal(t, []string{"actualScore", "timeline"}, changed)

	// 未指定的字段保持不变
	a.ApplyAxisPatch(axisID, AxisPatch{TargetScore: intPtr(6)})
	score := a.Axes[axisID]
	assert.Equal(t, 2, *score.ActualScore)
	assert.Equal(t, 6, *score.TargetScore)
	assert.Equal(t, "Q3", score.Timeline)
}

func TestCloneAxes_Independent(t *testing.T) {
	axes := map[string]AxisScore{
		"processes": {ActualScore: intPtr(2), Evidence: []string{"audit.pdf"}},
	}
	clone := CloneAxes(axes)
	*clone["processes"].ActualScore = 5
	clone["processes"].Evidence[0] = "other.pdf"

	assert.Equal(t, 2, *axes["processes"].ActualScore)
	assert.Equal(t, "audit.pdf", axes["processes"].Evidence[0])
}
