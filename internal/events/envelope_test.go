package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("CET", 3600))
	env, err := New("a-1", "org-1", []string{"alice", "", "bob", "alice"}, StatusChanged{
		From:     "DRAFT",
		To:       "IN_REVIEW",
		Operator: "alice",
		Version:  1,
	}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, TypeStatusChanged, env.Type)
	assert.Equal(t, SchemaVersion, env.Version)
	assert.Equal(t, []string{"alice", "bob"}, env.Audience)
	assert.Equal(t, time.UTC, env.Timestamp.Location())

	data, err := json.Marshal(env)
	require.NoError(t, err)
	var decoded Envelope
	require.NoError(t, json.Unmarshal(data, &decoded))

	payload, err := decoded.Decode()
	require.NoError(t, err)
	changed, ok := payload.(StatusChanged)
	require.True(t, ok)
	assert.Equal(t, "IN_REVIEW", changed.To)
}

func TestNew_InvalidPayload(t *testing.T) {
	_, err := New("a-1", "org-1", nil, ReviewSubmitted{
		ReviewID:       "r-1",
		ReviewerID:     "rev1",
		Version:        1,
		Recommendation: "MAYBE",
		SubmittedCount: 1,
		Quorum:         2,
	}, time.Now())
	assert.Error(t, err)

	_, err = New("a-1", "org-1", nil, CommentResolved{CommentID: "c-1"}, time.Now())
	assert.Error(t, err)
}

func TestDecode_Rejects(t *testing.T) {
	env, err := New("a-1", "org-1", nil, CommentResolved{CommentID: "c-1", ResolvedBy: "alice"}, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"schema version", func(e *Envelope) { e.Version = "2" }},
		{"unknown type", func(e *Envelope) { e.Type = "assessment.unknown" }},
		{"malformed payload", func(e *Envelope) { e.Payload = json.RawMessage(`[1,2]`) }},
		{"missing field", func(e *Envelope) { e.Payload = json.RawMessage(`{"comment_id":"c-1"}`) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := env
			tt.mutate(&e)
			_, err := e.Decode()
			assert.Error(t, err)
		})
	}
}

func TestDecode_AllTypes(t *testing.T) {
	now := time.Now()
	payloads := []Payload{
		StatusChanged{From: "IN_REVIEW", To: "AWAITING_APPROVAL", Operator: "system", Version: 2},
		VersionCreated{Version: 3, RestoredFrom: 1, ChangedAxes: []string{"processes"}, CreatedBy: "alice"},
		ReviewSubmitted{ReviewID: "r-1", ReviewerID: "rev1", Version: 1, Recommendation: "APPROVE", SubmittedCount: 1, Quorum: 2},
		CommentAdded{CommentID: "c-1", AxisID: "processes", UserID: "rev1", Depth: 1},
		CommentResolved{CommentID: "c-1", ResolvedBy: "alice"},
		StakeholderAssigned{UserID: "rev1", Kind: "REVIEWER", AssignedBy: "pm"},
		ReviewSLABreached{Version: 1, SubmittedAt: now.Add(-72 * time.Hour), DueAt: now, Received: 1, Quorum: 2},
	}
	for _, p := range payloads {
		env, err := New("a-1", "org-1", nil, p, now)
		require.NoError(t, err, p.EventType())
		got, err := env.Decode()
		require.NoError(t, err, p.EventType())
		assert.Equal(t, p.EventType(), got.EventType())
	}
}
