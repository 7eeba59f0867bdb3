package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateMachine_Transitions(t *testing.T) {
	sm := NewStateMachine()

	allowed := map[Status][]Status{
		StatusDraft:            {StatusInReview},
		StatusRejected:         {StatusInReview, StatusDraft},
		StatusInReview:         {StatusAwaitingApproval},
		StatusAwaitingApproval: {StatusApproved, StatusRejected},
		StatusApproved:         {StatusArchived},
		StatusArchived:         {},
	}
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, sm.CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestStateMachine_Transition(t *testing.T) {
	sm := NewStateMachine()

	change, err := sm.Transition(StatusAwaitingApproval, StatusRejected, "scores unsupported", "pm")
	require.NoError(t, err)
	assert.Equal(t, StatusAwaitingApproval, change.From)
	assert.Equal(t, StatusRejected, change.To)
	assert.Equal(t, "scores unsupported", change.Reason)
	assert.Equal(t, "pm", change.Operator)
	assert.False(t, change.Time.IsZero())

	_, err = sm.Transition(StatusDraft, StatusApproved, "", "pm")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrState))

	var we *Error
	require.True(t, errors.As(err, &we))
	assert.Equal(t, StatusDraft, we.Current)
	assert.Equal(t, []Status{StatusAwaitingApproval}, we.Required)
}

func TestStateMachine_AllowedIsCopy(t *testing.T) {
	sm := NewStateMachine()
	next := sm.Allowed(StatusRejected)
	next[0] = StatusArchived
	assert.Equal(t, []Status{StatusInReview, StatusDraft}, sm.Allowed(StatusRejected))
	assert.Empty(t, sm.Allowed(StatusArchived))
}

func TestStatus_Predicates(t *testing.T) {
	assert.True(t, StatusDraft.Editable())
	assert.True(t, StatusRejected.Editable())
	assert.False(t, StatusInReview.Editable())
	assert.False(t, StatusApproved.Editable())

	assert.True(t, StatusArchived.Terminal())
	assert.False(t, StatusApproved.Terminal())

	assert.True(t, StatusAwaitingApproval.Valid())
	assert.False(t, Status("PENDING").Valid())
}
