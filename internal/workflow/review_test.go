package workflow

import (
	"strings"
	"testing"

	"github.com/PiotrWisniewskiDBR77/consultify-sub011/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviewInput_Validate(t *testing.T) {
	p := policy.Default()
	axisID := p.AxisIDs()[0]

	tests := []struct {
		name  string
		in    ReviewInput
		field string
	}{
		{"missing recommendation", ReviewInput{Comments: "ok"}, "review.recommendation"},
		{"unknown recommendation", ReviewInput{Recommendation: "MAYBE"}, "review.recommendation"},
		{"rating out of range", ReviewInput{Recommendation: RecommendationApprove, Rating: intPtr(6)}, "review.rating"},
		{"reject without comments", ReviewInput{Recommendation: RecommendationReject, Comments: "  "}, "review.comments"},
		{"unknown axis", ReviewInput{Recommendation: RecommendationApprove, AxisComments: map[string]string{"nope": "x"}}, "review.axisComments.nope"},
		{"comments too long", ReviewInput{Recommendation: RecommendationApprove, Comments: strings.Repeat("x", 20001)}, "review.comments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate(p)
			require.Error(t, err)
			assert.Equal(t, KindValidation, KindOf(err))
			assert.Equal(t, tt.field, err.(*Error).Field)
		})
	}

	ok := ReviewInput{
		Recommendation: RecommendationRequestChanges,
		Rating:         intPtr(4),
		AxisComments:   map[string]string{axisID: "needs evidence"},
	}
	assert.NoError(t, ok.Validate(p))
	assert.NoError(t, ReviewInput{Comments: "partial"}.ValidateDraft(p))
}

func TestReview_Apply(t *testing.T) {
	r := &Review{Rating: intPtr(2), AxisComments: map[string]string{"processes": "old"}}
	in := ReviewInput{Recommendation: RecommendationApprove, Comments: "fine"}
	r.Apply(in)

	assert.Equal(t, RecommendationApprove, r.Recommendation)
	assert.Equal(t, "fine", r.Comments)
	assert.Nil(t, r.Rating)
	assert.Nil(t, r.AxisComments)
	assert.False(t, r.Submitted())
}

func TestEnums_Valid(t *testing.T) {
	assert.True(t, DecisionApprove.Valid())
	assert.False(t, Decision("DEFER").Valid())
	assert.True(t, StakeholderApprover.Valid())
	assert.False(t, StakeholderKind("OBSERVER").Valid())
}
