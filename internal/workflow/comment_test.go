package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommentInput_Validate(t *testing.T) {
	assert.NoError(t, CommentInput{AxisID: "processes", Body: "Why 3?"}.Validate())

	err := CommentInput{AxisID: "processes", Body: "   "}.Validate()
	require.Error(t, err)
	assert.Equal(t, "comment.body", err.(*Error).Field)

	err = CommentInput{Body: "Why 3?"}.Validate()
	require.Error(t, err)
	assert.Equal(t, "comment.axisId", err.(*Error).Field)
}

func TestReplyDepth(t *testing.T) {
	depth, err := ReplyDepth(nil, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, depth)

	depth, err = ReplyDepth(&Comment{Depth: 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, depth)

	depth, err = ReplyDepth(&Comment{Depth: 2}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, depth)

	_, err = ReplyDepth(&Comment{Depth: 3}, 3)
	assert.Equal(t, KindValidation, KindOf(err))
}
