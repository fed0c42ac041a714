package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
)

func newEngineForTest(maxLines int) *Engine {
	return NewEngine(&config.DiffConfig{MaxLines: maxLines})
}

func TestCompareIdentical(t *testing.T) {
	e := newEngineForTest(0)
	text := "line one\nline two\nline three\n"

	lines := e.Compare(text, text)
	require.Len(t, lines, 3)
	for i, line := range lines {
		assert.Equal(t, conversation.DiffContext, line.Kind)
		assert.Equal(t, i+1, line.OldLineNo)
		assert.Equal(t, i+1, line.NewLineNo)
	}
}

func TestCompareEmptyToOneLine(t *testing.T) {
	e := newEngineForTest(0)

	lines := e.Compare("", "x\n")
	require.Len(t, lines, 1)
	assert.Equal(t, conversation.DiffAdded, lines[0].Kind)
	assert.Equal(t, "x", lines[0].Text)
	assert.Equal(t, 0, lines[0].OldLineNo)
	assert.Equal(t, 1, lines[0].NewLineNo)
}

func TestCompareOneLineToEmpty(t *testing.T) {
	e := newEngineForTest(0)

	lines := e.Compare("x\n", "")
	require.Len(t, lines, 1)
	assert.Equal(t, conversation.DiffRemoved, lines[0].Kind)
	assert.Equal(t, "x", lines[0].Text)
	assert.Equal(t, 1, lines[0].OldLineNo)
	assert.Equal(t, 0, lines[0].NewLineNo)
}

func TestCompareReplace(t *testing.T) {
	e := newEngineForTest(0)

	lines := e.Compare("a\nold\nc\n", "a\nnew\nc\n")
	require.Len(t, lines, 4)

	assert.Equal(t, conversation.DiffContext, lines[0].Kind)
	assert.Equal(t, conversation.DiffRemoved, lines[1].Kind)
	assert.Equal(t, "old", lines[1].Text)
	assert.Equal(t, 2, lines[1].OldLineNo)
	assert.Equal(t, conversation.DiffAdded, lines[2].Kind)
	assert.Equal(t, "new", lines[2].Text)
	assert.Equal(t, 2, lines[2].NewLineNo)
	assert.Equal(t, conversation.DiffContext, lines[3].Kind)
	assert.Equal(t, 3, lines[3].OldLineNo)
	assert.Equal(t, 3, lines[3].NewLineNo)
}

func TestCompareDeterministic(t *testing.T) {
	e := newEngineForTest(0)
	before := "a\nb\nc\nd\n"
	after := "a\nc\nb\nd\n"

	first := e.Compare(before, after)
	second := e.Compare(before, after)
	assert.Equal(t, first, second)
}

func TestCompareTruncation(t *testing.T) {
	e := newEngineForTest(4)
	before := "1\n2\n3\n4\n5\n6\n7\n8\n"

	lines := e.Compare(before, before)
	require.Len(t, lines, 5)
	assert.Equal(t, truncatedMarker, lines[4].Text)
	for _, line := range lines[:4] {
		assert.NotEqual(t, truncatedMarker, line.Text)
	}
}
