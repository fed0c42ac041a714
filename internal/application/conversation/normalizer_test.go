package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiview/backend/internal/application/diff"
	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
)

func newNormalizerForTest() *Normalizer {
	return NewNormalizer(diff.NewEngine(&config.DiffConfig{MaxLines: 2000}))
}

func rec(index int, data map[string]any) conversation.RawRecord {
	return conversation.RawRecord{LineIndex: index, Data: data}
}

func TestNormalizeClaudeSummary(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(0, map[string]any{"type": "summary", "summary": "Session recap"}),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleSummary, msgs[0].Role)
	assert.Equal(t, "Session recap", msgs[0].Content)
}

func TestNormalizeClaudeStringContent(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(3, map[string]any{
			"type":      "user",
			"timestamp": "2026-01-02T10:00:00Z",
			"message":   map[string]any{"role": "user", "content": "import os and fix it"},
		}),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, 3, msgs[0].LineIndex)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "2026-01-02T10:00:00Z", msgs[0].Timestamp)
	assert.True(t, msgs[0].HasCode)
}

func TestNormalizeClaudeBlocksWithEditTool(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(0, map[string]any{
			"type": "assistant",
			"message": map[string]any{
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "text", "text": "applying the change"},
					map[string]any{
						"type": "tool_use",
						"name": "Edit",
						"input": map[string]any{
							"file_path":  "main.go",
							"old_string": "foo()\n",
							"new_string": "bar()\n",
						},
					},
				},
			},
		}),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, "applying the change", msgs[0].Content)
	require.Len(t, msgs[0].ToolCalls, 1)

	call := msgs[0].ToolCalls[0]
	assert.Equal(t, "Edit", call.Name)
	assert.True(t, call.IsEdit)
	require.Len(t, call.Diff, 2)
	assert.Equal(t, conversation.DiffRemoved, call.Diff[0].Kind)
	assert.Equal(t, "foo()", call.Diff[0].Text)
	assert.Equal(t, conversation.DiffAdded, call.Diff[1].Kind)
}

func TestNormalizeClaudeToolUseWithoutName(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(0, map[string]any{
			"type": "assistant",
			"message": map[string]any{
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "tool_use", "input": map[string]any{"command": "ls"}},
				},
			},
		}),
	})
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].ToolCalls, 1)

	// 缺失工具名的块保留为 unknown
	call := msgs[0].ToolCalls[0]
	assert.Equal(t, "unknown", call.Name)
	assert.False(t, call.IsEdit)
}

func TestNormalizeClaudeToolResultWithDiff(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(0, map[string]any{
			"type": "user",
			"message": map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{
						"type":    "tool_result",
						"content": "file updated",
						"toolUseResult": map[string]any{
							"filePath":  "a.go",
							"oldString": "x\n",
							"newString": "y\n",
						},
					},
				},
			},
		}),
	})
	require.Len(t, msgs, 1)
	require.Len(t, msgs[0].ToolCalls, 1)

	call := msgs[0].ToolCalls[0]
	assert.True(t, call.IsEdit)
	assert.Equal(t, "file updated", call.Result)
	assert.NotEmpty(t, call.Diff)
}

func TestNormalizeClaudeLegacyRole(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(0, map[string]any{"role": "assistant", "content": "plain reply"}),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleAssistant, msgs[0].Role)
	assert.Equal(t, "plain reply", msgs[0].Content)
}

func TestNormalizeClaudeUnknownTypePlaceholder(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceClaude, []conversation.RawRecord{
		rec(5, map[string]any{"type": "system", "subtype": "init"}),
	})
	require.Len(t, msgs, 1)
	// 未知类型保留原始内容，不丢弃
	assert.Equal(t, conversation.RoleSummary, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "system")
	assert.Equal(t, 5, msgs[0].LineIndex)
}

func TestNormalizeQwen(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceQwen, []conversation.RawRecord{
		rec(0, map[string]any{"type": "user", "content": "question"}),
		rec(1, map[string]any{"type": "qwen", "content": "```go\nfunc main() {}\n```"}),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	// qwen 角色映射为 assistant
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	assert.True(t, msgs[1].HasCode)
}

func TestNormalizeStateRecords(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceCursor, []conversation.RawRecord{
		rec(0, map[string]any{"role": "user", "content": "prompt text"}),
		rec(1, map[string]any{"role": "assistant", "content": "reply", "timestamp": 1767348000000.0}),
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	// 毫秒时间戳转为 RFC3339
	assert.Contains(t, msgs[1].Timestamp, "2026")
}

func TestNormalizeKiro(t *testing.T) {
	n := newNormalizerForTest()

	msgs := n.Normalize(conversation.SourceKiro, []conversation.RawRecord{
		rec(0, map[string]any{
			"message": map[string]any{
				"role": "user",
				"content": []any{
					map[string]any{"type": "text", "text": "first part"},
					map[string]any{"type": "image"},
				},
			},
		}),
	})
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "first part\n\n[Image attached]", msgs[0].Content)
}

func TestContainsCode(t *testing.T) {
	assert.True(t, containsCode("```python\nprint(1)\n```"))
	assert.True(t, containsCode("def handle(x):"))
	assert.True(t, containsCode("<div class=\"x\">"))
	assert.False(t, containsCode("just a plain sentence"))
}

func TestCoerceTimestamp(t *testing.T) {
	assert.Equal(t, "2026-01-02T10:00:00Z", coerceTimestamp("2026-01-02T10:00:00Z"))
	assert.Equal(t, "", coerceTimestamp(nil))
	assert.Contains(t, coerceTimestamp(1767348000000.0), "2026-01-02")
}
