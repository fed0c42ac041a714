package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiview/backend/internal/infrastructure/config"
)

// writeClaudeSession 写入一个 JSONL 会话文件
func writeClaudeSession(t *testing.T, root, project, session string, lines []string) string {
	t.Helper()
	dir := filepath.Join(root, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, session+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func newClaudeForTest(root string) *ClaudeAdapter {
	return NewClaudeAdapter(&config.SourcesConfig{ClaudeProjectsDir: root})
}

func TestClaudeAdapterUnavailable(t *testing.T) {
	a := newClaudeForTest(filepath.Join(t.TempDir(), "missing"))

	assert.False(t, a.Available())
	_, err := a.ListProjects()
	assert.Error(t, err)

	var pathErr *PathNotFoundError
	assert.ErrorAs(t, err, &pathErr)
}

func TestClaudeListProjects(t *testing.T) {
	root := t.TempDir()
	writeClaudeSession(t, root, "-Users-dev-myapp", "s1", []string{
		`{"type":"user","message":{"role":"user","content":"hello"},"timestamp":"2026-01-02T10:00:00Z"}`,
	})
	writeClaudeSession(t, root, "-Users-dev-myapp", "s2", []string{
		`{"type":"user","message":{"role":"user","content":"again"}}`,
	})

	a := newClaudeForTest(root)
	projects, err := a.ListProjects()
	require.NoError(t, err)
	require.Len(t, projects, 1)

	p := projects[0]
	assert.Equal(t, "-Users-dev-myapp", p.ProjectID)
	assert.Equal(t, "Users/dev/myapp", p.DisplayName)
	assert.Equal(t, 2, p.SessionCount)
}

func TestClaudeListSessionsTitlePriority(t *testing.T) {
	root := t.TempDir()
	// summary 记录在文件末尾也优先于第一条用户消息
	writeClaudeSession(t, root, "-p", "with-summary", []string{
		`{"type":"user","message":{"role":"user","content":"first user message"},"timestamp":"2026-01-02T10:00:00Z"}`,
		`{"type":"summary","summary":"Refactor cache layer"}`,
	})
	writeClaudeSession(t, root, "-p", "no-summary", []string{
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"block style prompt"}]}}`,
	})
	writeClaudeSession(t, root, "-p", "empty", []string{
		`{"type":"system","data":"noise"}`,
	})

	a := newClaudeForTest(root)
	sessions, err := a.ListSessions("-p")
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	byID := map[string]string{}
	for _, s := range sessions {
		byID[s.SessionID] = s.Title
	}
	assert.Equal(t, "Refactor cache layer", byID["with-summary"])
	assert.Equal(t, "block style prompt", byID["no-summary"])
	assert.Equal(t, "Untitled Session", byID["empty"])
}

func TestClaudeReadRecordsMalformedTrailingLine(t *testing.T) {
	root := t.TempDir()
	lines := make([]string, 0, 51)
	for i := 0; i < 50; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"user","message":{"role":"user","content":"msg %d"}}`, i))
	}
	// 写入中断产生的残行
	lines = append(lines, `{"type":"assistant","mess`)
	writeClaudeSession(t, root, "-p", "s", lines)

	a := newClaudeForTest(root)
	records, err := a.ReadRecords("-p", "s")
	require.NoError(t, err)
	assert.Len(t, records, 50)
}

func TestClaudeLineIndexStable(t *testing.T) {
	root := t.TempDir()
	writeClaudeSession(t, root, "-p", "s", []string{
		`{"type":"user","message":{"role":"user","content":"a"}}`,
		`not json`,
		`{"type":"assistant","message":{"role":"assistant","content":"b"}}`,
	})

	a := newClaudeForTest(root)
	first, err := a.ReadRecords("-p", "s")
	require.NoError(t, err)
	second, err := a.ReadRecords("-p", "s")
	require.NoError(t, err)

	require.Len(t, first, 2)
	// 坏行占用行号：两次解析的 line_index 完全一致且严格递增
	assert.Equal(t, 0, first[0].LineIndex)
	assert.Equal(t, 2, first[1].LineIndex)
	for i := range first {
		assert.Equal(t, first[i].LineIndex, second[i].LineIndex)
	}
}

func TestFormatClaudeProjectName(t *testing.T) {
	assert.Equal(t, "lohas/code/backend", formatClaudeProjectName("-Users-lohas-code-backend"))
	assert.Equal(t, "a/b", formatClaudeProjectName("-a-b"))
	assert.Equal(t, "plain", formatClaudeProjectName("plain"))
}
