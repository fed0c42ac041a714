package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiview/backend/internal/infrastructure/config"
)

func writeQwenProject(t *testing.T, root, hash string, sessions map[string]string, qwenMD string) {
	t.Helper()
	chats := filepath.Join(root, hash, "chats")
	require.NoError(t, os.MkdirAll(chats, 0o755))
	for name, body := range sessions {
		require.NoError(t, os.WriteFile(filepath.Join(chats, name+".json"), []byte(body), 0o644))
	}
	if qwenMD != "" {
		require.NoError(t, os.WriteFile(filepath.Join(root, hash, "QWEN.md"), []byte(qwenMD), 0o644))
	}
}

func TestQwenListProjects(t *testing.T) {
	root := t.TempDir()
	writeQwenProject(t, root, "abc123def456ff", map[string]string{
		"s1": `{"messages":[{"type":"user","content":"hi","timestamp":"2026-01-02T10:00:00Z"}]}`,
	}, "# My Project\n")
	writeQwenProject(t, root, "0011223344556677", map[string]string{
		"s1": `{"messages":[]}`,
	}, "")
	// 没有 chats 目录的 hash 目录不是项目
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-project"), 0o755))

	a := NewQwenAdapter(&config.SourcesConfig{QwenProjectsDir: root})
	projects, err := a.ListProjects()
	require.NoError(t, err)
	require.Len(t, projects, 2)

	byID := map[string]string{}
	for _, p := range projects {
		byID[p.ProjectID] = p.DisplayName
	}
	assert.Equal(t, "My Project", byID["abc123def456ff"])
	// 无 QWEN.md 时截短 hash
	assert.Equal(t, "001122334455", byID["0011223344556677"])
}

func TestQwenSessionsAndRecords(t *testing.T) {
	root := t.TempDir()
	writeQwenProject(t, root, "hash", map[string]string{
		"chat-1": `{"messages":[
			{"type":"user","content":"build a parser","timestamp":"2026-01-02T10:00:00Z"},
			{"type":"qwen","content":"sure","timestamp":"2026-01-02T10:00:05Z"}
		]}`,
	}, "")

	a := NewQwenAdapter(&config.SourcesConfig{QwenProjectsDir: root})

	sessions, err := a.ListSessions("hash")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "chat-1", sessions[0].SessionID)
	assert.Equal(t, 2, sessions[0].MessageCount)
	assert.Equal(t, "build a parser", sessions[0].Title)
	assert.Equal(t, 2026, sessions[0].CreatedAt.Year())

	records, err := a.ReadRecords("hash", "chat-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].LineIndex)
	assert.Equal(t, 1, records[1].LineIndex)
	assert.Equal(t, "qwen", records[1].Data["type"])
}

func TestQwenProjectNotFound(t *testing.T) {
	a := NewQwenAdapter(&config.SourcesConfig{QwenProjectsDir: t.TempDir()})
	_, err := a.ListSessions("missing")
	assert.Error(t, err)
}
