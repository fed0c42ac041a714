package source

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiview/backend/internal/infrastructure/config"
)

func TestEncodeKiroDirName(t *testing.T) {
	// 长度被 3 整除：无填充，无下划线
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("/ab")), encodeKiroDirName("/ab"))

	// 去掉一个 = 补两个下划线
	encoded := encodeKiroDirName("/home")
	assert.True(t, strings.HasSuffix(encoded, "__"))
	assert.NotContains(t, encoded, "=")

	// 去掉两个 = 补一个下划线
	encoded = encodeKiroDirName("/a/b")
	assert.True(t, strings.HasSuffix(encoded, "_"))
	assert.False(t, strings.HasSuffix(encoded, "__"))
	assert.NotContains(t, encoded, "=")

	// file:// 前缀在编码前去掉
	assert.Equal(t, encodeKiroDirName("/a/b"), encodeKiroDirName("file:///a/b"))
}

func TestKiroAdapterEndToEnd(t *testing.T) {
	wsRoot := t.TempDir()
	sessionsRoot := t.TempDir()

	folder := "/Users/dev/proj"
	wsDir := filepath.Join(wsRoot, "hash1")
	require.NoError(t, os.MkdirAll(wsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(wsDir, workspaceFileName),
		[]byte(`{"folder":"file://`+folder+`"}`), 0o644))

	sessDir := filepath.Join(sessionsRoot, encodeKiroDirName(folder))
	require.NoError(t, os.MkdirAll(sessDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sessDir, "sessions.json"),
		[]byte(`[{"sessionId":"sess-1","title":"Add retry logic"},{"sessionId":"gone"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(sessDir, "sess-1.json"),
		[]byte(`{"history":[
			{"message":{"role":"user","content":[{"type":"text","text":"please add retries"}]}},
			{"message":{"role":"assistant","content":[{"type":"text","text":"done"},{"type":"image"}]}}
		]}`), 0o644))

	a := NewKiroAdapter(&config.SourcesConfig{
		KiroWorkspaceDir: wsRoot,
		KiroSessionsDir:  sessionsRoot,
	})

	projects, err := a.ListProjects()
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Users/dev/proj", projects[0].DisplayName)
	// 项目级计数取索引长度，孤儿条目在 ListSessions 才被过滤
	assert.Equal(t, 2, projects[0].SessionCount)

	sessions, err := a.ListSessions("hash1")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-1", sessions[0].SessionID)
	assert.Equal(t, "Add retry logic", sessions[0].Title)
	assert.Equal(t, 2, sessions[0].MessageCount)

	records, err := a.ReadRecords("hash1", "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].LineIndex)
	assert.Equal(t, 1, records[1].LineIndex)
}
