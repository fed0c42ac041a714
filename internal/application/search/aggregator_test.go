package search

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/application/diff"
	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/cache"
	"github.com/aiview/backend/internal/infrastructure/config"
	"github.com/aiview/backend/internal/infrastructure/source"
)

func newAggregatorForTest(t *testing.T, claudeDir string, searchCfg *config.SearchConfig) *Aggregator {
	t.Helper()

	missing := filepath.Join(t.TempDir(), "missing")
	cfg := &config.SourcesConfig{
		ClaudeProjectsDir:  claudeDir,
		QwenProjectsDir:    missing,
		CursorWorkspaceDir: missing,
		TraeWorkspaceDir:   missing,
		KiroWorkspaceDir:   missing,
		KiroSessionsDir:    missing,
	}
	cacheCfg := &config.CacheConfig{HotCapacity: 32, WarmCapacity: 32, WarmTTL: time.Minute}

	m, err := cache.NewManager(cacheCfg)
	require.NoError(t, err)

	registry := source.NewRegistry(cfg)
	normalizer := appconv.NewNormalizer(diff.NewEngine(&config.DiffConfig{MaxLines: 2000}))
	service := appconv.NewService(registry, m, normalizer, cacheCfg)
	return NewAggregator(service, registry, searchCfg)
}

// writeSearchSession 写入 claude 会话并固定文件修改时间
func writeSearchSession(t *testing.T, claudeDir, project, session string, contents []string, modTime time.Time) {
	t.Helper()

	dir := filepath.Join(claudeDir, project)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	var b strings.Builder
	for i, content := range contents {
		b.WriteString(fmt.Sprintf(`{"type":"user","timestamp":"2026-01-02T10:%02d:00Z","message":{"role":"user","content":%q}}`, i, content))
		b.WriteString("\n")
	}
	path := filepath.Join(dir, session+".jsonl")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	require.NoError(t, os.Chtimes(path, modTime, modTime))
}

func defaultSearchConfig() *config.SearchConfig {
	return &config.SearchConfig{
		SourceTimeout: 10 * time.Second,
		DefaultLimit:  50,
		PreviewCount:  3,
	}
}

func TestSearchGlobalRanking(t *testing.T) {
	claudeDir := t.TempDir()
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	// 5 次出现
	writeSearchSession(t, claudeDir, "-Users-dev-app", "s_high",
		[]string{"needle needle", "needle and needle and needle"}, base)
	// 各 3 次出现，修改时间决定先后
	writeSearchSession(t, claudeDir, "-Users-dev-app", "s_old",
		[]string{"needle needle needle"}, base.Add(-time.Hour))
	writeSearchSession(t, claudeDir, "-Users-dev-app", "s_new",
		[]string{"needle", "needle needle"}, base.Add(time.Hour))

	a := newAggregatorForTest(t, claudeDir, defaultSearchConfig())

	result, err := a.SearchGlobal(context.Background(), "needle", 0, nil)
	require.NoError(t, err)
	require.Len(t, result.Hits, 3)

	// 出现次数降序，同次数按修改时间降序
	assert.Equal(t, "s_high", result.Hits[0].Session.SessionID)
	assert.Equal(t, 5, result.Hits[0].MatchCount)
	assert.Equal(t, "s_new", result.Hits[1].Session.SessionID)
	assert.Equal(t, "s_old", result.Hits[2].Session.SessionID)
}

func TestSearchGlobalLimitAfterSort(t *testing.T) {
	claudeDir := t.TempDir()
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	writeSearchSession(t, claudeDir, "-Users-dev-app", "weak", []string{"needle"}, base)
	writeSearchSession(t, claudeDir, "-Users-dev-app", "strong", []string{"needle needle needle"}, base)

	a := newAggregatorForTest(t, claudeDir, defaultSearchConfig())

	result, err := a.SearchGlobal(context.Background(), "needle", 1, nil)
	require.NoError(t, err)
	// 截断发生在全局排序之后，保留的是最强命中
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "strong", result.Hits[0].Session.SessionID)
}

func TestSearchGlobalSkippedSources(t *testing.T) {
	claudeDir := t.TempDir()
	writeSearchSession(t, claudeDir, "-Users-dev-app", "s1", []string{"needle"},
		time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))

	a := newAggregatorForTest(t, claudeDir, defaultSearchConfig())

	result, err := a.SearchGlobal(context.Background(), "needle", 0, nil)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)

	// 其余四个平台目录缺失，全部进入 skipped
	require.Len(t, result.Skipped, 4)
	for _, skipped := range result.Skipped {
		assert.Equal(t, "unavailable", skipped.Reason)
		assert.NotEqual(t, conversation.SourceClaude, skipped.Source)
	}
}

func TestSearchGlobalEmptyQuery(t *testing.T) {
	a := newAggregatorForTest(t, t.TempDir(), defaultSearchConfig())

	result, err := a.SearchGlobal(context.Background(), "   ", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Hits)
	assert.Empty(t, result.Skipped)
}

func TestSearchGlobalPreviewCount(t *testing.T) {
	claudeDir := t.TempDir()
	writeSearchSession(t, claudeDir, "-Users-dev-app", "s1",
		[]string{"needle one", "needle two", "needle three", "needle four"},
		time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))

	cfg := defaultSearchConfig()
	cfg.PreviewCount = 2
	a := newAggregatorForTest(t, claudeDir, cfg)

	result, err := a.SearchGlobal(context.Background(), "needle", 0, []conversation.Source{conversation.SourceClaude})
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, 4, result.Hits[0].MatchCount)
	assert.Len(t, result.Hits[0].Previews, 2)
}
