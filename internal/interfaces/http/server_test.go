package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/application/diff"
	appsearch "github.com/aiview/backend/internal/application/search"
	"github.com/aiview/backend/internal/infrastructure/cache"
	"github.com/aiview/backend/internal/infrastructure/config"
	"github.com/aiview/backend/internal/infrastructure/source"
	"github.com/aiview/backend/internal/interfaces/http/handler"
)

// newServerForTest 用真实 claude 目录组装完整路由
func newServerForTest(t *testing.T, claudeDir string) *HTTPServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	missing := filepath.Join(t.TempDir(), "missing")
	sourcesCfg := &config.SourcesConfig{
		ClaudeProjectsDir:  claudeDir,
		QwenProjectsDir:    missing,
		CursorWorkspaceDir: missing,
		TraeWorkspaceDir:   missing,
		KiroWorkspaceDir:   missing,
		KiroSessionsDir:    missing,
	}
	cacheCfg := &config.CacheConfig{HotCapacity: 32, WarmCapacity: 32, WarmTTL: time.Minute}
	searchCfg := &config.SearchConfig{SourceTimeout: 10 * time.Second, DefaultLimit: 50, PreviewCount: 3}

	m, err := cache.NewManager(cacheCfg)
	require.NoError(t, err)

	registry := source.NewRegistry(sourcesCfg)
	normalizer := appconv.NewNormalizer(diff.NewEngine(&config.DiffConfig{MaxLines: 2000}))
	service := appconv.NewService(registry, m, normalizer, cacheCfg)
	aggregator := appsearch.NewAggregator(service, registry, searchCfg)

	return NewServer(
		&config.ServerConfig{HTTPPort: ":0"},
		handler.NewProjectHandler(service),
		handler.NewSessionHandler(service, NewFavoritesStore()),
		handler.NewSearchHandler(aggregator),
		handler.NewHealthHandler(service),
		handler.NewCacheHandler(m),
	)
}

func writeClaudeFixture(t *testing.T, claudeDir string) {
	t.Helper()
	dir := filepath.Join(claudeDir, "-Users-dev-myapp")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	lines := `{"type":"user","timestamp":"2026-01-02T10:00:00Z","message":{"role":"user","content":"hello needle"}}
{"type":"assistant","timestamp":"2026-01-02T10:01:00Z","message":{"role":"assistant","content":"hi there"}}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(lines), 0o644))
}

func doRequest(t *testing.T, srv *HTTPServer, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServerHealthEndpoint(t *testing.T) {
	srv := newServerForTest(t, t.TempDir())

	rec, body := doRequest(t, srv, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestServerListProjects(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	rec, body := doRequest(t, srv, http.MethodGet, "/api/v1/sources/claude/projects")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	projects := data["projects"].([]any)
	require.Len(t, projects, 1)
	project := projects[0].(map[string]any)
	assert.Equal(t, "Users/dev/myapp", project["display_name"])
}

func TestServerGetConversation(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	rec, body := doRequest(t, srv, http.MethodGet,
		"/api/v1/sources/claude/projects/-Users-dev-myapp/sessions/s1/messages?per_page=1&page=2")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	messages := data["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "assistant", messages[0].(map[string]any)["role"])

	page := body["page"].(map[string]any)
	assert.Equal(t, 2.0, page["page"])
	assert.Equal(t, 2.0, page["total"])
}

func TestServerGetSummary(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	rec, body := doRequest(t, srv, http.MethodGet,
		"/api/v1/sources/claude/projects/-Users-dev-myapp/sessions/s1/summary")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	assert.Equal(t, "hello needle", data["summary"])
}

func TestServerInvalidSource(t *testing.T) {
	srv := newServerForTest(t, t.TempDir())

	rec, _ := doRequest(t, srv, http.MethodGet, "/api/v1/sources/notepad/projects")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerSessionNotFound(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	rec, _ := doRequest(t, srv, http.MethodGet,
		"/api/v1/sources/claude/projects/-Users-dev-myapp/sessions/absent")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerSearch(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	rec, body := doRequest(t, srv, http.MethodGet, "/api/v1/search?q=needle")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]any)
	hits := data["hits"].([]any)
	require.Len(t, hits, 1)
	assert.Equal(t, 1.0, hits[0].(map[string]any)["match_count"])

	// 缺少查询词返回参数错误
	rec, _ = doRequest(t, srv, http.MethodGet, "/api/v1/search")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerCacheEndpoints(t *testing.T) {
	claudeDir := t.TempDir()
	writeClaudeFixture(t, claudeDir)
	srv := newServerForTest(t, claudeDir)

	// 先触发一次读取填充缓存
	rec, _ := doRequest(t, srv, http.MethodGet, "/api/v1/sources/claude/projects")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body := doRequest(t, srv, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := body["data"].(map[string]any)
	assert.Equal(t, 1.0, stats["hot_entries"])

	rec, _ = doRequest(t, srv, http.MethodPost, fmt.Sprintf("/api/v1/cache/clear?prefix=%s", "claude/"))
	require.Equal(t, http.StatusOK, rec.Code)

	_, body = doRequest(t, srv, http.MethodGet, "/api/v1/cache/stats")
	stats = body["data"].(map[string]any)
	assert.Equal(t, 0.0, stats["hot_entries"])
}
