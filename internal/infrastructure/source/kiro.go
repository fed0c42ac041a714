package source

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
)

// KiroAdapter 读取 Kiro 的分体式布局
// 项目元数据在 workspaceStorage/<hash>/workspace.json，会话正文在
// globalStorage 的 workspace-sessions/<目录名>/ 下，目录名由工作区
// 文件夹路径经变体 base64 编码得到：去掉 = 填充，按原始填充数追加下划线
type KiroAdapter struct {
	// root workspaceStorage 目录
	root string
	// sessionsRoot workspace-sessions 目录
	sessionsRoot string
	logger       *slog.Logger
}

// NewKiroAdapter 创建 Kiro 适配器
func NewKiroAdapter(cfg *config.SourcesConfig) *KiroAdapter {
	return &KiroAdapter{
		root:         resolveRoot(cfg.KiroWorkspaceDir, func() string { return defaultWorkspaceStorageRoot("Kiro") }),
		sessionsRoot: resolveRoot(cfg.KiroSessionsDir, defaultKiroSessionsRoot),
		logger:       applog.NewModuleLogger("source", "kiro"),
	}
}

// Source 平台标识
func (a *KiroAdapter) Source() conversation.Source { return conversation.SourceKiro }

// RootPath 解析后的根目录
func (a *KiroAdapter) RootPath() string { return a.root }

// Available workspaceStorage 目录是否存在
func (a *KiroAdapter) Available() bool { return dirExists(a.root) }

// ListProjects 枚举含 workspace.json 的工作区目录
func (a *KiroAdapter) ListProjects() ([]*conversation.Project, error) {
	if !a.Available() {
		return nil, newPathNotFound(a.Source(), a.root)
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("read kiro workspace storage: %w", err)
	}

	var projects []*conversation.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectPath := filepath.Join(a.root, entry.Name())
		folder := workspaceFolderPath(projectPath)
		if folder == "" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		projects = append(projects, &conversation.Project{
			Source:       a.Source(),
			ProjectID:    entry.Name(),
			DisplayName:  workspaceDisplayName(projectPath, entry.Name()),
			Path:         projectPath,
			SessionCount: len(a.sessionIndex(folder)),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// ListSessions 读取 sessions.json 索引并逐会话补充文件元数据
func (a *KiroAdapter) ListSessions(projectID string) ([]*conversation.Session, error) {
	projectPath := filepath.Join(a.root, projectID)
	folder := workspaceFolderPath(projectPath)
	if folder == "" {
		return nil, fmt.Errorf("%w: %s/%s", conversation.ErrProjectNotFound, a.Source(), projectID)
	}

	sessionsDir := a.sessionsDir(folder)
	index := a.sessionIndex(folder)

	sessions := make([]*conversation.Session, 0, len(index))
	for _, entry := range index {
		sessionID, _ := entry["sessionId"].(string)
		if sessionID == "" {
			continue
		}
		filePath := filepath.Join(sessionsDir, sessionID+".json")
		info, err := os.Stat(filePath)
		if err != nil {
			// 索引里的孤儿条目，正文已被清理
			continue
		}

		title, _ := entry["title"].(string)
		if strings.TrimSpace(title) == "" {
			title = "Untitled Session"
		} else {
			title = truncateTitle(strings.TrimSpace(title))
		}

		sessions = append(sessions, &conversation.Session{
			Source:       a.Source(),
			ProjectID:    projectID,
			SessionID:    sessionID,
			FileName:     sessionID + ".json",
			Path:         filePath,
			SizeBytes:    info.Size(),
			MessageCount: a.countHistory(filePath),
			CreatedAt:    info.ModTime(),
			ModifiedAt:   info.ModTime(),
			Title:        title,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModifiedAt.After(sessions[j].ModifiedAt)
	})
	return sessions, nil
}

// ReadRecords 读取会话文件的 history 数组，LineIndex 为数组下标（0 起始）
func (a *KiroAdapter) ReadRecords(projectID, sessionID string) ([]conversation.RawRecord, error) {
	filePath := a.sessionPath(projectID, sessionID)
	if filePath == "" {
		return nil, fmt.Errorf("%w: %s/%s", conversation.ErrProjectNotFound, a.Source(), projectID)
	}

	raw, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s/%s", conversation.ErrSessionNotFound, a.Source(), projectID, sessionID)
		}
		return nil, fmt.Errorf("read kiro session: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse kiro session: %w", err)
	}
	history, _ := doc["history"].([]any)

	records := make([]conversation.RawRecord, 0, len(history))
	for i, item := range history {
		data, ok := item.(map[string]any)
		if !ok {
			a.logger.Debug("skip non-object history entry", "session", sessionID, "index", i)
			continue
		}
		records = append(records, conversation.RawRecord{LineIndex: i, Data: data})
	}
	return records, nil
}

// SessionFiles 会话底层文件
func (a *KiroAdapter) SessionFiles(projectID, sessionID string) []string {
	if path := a.sessionPath(projectID, sessionID); path != "" {
		return []string{path}
	}
	return nil
}

// ProjectFiles 项目指纹文件：workspace.json 加会话索引与全部会话文件
func (a *KiroAdapter) ProjectFiles(projectID string) []string {
	projectPath := filepath.Join(a.root, projectID)
	files := []string{filepath.Join(projectPath, workspaceFileName)}

	folder := workspaceFolderPath(projectPath)
	if folder == "" {
		return files
	}
	sessionsDir := a.sessionsDir(folder)
	files = append(files, filepath.Join(sessionsDir, "sessions.json"))
	for _, entry := range a.sessionIndex(folder) {
		if sessionID, _ := entry["sessionId"].(string); sessionID != "" {
			files = append(files, filepath.Join(sessionsDir, sessionID+".json"))
		}
	}
	return files
}

// sessionsDir 工作区文件夹路径对应的会话目录
func (a *KiroAdapter) sessionsDir(folder string) string {
	return filepath.Join(a.sessionsRoot, encodeKiroDirName(folder))
}

// sessionIndex 读取 sessions.json，失败返回空索引
func (a *KiroAdapter) sessionIndex(folder string) []map[string]any {
	raw, err := os.ReadFile(filepath.Join(a.sessionsDir(folder), "sessions.json"))
	if err != nil {
		return nil
	}
	var entries []map[string]any
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

func (a *KiroAdapter) sessionPath(projectID, sessionID string) string {
	folder := workspaceFolderPath(filepath.Join(a.root, projectID))
	if folder == "" {
		return ""
	}
	return filepath.Join(a.sessionsDir(folder), sessionID+".json")
}

// countHistory 统计会话文件的 history 条数
func (a *KiroAdapter) countHistory(filePath string) int {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return 0
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0
	}
	history, _ := doc["history"].([]any)
	return len(history)
}

// encodeKiroDirName 工作区路径到会话目录名的编码
// 标准 base64 去掉 = 填充，再按去掉的填充数追加下划线：
// 去掉一个 = 追加两个下划线，去掉两个 = 追加一个下划线
func encodeKiroDirName(folder string) string {
	clean := strings.TrimPrefix(folder, "file://")
	encoded := base64.StdEncoding.EncodeToString([]byte(clean))

	switch {
	case strings.HasSuffix(encoded, "=="):
		encoded = strings.TrimSuffix(encoded, "==") + "_"
	case strings.HasSuffix(encoded, "="):
		encoded = strings.TrimSuffix(encoded, "=") + "__"
	}
	return encoded
}
