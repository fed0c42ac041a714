package source

import (
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

// 各编辑器存放对话历史的已知键
const (
	cursorPromptsKey  = "aiService.prompts"
	traeHistoryKey    = "icube-ai-agent-storage-input-history"
	stateDBFileName   = "state.vscdb"
	workspaceFileName = "workspace.json"
)

// StateDBAdapter 读取 workspaceStorage 布局的平台（Cursor、Trae）
// 每个工作区 hash 目录是一个项目，state.vscdb 中单个键的值是唯一会话；
// SessionID 即该键名，键随版本漂移的平台启用启发式探测
type StateDBAdapter struct {
	src conversation.Source
	// root workspaceStorage 目录
	root string
	// preferredKey 优先尝试的已知键，空则直接探测
	preferredKey string
	// discover 已知键缺失时是否回退启发式探测
	discover bool
	reader   *StateDBReader
	logger   *slog.Logger
}

// NewCursorAdapter 创建 Cursor 适配器，键固定为 aiService.prompts
func NewCursorAdapter(cfg *config.SourcesConfig) *StateDBAdapter {
	return &StateDBAdapter{
		src:          conversation.SourceCursor,
		root:         resolveRoot(cfg.CursorWorkspaceDir, func() string { return defaultWorkspaceStorageRoot("Cursor") }),
		preferredKey: cursorPromptsKey,
		discover:     false,
		reader:       NewStateDBReader(),
		logger:       applog.NewModuleLogger("source", "cursor"),
	}
}

// NewTraeAdapter 创建 Trae 适配器
// 先试已知键，缺失时回退启发式探测（Trae 版本间键名有漂移）
func NewTraeAdapter(cfg *config.SourcesConfig) *StateDBAdapter {
	return &StateDBAdapter{
		src:          conversation.SourceTrae,
		root:         resolveRoot(cfg.TraeWorkspaceDir, func() string { return defaultWorkspaceStorageRoot("Trae") }),
		preferredKey: traeHistoryKey,
		discover:     true,
		reader:       NewStateDBReader(),
		logger:       applog.NewModuleLogger("source", "trae"),
	}
}

// Source 平台标识
func (a *StateDBAdapter) Source() conversation.Source { return a.src }

// RootPath 解析后的根目录
func (a *StateDBAdapter) RootPath() string { return a.root }

// Available 根目录是否存在
func (a *StateDBAdapter) Available() bool { return dirExists(a.root) }

// ListProjects 枚举含 state.vscdb 的工作区目录
func (a *StateDBAdapter) ListProjects() ([]*conversation.Project, error) {
	if !a.Available() {
		return nil, newPathNotFound(a.src, a.root)
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace storage dir: %w", err)
	}

	var projects []*conversation.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectPath := filepath.Join(a.root, entry.Name())
		if _, err := os.Stat(filepath.Join(projectPath, stateDBFileName)); err != nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		projects = append(projects, &conversation.Project{
			Source:       a.src,
			ProjectID:    entry.Name(),
			DisplayName:  workspaceDisplayName(projectPath, entry.Name()),
			Path:         projectPath,
			SessionCount: 1,
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// ListSessions 工作区只有一个会话，SessionID 为对话历史所在的键
func (a *StateDBAdapter) ListSessions(projectID string) ([]*conversation.Session, error) {
	dbPath := a.dbPath(projectID)
	info, err := os.Stat(dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s/%s", conversation.ErrProjectNotFound, a.src, projectID)
	}

	key, messages := a.loadMessages(projectID)
	if key == "" {
		key = a.preferredKey
	}

	title := "Untitled Session"
	for _, msg := range messages {
		if msg.Role == "user" && strings.TrimSpace(msg.Content) != "" {
			title = truncateTitle(strings.TrimSpace(msg.Content))
			break
		}
	}

	return []*conversation.Session{{
		Source:       a.src,
		ProjectID:    projectID,
		SessionID:    key,
		FileName:     stateDBFileName,
		Path:         dbPath,
		SizeBytes:    info.Size(),
		MessageCount: len(messages),
		CreatedAt:    info.ModTime(),
		ModifiedAt:   info.ModTime(),
		Title:        title,
	}}, nil
}

// ReadRecords 读取状态库条目并展开为原始记录
// LineIndex 为展开后的数组下标（0 起始）；sessionID 与探测到的键不一致时
// 仍按当前可解析的键读取，键漂移不应让历史链接失效
func (a *StateDBAdapter) ReadRecords(projectID, sessionID string) ([]conversation.RawRecord, error) {
	if _, err := os.Stat(a.dbPath(projectID)); err != nil {
		return nil, fmt.Errorf("%w: %s/%s/%s", conversation.ErrSessionNotFound, a.src, projectID, sessionID)
	}

	_, messages := a.loadMessages(projectID)
	records := make([]conversation.RawRecord, 0, len(messages))
	for i, msg := range messages {
		data := map[string]any{
			"role":    msg.Role,
			"content": msg.Content,
		}
		if msg.Timestamp != nil {
			data["timestamp"] = msg.Timestamp
		}
		records = append(records, conversation.RawRecord{LineIndex: i, Data: data})
	}
	return records, nil
}

// SessionFiles 会话底层文件
func (a *StateDBAdapter) SessionFiles(projectID, sessionID string) []string {
	return []string{a.dbPath(projectID)}
}

// ProjectFiles 项目指纹文件
func (a *StateDBAdapter) ProjectFiles(projectID string) []string {
	projectPath := filepath.Join(a.root, projectID)
	return []string{
		filepath.Join(projectPath, stateDBFileName),
		filepath.Join(projectPath, workspaceFileName),
	}
}

func (a *StateDBAdapter) dbPath(projectID string) string {
	return filepath.Join(a.root, projectID, stateDBFileName)
}

// loadMessages 定位对话键并归一化全部条目
// 返回实际使用的键与展开后的消息，失败时返回空集而非错误，
// 单个损坏的工作区不应拖垮项目列表
func (a *StateDBAdapter) loadMessages(projectID string) (string, []StateMessage) {
	dbPath := a.dbPath(projectID)

	key := a.preferredKey
	var raw []byte
	if key != "" {
		value, err := a.reader.ReadValue(dbPath, key)
		if err != nil {
			a.logger.Warn("read state db failed", "project", projectID, "error", err)
			return "", nil
		}
		raw = value
	}

	if raw == nil && a.discover {
		discovered, err := a.reader.DiscoverChatKey(dbPath)
		if err != nil || discovered == "" {
			return "", nil
		}
		key = discovered
		value, err := a.reader.ReadValue(dbPath, key)
		if err != nil {
			return "", nil
		}
		raw = value
	}
	if raw == nil {
		return key, nil
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		a.logger.Debug("state value is not json", "project", projectID, "key", key)
		return key, nil
	}

	var messages []StateMessage
	for _, item := range ExtractStateItems(data) {
		for _, msg := range NormalizeStateItem(item) {
			if strings.TrimSpace(msg.Content) == "" {
				continue
			}
			messages = append(messages, msg)
		}
	}
	return key, messages
}
