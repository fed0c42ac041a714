package source

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
)

// QwenAdapter 读取 Qwen Code 的 JSON 会话文件
// 布局：<root>/<项目hash>/chats/<会话>.json，整个文件是一个含 messages 数组的 JSON 对象
// 项目显示名取项目目录下 QWEN.md 的首行标题
type QwenAdapter struct {
	root   string
	logger *slog.Logger
}

// NewQwenAdapter 创建 Qwen 适配器
func NewQwenAdapter(cfg *config.SourcesConfig) *QwenAdapter {
	return &QwenAdapter{
		root:   resolveRoot(cfg.QwenProjectsDir, defaultQwenRoot),
		logger: applog.NewModuleLogger("source", "qwen"),
	}
}

// Source 平台标识
func (a *QwenAdapter) Source() conversation.Source { return conversation.SourceQwen }

// RootPath 解析后的根目录
func (a *QwenAdapter) RootPath() string { return a.root }

// Available 根目录是否存在
func (a *QwenAdapter) Available() bool { return dirExists(a.root) }

// ListProjects 枚举含 chats 子目录的项目
func (a *QwenAdapter) ListProjects() ([]*conversation.Project, error) {
	if !a.Available() {
		return nil, newPathNotFound(a.Source(), a.root)
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("read qwen projects dir: %w", err)
	}

	var projects []*conversation.Project
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectPath := filepath.Join(a.root, entry.Name())
		chatsPath := filepath.Join(projectPath, "chats")
		// 没有 chats 目录的 hash 目录不是项目
		if !dirExists(chatsPath) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		projects = append(projects, &conversation.Project{
			Source:       a.Source(),
			ProjectID:    entry.Name(),
			DisplayName:  a.projectDisplayName(entry.Name()),
			Path:         projectPath,
			SessionCount: countFilesWithExt(chatsPath, ".json"),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// ListSessions 枚举 chats 目录下的会话文件
func (a *QwenAdapter) ListSessions(projectID string) ([]*conversation.Session, error) {
	chatsPath := filepath.Join(a.root, projectID, "chats")
	if !dirExists(chatsPath) {
		return nil, fmt.Errorf("%w: %s/%s", conversation.ErrProjectNotFound, a.Source(), projectID)
	}

	entries, err := os.ReadDir(chatsPath)
	if err != nil {
		return nil, fmt.Errorf("read qwen chats dir: %w", err)
	}

	sessions := make([]*conversation.Session, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		filePath := filepath.Join(chatsPath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		messages, _ := loadQwenMessages(filePath)
		created := firstQwenTimestamp(messages)
		if created.IsZero() {
			created = info.ModTime()
		}

		sessions = append(sessions, &conversation.Session{
			Source:       a.Source(),
			ProjectID:    projectID,
			SessionID:    strings.TrimSuffix(entry.Name(), ".json"),
			FileName:     entry.Name(),
			Path:         filePath,
			SizeBytes:    info.Size(),
			MessageCount: len(messages),
			CreatedAt:    created,
			ModifiedAt:   info.ModTime(),
			Title:        qwenSessionTitle(messages),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModifiedAt.After(sessions[j].ModifiedAt)
	})
	return sessions, nil
}

// ReadRecords 读取 messages 数组，LineIndex 为数组下标（0 起始）
func (a *QwenAdapter) ReadRecords(projectID, sessionID string) ([]conversation.RawRecord, error) {
	filePath := a.sessionPath(projectID, sessionID)
	messages, err := loadQwenMessages(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s/%s", conversation.ErrSessionNotFound, a.Source(), projectID, sessionID)
		}
		return nil, fmt.Errorf("load qwen session: %w", err)
	}

	records := make([]conversation.RawRecord, 0, len(messages))
	for i, msg := range messages {
		data, ok := msg.(map[string]any)
		if !ok {
			// 非对象元素占用下标但不产出记录
			a.logger.Debug("skip non-object message", "session", sessionID, "index", i)
			continue
		}
		records = append(records, conversation.RawRecord{LineIndex: i, Data: data})
	}
	return records, nil
}

// SessionFiles 会话底层文件
func (a *QwenAdapter) SessionFiles(projectID, sessionID string) []string {
	return []string{a.sessionPath(projectID, sessionID)}
}

// ProjectFiles 项目指纹文件
func (a *QwenAdapter) ProjectFiles(projectID string) []string {
	chatsPath := filepath.Join(a.root, projectID, "chats")
	files := []string{chatsPath}
	entries, err := os.ReadDir(chatsPath)
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			files = append(files, filepath.Join(chatsPath, entry.Name()))
		}
	}
	return files
}

func (a *QwenAdapter) sessionPath(projectID, sessionID string) string {
	return filepath.Join(a.root, projectID, "chats", sessionID+".json")
}

// projectDisplayName 从 QWEN.md 首行提取显示名
// 首行为一级标题时去掉 "# " 前缀；没有 QWEN.md 时截短 hash
func (a *QwenAdapter) projectDisplayName(projectID string) string {
	mdPath := filepath.Join(a.root, projectID, "QWEN.md")
	f, err := os.Open(mdPath)
	if err != nil {
		if len(projectID) > 12 {
			return projectID[:12]
		}
		return projectID
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if after, ok := strings.CutPrefix(line, "# "); ok {
			return strings.TrimSpace(after)
		}
		if line != "" {
			return line
		}
	}
	if len(projectID) > 12 {
		return projectID[:12]
	}
	return projectID
}

// loadQwenMessages 读取会话文件并返回 messages 数组
func loadQwenMessages(filePath string) ([]any, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	messages, _ := doc["messages"].([]any)
	return messages, nil
}

// qwenSessionTitle 取第一条用户消息作为标题
func qwenSessionTitle(messages []any) string {
	for _, msg := range messages {
		data, ok := msg.(map[string]any)
		if !ok {
			continue
		}
		if data["type"] != "user" {
			continue
		}
		if content, ok := data["content"].(string); ok && strings.TrimSpace(content) != "" {
			return truncateTitle(strings.TrimSpace(content))
		}
	}
	return "Untitled Session"
}

// firstQwenTimestamp 取第一条带时间戳消息的时间
func firstQwenTimestamp(messages []any) time.Time {
	for _, msg := range messages {
		data, ok := msg.(map[string]any)
		if !ok {
			continue
		}
		switch ts := data["timestamp"].(type) {
		case string:
			if t, err := time.Parse(time.RFC3339, ts); err == nil {
				return t
			}
		case float64:
			// 毫秒级 Unix 时间戳
			return time.UnixMilli(int64(ts))
		}
	}
	return time.Time{}
}
