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

// maxRecordLine 单条 JSONL 记录的最大长度
// Claude Code 的工具输出可能很长，给足余量
const maxRecordLine = 16 * 1024 * 1024

// ClaudeAdapter 读取 Claude Code 的 JSONL 会话日志
// 布局：<root>/<项目目录>/<会话UUID>.jsonl，每行一条 JSON 记录
type ClaudeAdapter struct {
	root   string
	logger *slog.Logger
}

// NewClaudeAdapter 创建 Claude 适配器
func NewClaudeAdapter(cfg *config.SourcesConfig) *ClaudeAdapter {
	return &ClaudeAdapter{
		root:   resolveRoot(cfg.ClaudeProjectsDir, defaultClaudeRoot),
		logger: applog.NewModuleLogger("source", "claude"),
	}
}

// Source 平台标识
func (a *ClaudeAdapter) Source() conversation.Source { return conversation.SourceClaude }

// RootPath 解析后的根目录
func (a *ClaudeAdapter) RootPath() string { return a.root }

// Available 根目录是否存在
func (a *ClaudeAdapter) Available() bool { return dirExists(a.root) }

// ListProjects 枚举项目目录
func (a *ClaudeAdapter) ListProjects() ([]*conversation.Project, error) {
	if !a.Available() {
		return nil, newPathNotFound(a.Source(), a.root)
	}

	entries, err := os.ReadDir(a.root)
	if err != nil {
		return nil, fmt.Errorf("read claude projects dir: %w", err)
	}

	projects := make([]*conversation.Project, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		projectPath := filepath.Join(a.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		projects = append(projects, &conversation.Project{
			Source:       a.Source(),
			ProjectID:    entry.Name(),
			DisplayName:  formatClaudeProjectName(entry.Name()),
			Path:         projectPath,
			SessionCount: countFilesWithExt(projectPath, ".jsonl"),
			LastModified: info.ModTime(),
		})
	}

	sort.Slice(projects, func(i, j int) bool {
		return projects[i].LastModified.After(projects[j].LastModified)
	})
	return projects, nil
}

// ListSessions 枚举项目下的 JSONL 会话文件
func (a *ClaudeAdapter) ListSessions(projectID string) ([]*conversation.Session, error) {
	projectPath := filepath.Join(a.root, projectID)
	if !dirExists(projectPath) {
		return nil, fmt.Errorf("%w: %s/%s", conversation.ErrProjectNotFound, a.Source(), projectID)
	}

	entries, err := os.ReadDir(projectPath)
	if err != nil {
		return nil, fmt.Errorf("read claude project dir: %w", err)
	}

	sessions := make([]*conversation.Session, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		filePath := filepath.Join(projectPath, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}

		meta := a.scanSessionMeta(filePath)
		created := meta.createdAt
		if created.IsZero() {
			created = info.ModTime()
		}

		sessions = append(sessions, &conversation.Session{
			Source:       a.Source(),
			ProjectID:    projectID,
			SessionID:    strings.TrimSuffix(entry.Name(), ".jsonl"),
			FileName:     entry.Name(),
			Path:         filePath,
			SizeBytes:    info.Size(),
			MessageCount: meta.messageCount,
			CreatedAt:    created,
			ModifiedAt:   info.ModTime(),
			Title:        meta.title,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModifiedAt.After(sessions[j].ModifiedAt)
	})
	return sessions, nil
}

// ReadRecords 逐行读取 JSONL 记录
// LineIndex 为文件行号（0 起始），坏行跳过但仍占用行号，
// 保证同一文件两次解析的 LineIndex 稳定
func (a *ClaudeAdapter) ReadRecords(projectID, sessionID string) ([]conversation.RawRecord, error) {
	filePath := a.sessionPath(projectID, sessionID)
	f, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%s/%s", conversation.ErrSessionNotFound, a.Source(), projectID, sessionID)
		}
		return nil, fmt.Errorf("open claude session: %w", err)
	}
	defer f.Close()

	var records []conversation.RawRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLine)

	lineIndex := -1
	for scanner.Scan() {
		lineIndex++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			// 正在写入中的尾部残行或坏行：跳过，不中断会话
			a.logger.Debug("skip malformed record",
				"session", sessionID,
				"line", lineIndex,
			)
			continue
		}
		records = append(records, conversation.RawRecord{LineIndex: lineIndex, Data: data})
	}
	if err := scanner.Err(); err != nil {
		// 扫描中途失败时返回已读到的完整记录
		a.logger.Warn("scan interrupted", "session", sessionID, "error", err)
	}
	return records, nil
}

// SessionFiles 会话底层文件
func (a *ClaudeAdapter) SessionFiles(projectID, sessionID string) []string {
	return []string{a.sessionPath(projectID, sessionID)}
}

// ProjectFiles 项目指纹文件：目录本身加全部会话文件
// 目录 mtime 捕捉新增/删除，文件 mtime 捕捉追加
func (a *ClaudeAdapter) ProjectFiles(projectID string) []string {
	projectPath := filepath.Join(a.root, projectID)
	files := []string{projectPath}
	entries, err := os.ReadDir(projectPath)
	if err != nil {
		return files
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".jsonl") {
			files = append(files, filepath.Join(projectPath, entry.Name()))
		}
	}
	return files
}

func (a *ClaudeAdapter) sessionPath(projectID, sessionID string) string {
	return filepath.Join(a.root, projectID, sessionID+".jsonl")
}

// sessionMeta 会话元数据扫描结果
type sessionMeta struct {
	messageCount int
	title        string
	createdAt    time.Time
}

// scanSessionMeta 单遍扫描会话文件：统计消息数并抽取标题
// 标题优先级：summary 记录 > 第一条用户消息 > "Untitled Session"
func (a *ClaudeAdapter) scanSessionMeta(filePath string) sessionMeta {
	meta := sessionMeta{title: "Untitled Session"}

	f, err := os.Open(filePath)
	if err != nil {
		return meta
	}
	defer f.Close()

	var summary, firstUser string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxRecordLine)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		meta.messageCount++

		var data map[string]any
		if err := json.Unmarshal([]byte(line), &data); err != nil {
			continue
		}

		if meta.createdAt.IsZero() {
			if ts, ok := data["timestamp"].(string); ok {
				if t, err := time.Parse(time.RFC3339, ts); err == nil {
					meta.createdAt = t
				}
			}
		}

		switch data["type"] {
		case "summary":
			if s, ok := data["summary"].(string); ok && strings.TrimSpace(s) != "" {
				summary = strings.TrimSpace(s)
			}
		case "user":
			if firstUser != "" {
				continue
			}
			if msg, ok := data["message"].(map[string]any); ok {
				firstUser = firstTextContent(msg["content"])
			}
		default:
			// 旧格式：role 字段在顶层
			if firstUser == "" && data["role"] == "user" {
				firstUser = firstTextContent(data["content"])
			}
		}
	}

	if summary != "" {
		meta.title = truncateTitle(summary)
	} else if firstUser != "" {
		meta.title = truncateTitle(firstUser)
	}
	return meta
}

// firstTextContent 从字符串或结构化 content 中取第一段文本
func firstTextContent(content any) string {
	switch c := content.(type) {
	case string:
		return strings.TrimSpace(c)
	case []any:
		for _, item := range c {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if block["type"] == "text" {
				if text, ok := block["text"].(string); ok && strings.TrimSpace(text) != "" {
					return strings.TrimSpace(text)
				}
			}
		}
	}
	return ""
}

// titleMaxLength 会话标题最大长度
const titleMaxLength = 100

// truncateTitle 按 rune 截断标题
func truncateTitle(s string) string {
	runes := []rune(s)
	if len(runes) <= titleMaxLength {
		return s
	}
	return string(runes[:titleMaxLength])
}

// formatClaudeProjectName 将项目目录名还原为可读路径
// 目录名形如 -Users-lohas-docker，去掉前导横线后按横线拆分，
// 只保留最后 3 段避免过长
func formatClaudeProjectName(projectDir string) string {
	if !strings.HasPrefix(projectDir, "-") {
		return projectDir
	}
	parts := strings.Split(strings.TrimPrefix(projectDir, "-"), "-")
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, "/")
}

// countFilesWithExt 统计目录下指定扩展名的文件数
func countFilesWithExt(dir, ext string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ext) {
			count++
		}
	}
	return count
}
