package conversation

import (
	"fmt"
	"time"
)

// Source 对话来源平台
type Source string

const (
	SourceClaude Source = "claude"
	SourceQwen   Source = "qwen"
	SourceCursor Source = "cursor"
	SourceTrae   Source = "trae"
	SourceKiro   Source = "kiro"
)

// AllSources 返回所有支持的平台（顺序固定，保证遍历结果可重现）
func AllSources() []Source {
	return []Source{SourceClaude, SourceQwen, SourceCursor, SourceTrae, SourceKiro}
}

// ParseSource 解析平台标识字符串
func ParseSource(s string) (Source, error) {
	src := Source(s)
	for _, known := range AllSources() {
		if src == known {
			return src, nil
		}
	}
	return "", fmt.Errorf("unsupported source: %q", s)
}

// Role 归一化后的消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSummary   Role = "summary"
	RoleTool      Role = "tool"
)

// Project 一个平台下的项目（通常对应一个工作区/仓库）
// 每次扫描重建，核心不持久化项目状态
type Project struct {
	Source       Source    `json:"source"`
	ProjectID    string    `json:"project_id"`
	DisplayName  string    `json:"display_name"`
	Path         string    `json:"path"`
	SessionCount int       `json:"session_count"`
	LastModified time.Time `json:"last_modified"`
}

// Session 一个对话会话的元数据（不含消息体）
type Session struct {
	Source       Source    `json:"source"`
	ProjectID    string    `json:"project_id"`
	SessionID    string    `json:"session_id"`
	FileName     string    `json:"filename"`
	Path         string    `json:"path"`
	SizeBytes    int64     `json:"size_bytes"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	ModifiedAt   time.Time `json:"modified_at"`
	Title        string    `json:"title"`
}

// Key 返回会话的身份元组（外部收藏存储以此作为外键）
func (s *Session) Key() SessionKey {
	return SessionKey{Source: s.Source, ProjectID: s.ProjectID, SessionID: s.SessionID}
}

// ToolCall 消息中的一次工具调用，归属于其父消息
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     string         `json:"result,omitempty"`
	IsEdit     bool           `json:"is_edit"`
	// Diff 编辑类工具调用的行级差异（IsEdit 为 true 时填充）
	Diff []DiffLine `json:"diff,omitempty"`
}

// Message 会话中的一轮对话
// LineIndex 是该记录在源日志中的 0 起始位置，跨重复解析保持稳定，
// 收藏/高亮以此定位消息
type Message struct {
	LineIndex int        `json:"line_index"`
	Role      Role       `json:"role"`
	Timestamp string     `json:"timestamp,omitempty"`
	Content   string     `json:"content"`
	HasCode   bool       `json:"has_code"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// RawRecord 适配器产出的原始记录，尚未归一化
// Data 为解码后的 JSON 对象，未知字段原样保留
type RawRecord struct {
	LineIndex int
	Data      map[string]any
}

// DiffLineKind 差异行类型
type DiffLineKind string

const (
	DiffContext DiffLineKind = "context"
	DiffAdded   DiffLineKind = "added"
	DiffRemoved DiffLineKind = "removed"
)

// DiffLine 一行差异输出，行号从 1 开始，0 表示该侧无行号
type DiffLine struct {
	Kind      DiffLineKind `json:"kind"`
	OldLineNo int          `json:"old_line_no,omitempty"`
	NewLineNo int          `json:"new_line_no,omitempty"`
	Text      string       `json:"text"`
}

// SourceHealth 单个平台的健康状态
type SourceHealth struct {
	Source       Source `json:"source"`
	Available    bool   `json:"available"`
	RootPath     string `json:"root_path"`
	ProjectCount int    `json:"project_count"`
	SessionCount int    `json:"session_count"`
	Error        string `json:"error,omitempty"`
}
