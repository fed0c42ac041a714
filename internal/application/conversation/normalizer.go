package conversation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/aiview/backend/internal/application/diff"
	"github.com/aiview/backend/internal/domain/conversation"
)

// imageMarker 图片附件在纯文本里的占位
const imageMarker = "[Image attached]"

// editToolNames 编辑类工具名
var editToolNames = map[string]bool{
	"Edit":               true,
	"MultiEdit":          true,
	"edit_file":          true,
	"str_replace_editor": true,
}

// editKeyPairs 编辑参数里 修改前/修改后 的字段名组合
var editKeyPairs = [][2]string{
	{"old_string", "new_string"},
	{"oldString", "newString"},
	{"before", "after"},
	{"oldStr", "newStr"},
}

// codePatterns 正文含代码的判定模式
var codePatterns = []*regexp.Regexp{
	regexp.MustCompile("```[\\w]*\n"),
	regexp.MustCompile(`def \w+\(`),
	regexp.MustCompile(`class \w+`),
	regexp.MustCompile(`import \w+`),
	regexp.MustCompile(`from \w+`),
	regexp.MustCompile(`<[a-zA-Z][^>]*>`),
	regexp.MustCompile(`\$\s*\w+`),
}

// recordRule 单条原始记录到统一消息的转换规则
type recordRule func(rec conversation.RawRecord) conversation.Message

// Normalizer 将各平台的原始记录归一为统一消息模型
// 规则按平台在构造时注册，解析失败的记录降级为占位消息而不是丢弃
type Normalizer struct {
	rules map[conversation.Source]recordRule
	diff  *diff.Engine
}

// NewNormalizer 创建归一化器
func NewNormalizer(diffEngine *diff.Engine) *Normalizer {
	n := &Normalizer{
		rules: make(map[conversation.Source]recordRule),
		diff:  diffEngine,
	}
	n.rules[conversation.SourceClaude] = n.normalizeClaude
	n.rules[conversation.SourceQwen] = n.normalizeQwen
	n.rules[conversation.SourceCursor] = n.normalizeState
	n.rules[conversation.SourceTrae] = n.normalizeState
	n.rules[conversation.SourceKiro] = n.normalizeKiro
	return n
}

// Normalize 转换整个会话的记录序列
func (n *Normalizer) Normalize(src conversation.Source, records []conversation.RawRecord) []conversation.Message {
	rule, ok := n.rules[src]
	if !ok {
		rule = placeholderMessage
	}
	messages := make([]conversation.Message, 0, len(records))
	for _, rec := range records {
		messages = append(messages, rule(rec))
	}
	return messages
}

// normalizeClaude Claude JSONL 记录规则
// 新格式 type=user/assistant 的正文在 message.content，
// 旧格式的 role 与 content 在顶层；其余类型降级为占位消息
func (n *Normalizer) normalizeClaude(rec conversation.RawRecord) conversation.Message {
	data := rec.Data

	switch data["type"] {
	case "summary":
		summary, _ := data["summary"].(string)
		return conversation.Message{
			LineIndex: rec.LineIndex,
			Role:      conversation.RoleSummary,
			Timestamp: coerceTimestamp(data["timestamp"]),
			Content:   summary,
		}
	case "user", "assistant":
		role := conversation.Role(data["type"].(string))
		msgData, _ := data["message"].(map[string]any)
		content, toolCalls := n.parseClaudeContent(msgData["content"])
		return conversation.Message{
			LineIndex: rec.LineIndex,
			Role:      role,
			Timestamp: coerceTimestamp(data["timestamp"]),
			Content:   content,
			HasCode:   containsCode(content),
			ToolCalls: toolCalls,
		}
	}

	// 旧格式：role 在顶层
	if roleStr, ok := data["role"].(string); ok {
		content, toolCalls := n.parseClaudeContent(data["content"])
		return conversation.Message{
			LineIndex: rec.LineIndex,
			Role:      conversation.Role(roleStr),
			Timestamp: coerceTimestamp(data["timestamp"]),
			Content:   content,
			HasCode:   containsCode(content),
			ToolCalls: toolCalls,
		}
	}
	return placeholderMessage(rec)
}

// parseClaudeContent 解析 content 字段
// 字符串直接作为正文；块数组按块类型分流：文本并入正文，
// tool_use/tool_result 提取为工具调用
func (n *Normalizer) parseClaudeContent(content any) (string, []conversation.ToolCall) {
	switch c := content.(type) {
	case string:
		return c, nil
	case []any:
		var parts []string
		var toolCalls []conversation.ToolCall
		for _, item := range c {
			switch block := item.(type) {
			case string:
				parts = append(parts, block)
			case map[string]any:
				switch block["type"] {
				case "text":
					if text, ok := block["text"].(string); ok {
						parts = append(parts, text)
					}
				case "image":
					parts = append(parts, imageMarker)
				case "tool_use":
					toolCalls = append(toolCalls, n.parseToolUse(block))
				case "tool_result":
					toolCalls = append(toolCalls, n.parseToolResult(block))
				default:
					parts = append(parts, compactJSON(block))
				}
			default:
				parts = append(parts, fmt.Sprintf("%v", item))
			}
		}
		return strings.Join(parts, "\n\n"), toolCalls
	}
	return "", nil
}

// parseToolUse tool_use 块转工具调用，编辑类工具附带差异
// 缺失工具名的块保留为 unknown，不丢弃
func (n *Normalizer) parseToolUse(block map[string]any) conversation.ToolCall {
	name, _ := block["name"].(string)
	if name == "" {
		name = "unknown"
	}
	params, _ := block["input"].(map[string]any)

	call := conversation.ToolCall{
		Name:       name,
		Parameters: params,
	}
	if editToolNames[name] {
		if before, after, ok := editStrings(params); ok {
			call.IsEdit = true
			call.Diff = n.diff.Compare(before, after)
		}
	}
	return call
}

// parseToolResult tool_result 块转工具调用
// toolUseResult 里带 oldString/newString 的是编辑结果，补算差异
func (n *Normalizer) parseToolResult(block map[string]any) conversation.ToolCall {
	call := conversation.ToolCall{Name: "tool_result"}

	if result, ok := block["toolUseResult"].(map[string]any); ok {
		if before, after, ok := editStrings(result); ok {
			call.IsEdit = true
			call.Diff = n.diff.Compare(before, after)
		}
	}

	switch content := block["content"].(type) {
	case string:
		call.Result = content
	case []any:
		var parts []string
		for _, item := range content {
			if m, ok := item.(map[string]any); ok && m["type"] == "text" {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		call.Result = strings.Join(parts, "\n")
	case nil:
	default:
		call.Result = compactJSON(content)
	}
	return call
}

// normalizeQwen Qwen 记录规则，type=qwen 映射为 assistant
func (n *Normalizer) normalizeQwen(rec conversation.RawRecord) conversation.Message {
	data := rec.Data
	content, _ := data["content"].(string)

	var role conversation.Role
	switch data["type"] {
	case "user":
		role = conversation.RoleUser
	case "qwen":
		role = conversation.RoleAssistant
	default:
		return placeholderMessage(rec)
	}

	return conversation.Message{
		LineIndex: rec.LineIndex,
		Role:      role,
		Timestamp: coerceTimestamp(data["timestamp"]),
		Content:   content,
		HasCode:   containsCode(content),
	}
}

// normalizeState Cursor/Trae 记录规则
// 适配器读取状态库时已展开为 role/content/timestamp 三字段
func (n *Normalizer) normalizeState(rec conversation.RawRecord) conversation.Message {
	data := rec.Data
	content, _ := data["content"].(string)

	role := conversation.RoleAssistant
	if r, ok := data["role"].(string); ok && r == "user" {
		role = conversation.RoleUser
	}

	return conversation.Message{
		LineIndex: rec.LineIndex,
		Role:      role,
		Timestamp: coerceTimestamp(data["timestamp"]),
		Content:   content,
		HasCode:   containsCode(content),
	}
}

// normalizeKiro Kiro 记录规则，正文在 message.content 的块数组里
func (n *Normalizer) normalizeKiro(rec conversation.RawRecord) conversation.Message {
	msgData, ok := rec.Data["message"].(map[string]any)
	if !ok {
		return placeholderMessage(rec)
	}

	role := conversation.RoleAssistant
	if r, ok := msgData["role"].(string); ok && r == "user" {
		role = conversation.RoleUser
	}

	var parts []string
	if blocks, ok := msgData["content"].([]any); ok {
		for _, item := range blocks {
			switch block := item.(type) {
			case string:
				parts = append(parts, block)
			case map[string]any:
				switch block["type"] {
				case "text":
					if text, ok := block["text"].(string); ok {
						parts = append(parts, text)
					}
				case "image":
					parts = append(parts, imageMarker)
				}
			}
		}
	}
	content := strings.Join(parts, "\n\n")

	return conversation.Message{
		LineIndex: rec.LineIndex,
		Role:      role,
		Timestamp: coerceTimestamp(rec.Data["timestamp"]),
		Content:   content,
		HasCode:   containsCode(content),
	}
}

// placeholderMessage 无法识别的记录降级为占位消息，保留原始内容
func placeholderMessage(rec conversation.RawRecord) conversation.Message {
	return conversation.Message{
		LineIndex: rec.LineIndex,
		Role:      conversation.RoleSummary,
		Timestamp: coerceTimestamp(rec.Data["timestamp"]),
		Content:   compactJSON(rec.Data),
	}
}

// editStrings 从参数表里找 修改前/修改后 字符串对
func editStrings(params map[string]any) (string, string, bool) {
	for _, pair := range editKeyPairs {
		before, okBefore := params[pair[0]].(string)
		after, okAfter := params[pair[1]].(string)
		if okBefore && okAfter && (before != "" || after != "") {
			return before, after, true
		}
	}
	return "", "", false
}

// containsCode 正文是否疑似包含代码
func containsCode(content string) bool {
	for _, pattern := range codePatterns {
		if pattern.MatchString(content) {
			return true
		}
	}
	return false
}

// coerceTimestamp 时间戳统一为 RFC3339 字符串
// 字符串原样保留，数值按毫秒级 Unix 时间处理
func coerceTimestamp(value any) string {
	switch ts := value.(type) {
	case string:
		return ts
	case float64:
		return time.UnixMilli(int64(ts)).UTC().Format(time.RFC3339)
	}
	return ""
}

// compactJSON 紧凑 JSON 序列化，失败退回 fmt 格式化
func compactJSON(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(raw)
}
