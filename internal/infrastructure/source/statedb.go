package source

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// StateDBReader 读取 VSCode 系编辑器的 state.vscdb（ItemTable 键值表）
// 编辑器运行中会锁库，统一先复制到临时文件再以只读方式打开
type StateDBReader struct{}

// NewStateDBReader 创建读取器
func NewStateDBReader() *StateDBReader {
	return &StateDBReader{}
}

// withCopy 在数据库只读副本上执行 fn，结束后清理临时文件
func (r *StateDBReader) withCopy(dbPath string, fn func(db *sql.DB) error) error {
	if _, err := os.Stat(dbPath); err != nil {
		return fmt.Errorf("state db not found: %w", err)
	}

	tmpPath := filepath.Join(os.TempDir(), fmt.Sprintf("aiview_tmp_%d_%s", os.Getpid(), filepath.Base(dbPath)))
	if err := copyFile(dbPath, tmpPath); err != nil {
		return fmt.Errorf("copy state db: %w", err)
	}
	defer os.Remove(tmpPath)

	db, err := sql.Open("sqlite", tmpPath)
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()

	return fn(db)
}

// ReadValue 按键读取 ItemTable 中的值
// 键不存在返回 (nil, nil)，调用方自行决定是否降级
func (r *StateDBReader) ReadValue(dbPath, key string) ([]byte, error) {
	var value []byte
	err := r.withCopy(dbPath, func(db *sql.DB) error {
		err := db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", key).Scan(&value)
		if err == sql.ErrNoRows {
			value = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// chatKeyPatterns 候选键的 LIKE 模式
var chatKeyPatterns = []string{
	"%prompt%", "%prompts%", "%ai%", "%aiService.%", "%chat%", "%chat.%", "%chatHistory%",
	"%messages%", "%message%", "%history%", "%conversation%", "%threads%", "%sessions%", "%kiro%",
}

// chatKeyBlacklist 编辑器自身状态键的前缀，排除在候选之外
var chatKeyBlacklist = []string{
	"memento/", "workbench.", "terminal", "scm.", "debug.", "vscode.", "output.",
}

// stateTextKeys 判定条目含对话文本的字段名
var stateTextKeys = []string{
	"text", "content", "prompt", "message", "inputText", "outputText", "body", "textContent",
}

// DiscoverChatKey 启发式定位存放对话历史的键
// 按模式收集候选键、过滤编辑器自身状态、按条目数打分（含文本字段加权），
// 全部失败时回退到按值长度取最大的可解析 JSON
func (r *StateDBReader) DiscoverChatKey(dbPath string) (string, error) {
	var bestKey string
	err := r.withCopy(dbPath, func(db *sql.DB) error {
		seen := make(map[string]bool)
		var candidates []string
		for _, pattern := range chatKeyPatterns {
			rows, err := db.Query("SELECT key FROM ItemTable WHERE key LIKE ? LIMIT 100", pattern)
			if err != nil {
				continue
			}
			for rows.Next() {
				var key string
				if rows.Scan(&key) != nil {
					continue
				}
				if seen[key] || blacklistedKey(key) {
					continue
				}
				seen[key] = true
				candidates = append(candidates, key)
			}
			rows.Close()
		}

		bestScore := -1
		for _, key := range candidates {
			var raw []byte
			if db.QueryRow("SELECT value FROM ItemTable WHERE key = ?", key).Scan(&raw) != nil {
				continue
			}
			var data any
			if json.Unmarshal(raw, &data) != nil {
				continue
			}
			if score := scoreChatValue(data); score > bestScore {
				bestScore = score
				bestKey = key
			}
		}
		if bestKey != "" {
			return nil
		}

		// 兜底：模式搜索无果时扫描最大的几个值
		rows, err := db.Query("SELECT key, value FROM ItemTable ORDER BY LENGTH(value) DESC LIMIT 50")
		if err != nil {
			return nil
		}
		defer rows.Close()
		for rows.Next() {
			var key string
			var raw []byte
			if rows.Scan(&key, &raw) != nil {
				continue
			}
			if blacklistedKey(key) {
				continue
			}
			var data any
			if json.Unmarshal(raw, &data) != nil {
				continue
			}
			if len(ExtractStateItems(data)) > 0 {
				bestKey = key
				return nil
			}
		}
		return nil
	})
	return bestKey, err
}

func blacklistedKey(key string) bool {
	for _, prefix := range chatKeyBlacklist {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// scoreChatValue 候选值打分：条目数为基础分，首条目带文本字段加 1000
func scoreChatValue(data any) int {
	switch v := data.(type) {
	case []any:
		score := len(v)
		if hasTextField(v) {
			score += 1000
		}
		return score
	case map[string]any:
		items := ExtractStateItems(v)
		score := len(items)
		if hasTextField(items) {
			score += 1000
		}
		return score
	}
	return 0
}

func hasTextField(items []any) bool {
	if len(items) == 0 {
		return false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return false
	}
	for _, key := range stateTextKeys {
		if _, exists := first[key]; exists {
			return true
		}
	}
	return false
}

// ParseJSONMaybe 字符串形如 JSON 时尝试解析，否则原样返回
// 状态库里大量值是二次序列化的 JSON 字符串
func ParseJSONMaybe(value any) any {
	s, ok := value.(string)
	if !ok {
		return value
	}
	trimmed := strings.TrimSpace(s)
	looksJSON := (strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}")) ||
		(strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]"))
	if !looksJSON {
		return value
	}
	var parsed any
	if err := json.Unmarshal([]byte(trimmed), &parsed); err != nil {
		return value
	}
	return parsed
}

// stateItemKeys 容器对象里存放条目数组的常见字段名，按优先级排列
var stateItemKeys = []string{"prompts", "messages", "items", "history", "chatHistory", "threads", "sessions"}

// ExtractStateItems 从解析后的状态值中提取对话条目数组
// 顶层数组直接返回；对象先查已知字段，再深度搜索最长的对象数组
func ExtractStateItems(data any) []any {
	switch v := data.(type) {
	case []any:
		return v
	case map[string]any:
		for _, key := range stateItemKeys {
			items, ok := ParseJSONMaybe(v[key]).([]any)
			if ok && len(items) > 0 {
				return items
			}
		}
		return findItemsDeep(v)
	}
	return nil
}

// findItemsDeep 深度搜索首元素为对象的最长数组
func findItemsDeep(data any) []any {
	var best []any
	var visit func(node any)
	visit = func(node any) {
		switch v := node.(type) {
		case []any:
			if len(v) > 0 {
				if _, ok := v[0].(map[string]any); ok && len(v) > len(best) {
					best = v
				}
			}
			for _, item := range v {
				visit(item)
			}
		case map[string]any:
			for _, value := range v {
				visit(value)
			}
		}
	}
	visit(data)
	return best
}

// stateDeepTextKeys 深度文本抽取时匹配的字段名片段
var stateDeepTextKeys = []string{
	"content", "text", "prompt", "message", "inputText", "outputText", "body",
	"textContent", "query", "question", "request", "description", "desc", "title",
}

// ExtractTextDeep 深度遍历取最长的疑似正文字符串
func ExtractTextDeep(data any) string {
	best := ""
	var visit func(node any)
	visit = func(node any) {
		switch v := node.(type) {
		case map[string]any:
			for key, value := range v {
				if s, ok := value.(string); ok && strings.TrimSpace(s) != "" {
					for _, candidate := range stateDeepTextKeys {
						if strings.Contains(key, candidate) && len(s) > len(best) {
							best = s
							break
						}
					}
				}
				visit(value)
			}
		case []any:
			for _, item := range v {
				visit(item)
			}
		}
	}
	visit(data)
	return best
}

// StateMessage 从状态库条目归一出的消息
type StateMessage struct {
	Role      string
	Content   string
	Timestamp any
}

// NormalizeStateItem 将任意形态的条目归一为消息列表
// 条目可能是对象、嵌套 JSON 字符串、数组或裸字符串；
// payload 可能藏在 value 字段的二次序列化 JSON 里
func NormalizeStateItem(item any) []StateMessage {
	item = ParseJSONMaybe(item)
	switch v := item.(type) {
	case map[string]any:
		payload := v
		if inner, exists := v["value"]; exists && inner != nil {
			if m, ok := ParseJSONMaybe(inner).(map[string]any); ok {
				payload = m
			} else {
				return []StateMessage{{
					Role:      "assistant",
					Content:   fmt.Sprintf("%v", ParseJSONMaybe(inner)),
					Timestamp: v["timestamp"],
				}}
			}
		}
		content := firstStateText(payload)
		if content == "" {
			content = ExtractTextDeep(payload)
		}
		ts := payload["timestamp"]
		if ts == nil {
			ts = payload["time"]
		}
		if ts == nil {
			ts = v["timestamp"]
		}
		return []StateMessage{{
			Role:      inferStateRole(payload),
			Content:   content,
			Timestamp: ts,
		}}
	case []any:
		var out []StateMessage
		for _, inner := range v {
			out = append(out, NormalizeStateItem(inner)...)
		}
		return out
	default:
		if v == nil {
			return nil
		}
		return []StateMessage{{Role: "assistant", Content: fmt.Sprintf("%v", v)}}
	}
}

// firstStateText 按固定优先级取正文字段
func firstStateText(payload map[string]any) string {
	for _, key := range stateTextKeys {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// inferStateRole 角色推断：显式 role > from 字段 > isUser 标记 > outputText 存在性
func inferStateRole(payload map[string]any) string {
	if role, ok := payload["role"].(string); ok && role != "" {
		return role
	}
	if from, ok := payload["from"]; ok && from != nil {
		if strings.EqualFold(fmt.Sprintf("%v", from), "user") {
			return "user"
		}
		return "assistant"
	}
	if isUser, ok := payload["isUser"].(bool); ok {
		if isUser {
			return "user"
		}
		return "assistant"
	}
	if _, ok := payload["outputText"]; ok {
		return "assistant"
	}
	return "user"
}

// copyFile 复制文件内容
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
