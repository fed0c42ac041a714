package source

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// workspaceFolderPath 读取 workspaceStorage 项目目录下的 workspace.json，
// 返回工作区文件夹路径（已去掉 file:// 前缀）
// 不同编辑器版本字段名不一，按已知字段依次尝试
func workspaceFolderPath(projectPath string) string {
	raw, err := os.ReadFile(filepath.Join(projectPath, "workspace.json"))
	if err != nil {
		return ""
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return ""
	}

	var value any
	for _, key := range []string{"folder", "path", "workspace", "workspacePath", "name"} {
		if v, exists := data[key]; exists && v != nil {
			value = v
			break
		}
	}
	if nested, ok := value.(map[string]any); ok {
		if p, ok := nested["path"].(string); ok {
			value = p
		} else if p, ok := nested["folder"].(string); ok {
			value = p
		}
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return ""
	}

	if u, err := url.Parse(s); err == nil && u.Scheme == "file" {
		if decoded, err := url.PathUnescape(u.Path); err == nil {
			return decoded
		}
		return u.Path
	}
	return strings.TrimPrefix(s, "file://")
}

// workspaceDisplayName 工作区显示名：文件夹路径的最后 3 段
// 解析不出路径时回退到目录 hash
func workspaceDisplayName(projectPath, fallback string) string {
	folder := workspaceFolderPath(projectPath)
	if folder == "" {
		return fallback
	}
	parts := strings.FieldsFunc(filepath.ToSlash(folder), func(r rune) bool { return r == '/' })
	if len(parts) == 0 {
		return fallback
	}
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return strings.Join(parts, "/")
}
