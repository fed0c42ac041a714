package source

import (
	"os"
	"path/filepath"
	"runtime"
)

// resolveRoot 路径解析策略：显式覆盖优先，否则取平台默认位置
// 根目录不存在不是错误，由 Available 上报 SourceUnavailable 状态
func resolveRoot(override string, defaultFn func() string) string {
	if override != "" {
		return override
	}
	return defaultFn()
}

// defaultClaudeRoot Claude Code 默认项目目录 ~/.claude/projects
func defaultClaudeRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".claude", "projects")
}

// defaultQwenRoot Qwen Code 默认项目目录 ~/.qwen/tmp
func defaultQwenRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".qwen", "tmp")
}

// defaultWorkspaceStorageRoot VSCode 系编辑器的 workspaceStorage 默认位置
// appName 为应用目录名，如 "Cursor"、"Trae"、"Kiro"
func defaultWorkspaceStorageRoot(appName string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName, "User", "workspaceStorage")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, appName, "User", "workspaceStorage")
		}
		return filepath.Join(home, "AppData", "Roaming", appName, "User", "workspaceStorage")
	default:
		return filepath.Join(home, ".config", appName, "User", "workspaceStorage")
	}
}

// defaultKiroSessionsRoot Kiro 会话目录（globalStorage 下的 workspace-sessions）
func defaultKiroSessionsRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Kiro", "User", "globalStorage", "kiro.kiroagent", "workspace-sessions")
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Kiro", "User", "globalStorage", "kiro.kiroagent", "workspace-sessions")
		}
		return filepath.Join(home, "AppData", "Roaming", "Kiro", "User", "globalStorage", "kiro.kiroagent", "workspace-sessions")
	default:
		return filepath.Join(home, ".config", "Kiro", "User", "globalStorage", "kiro.kiroagent", "workspace-sessions")
	}
}
