package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// 环境变量名定义
const (
	EnvHTTPPort = "AIVIEW_HTTP_PORT"

	// 各平台根目录覆盖（与原始部署保持同名，便于迁移）
	EnvClaudeProjectsDir  = "CLAUDE_PROJECTS_PATH"
	EnvQwenProjectsDir    = "QWEN_PROJECTS_PATH"
	EnvCursorWorkspaceDir = "CURSOR_WORKSPACE_STORAGE_PATH"
	EnvTraeWorkspaceDir   = "TRAE_WORKSPACE_STORAGE_PATH"
	EnvKiroWorkspaceDir   = "KIRO_WORKSPACE_STORAGE_PATH"
	EnvKiroSessionsDir    = "KIRO_SESSIONS_PATH"
)

// Config 应用配置
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Sources SourcesConfig `yaml:"sources"`
	Cache   CacheConfig   `yaml:"cache"`
	Search  SearchConfig  `yaml:"search"`
	Diff    DiffConfig    `yaml:"diff"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTPPort string `yaml:"http_port"`
}

// SourcesConfig 各平台数据目录配置
// 留空表示按平台默认位置自动检测
type SourcesConfig struct {
	// ClaudeProjectsDir Claude Code 项目目录（~/.claude/projects）
	ClaudeProjectsDir string `yaml:"claude_projects_dir"`

	// QwenProjectsDir Qwen Code 项目目录（~/.qwen/tmp）
	QwenProjectsDir string `yaml:"qwen_projects_dir"`

	// CursorWorkspaceDir Cursor workspaceStorage 目录
	CursorWorkspaceDir string `yaml:"cursor_workspace_dir"`

	// TraeWorkspaceDir Trae workspaceStorage 目录
	TraeWorkspaceDir string `yaml:"trae_workspace_dir"`

	// KiroWorkspaceDir Kiro workspaceStorage 目录
	KiroWorkspaceDir string `yaml:"kiro_workspace_dir"`

	// KiroSessionsDir Kiro 会话目录（globalStorage workspace-sessions）
	KiroSessionsDir string `yaml:"kiro_sessions_dir"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// HotCapacity 热层最大条目数（LRU 淘汰）
	HotCapacity int `yaml:"hot_capacity"`

	// WarmCapacity 温层最大条目数
	WarmCapacity int `yaml:"warm_capacity"`

	// WarmTTL 温层条目默认过期时间
	WarmTTL time.Duration `yaml:"warm_ttl"`
}

// SearchConfig 全局搜索配置
type SearchConfig struct {
	// SourceTimeout 单平台扫描超时，超时的平台按不可用处理
	SourceTimeout time.Duration `yaml:"source_timeout"`

	// DefaultLimit 未指定 limit 时的默认结果上限
	DefaultLimit int `yaml:"default_limit"`

	// PreviewCount 每个命中会话返回的预览消息条数
	PreviewCount int `yaml:"preview_count"`
}

// DiffConfig 差异引擎配置
type DiffConfig struct {
	// MaxLines 参与精确差异计算的最大总行数，超出则截断
	MaxLines int `yaml:"max_lines"`
}

// NewConfig 创建配置：默认值 -> 配置文件 -> 环境变量，后者覆盖前者
func NewConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			HTTPPort: ":18080",
		},
		Cache: CacheConfig{
			HotCapacity:  256,
			WarmCapacity: 64,
			WarmTTL:      5 * time.Minute,
		},
		Search: SearchConfig{
			SourceTimeout: 10 * time.Second,
			DefaultLimit:  50,
			PreviewCount:  3,
		},
		Diff: DiffConfig{
			MaxLines: 2000,
		},
	}

	// 配置文件可选，不存在时静默跳过
	cfg.loadFile(filepath.Join(GetDataDir(), "config.yaml"))
	cfg.applyEnv()

	return cfg
}

// loadFile 从 YAML 文件合并配置
func (c *Config) loadFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	// 解析失败时保留已有值，不中断启动
	_ = yaml.Unmarshal(data, c)
}

// applyEnv 应用环境变量覆盖
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHTTPPort); v != "" {
		c.Server.HTTPPort = normalizePort(v)
	}
	if v := os.Getenv(EnvClaudeProjectsDir); v != "" {
		c.Sources.ClaudeProjectsDir = v
	}
	if v := os.Getenv(EnvQwenProjectsDir); v != "" {
		c.Sources.QwenProjectsDir = v
	}
	if v := os.Getenv(EnvCursorWorkspaceDir); v != "" {
		c.Sources.CursorWorkspaceDir = v
	}
	if v := os.Getenv(EnvTraeWorkspaceDir); v != "" {
		c.Sources.TraeWorkspaceDir = v
	}
	if v := os.Getenv(EnvKiroWorkspaceDir); v != "" {
		c.Sources.KiroWorkspaceDir = v
	}
	if v := os.Getenv(EnvKiroSessionsDir); v != "" {
		c.Sources.KiroSessionsDir = v
	}
}

// normalizePort 允许 "18080" 或 ":18080" 两种写法
func normalizePort(v string) string {
	if _, err := strconv.Atoi(v); err == nil {
		return ":" + v
	}
	return v
}

// NewServerConfig 创建服务器配置
func NewServerConfig(cfg *Config) *ServerConfig {
	return &cfg.Server
}

// NewSourcesConfig 创建平台目录配置
func NewSourcesConfig(cfg *Config) *SourcesConfig {
	return &cfg.Sources
}

// NewCacheConfig 创建缓存配置
func NewCacheConfig(cfg *Config) *CacheConfig {
	return &cfg.Cache
}

// NewSearchConfig 创建搜索配置
func NewSearchConfig(cfg *Config) *SearchConfig {
	return &cfg.Search
}

// NewDiffConfig 创建差异引擎配置
func NewDiffConfig(cfg *Config) *DiffConfig {
	return &cfg.Diff
}
