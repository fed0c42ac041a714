// Package source 实现各 AI 编码助手平台的磁盘日志适配器
// 每个平台一个变体，统一实现 Adapter 接口；变体在启动时按 Source 枚举解析，
// 从不依赖对数据内容的运行时类型探测
package source

import (
	"fmt"
	"os"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
)

// Adapter 平台适配器，负责读取单个平台的磁盘布局
// 所有实现只读源日志，从不写回
type Adapter interface {
	// Source 适配器对应的平台
	Source() conversation.Source

	// RootPath 解析后的根目录（可能不存在）
	RootPath() string

	// Available 根目录是否存在且可读
	Available() bool

	// ListProjects 枚举项目（仅元数据），按最后修改时间降序
	ListProjects() ([]*conversation.Project, error)

	// ListSessions 枚举项目下的会话（不读取消息体），按修改时间降序
	ListSessions(projectID string) ([]*conversation.Session, error)

	// ReadRecords 按文件顺序（追加顺序）读取原始记录
	// 尾部不完整或无法解析的记录被跳过，不视为错误
	ReadRecords(projectID, sessionID string) ([]conversation.RawRecord, error)

	// SessionFiles 会话的底层文件列表，用于缓存指纹
	SessionFiles(projectID, sessionID string) []string

	// ProjectFiles 项目元数据依赖的文件列表，用于缓存指纹
	ProjectFiles(projectID string) []string
}

// PathNotFoundError 根目录不存在错误
// 携带尝试过的路径与提示信息，便于前端引导用户配置
type PathNotFoundError struct {
	Source        conversation.Source `json:"source"`
	AttemptedPath string              `json:"attempted_path"`
	Hint          string              `json:"hint"`
}

// Error 实现 error 接口
func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("%s root not found at %s: %s", e.Source, e.AttemptedPath, e.Hint)
}

// Unwrap 映射到领域错误，调用方统一用 errors.Is 判断
func (e *PathNotFoundError) Unwrap() error {
	return conversation.ErrSourceUnavailable
}

// newPathNotFound 构造根目录缺失错误
func newPathNotFound(src conversation.Source, path string) *PathNotFoundError {
	return &PathNotFoundError{
		Source:        src,
		AttemptedPath: path,
		Hint:          fmt.Sprintf("目录不存在，请确认 %s 已安装并至少运行过一次，或通过环境变量指定路径", src),
	}
}

// dirExists 目录存在性检查
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Registry 适配器注册表，按 Source 枚举解析变体
type Registry struct {
	adapters map[conversation.Source]Adapter
	order    []conversation.Source
}

// NewRegistry 创建注册表并注册全部五个平台适配器
func NewRegistry(cfg *config.SourcesConfig) *Registry {
	r := &Registry{
		adapters: make(map[conversation.Source]Adapter),
		order:    conversation.AllSources(),
	}
	r.register(NewClaudeAdapter(cfg))
	r.register(NewQwenAdapter(cfg))
	r.register(NewCursorAdapter(cfg))
	r.register(NewTraeAdapter(cfg))
	r.register(NewKiroAdapter(cfg))
	return r
}

func (r *Registry) register(a Adapter) {
	r.adapters[a.Source()] = a
}

// Get 按平台获取适配器
func (r *Registry) Get(src conversation.Source) (Adapter, bool) {
	a, ok := r.adapters[src]
	return a, ok
}

// All 返回全部适配器，顺序与 conversation.AllSources 一致
func (r *Registry) All() []Adapter {
	out := make([]Adapter, 0, len(r.order))
	for _, src := range r.order {
		if a, ok := r.adapters[src]; ok {
			out = append(out, a)
		}
	}
	return out
}
