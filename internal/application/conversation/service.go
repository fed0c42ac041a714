// Package conversation 会话应用服务：组合平台适配器、归一化与缓存，
// 对外提供项目/会话/消息的读取操作
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/cache"
	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/infrastructure/source"
)

// 分页默认值
const (
	DefaultPage    = 1
	DefaultPerPage = 50
	MaxPerPage     = 500
)

// ConversationOptions 会话读取选项
type ConversationOptions struct {
	// Page 页码，从 1 开始
	Page int
	// PerPage 每页条数
	PerPage int
	// Search 大小写不敏感的子串过滤，空串不过滤
	Search string
	// Role 角色过滤，空值不过滤
	Role conversation.Role
}

// ConversationPage 分页后的会话消息
type ConversationPage struct {
	Messages   []conversation.Message `json:"messages"`
	Total      int                    `json:"total"`
	Page       int                    `json:"page"`
	PerPage    int                    `json:"per_page"`
	TotalPages int                    `json:"total_pages"`
	// MatchOccurrences 过滤后消息里搜索词的总出现次数，未搜索时为 0
	MatchOccurrences int `json:"match_occurrences,omitempty"`
}

// Service 会话应用服务
type Service struct {
	registry   *source.Registry
	cache      *cache.Manager
	normalizer *Normalizer
	warmTTL    time.Duration
	logger     *slog.Logger
}

// NewService 创建会话服务
func NewService(registry *source.Registry, cacheManager *cache.Manager, normalizer *Normalizer, cacheCfg *config.CacheConfig) *Service {
	return &Service{
		registry:   registry,
		cache:      cacheManager,
		normalizer: normalizer,
		warmTTL:    cacheCfg.WarmTTL,
		logger:     applog.NewModuleLogger("application", "conversation"),
	}
}

// adapter 解析平台适配器
func (s *Service) adapter(src conversation.Source) (source.Adapter, error) {
	a, ok := s.registry.Get(src)
	if !ok {
		return nil, fmt.Errorf("%w: unknown source %q", conversation.ErrSourceUnavailable, src)
	}
	return a, nil
}

// ListProjects 列出单个平台的项目，结果进热层缓存
func (s *Service) ListProjects(ctx context.Context, src conversation.Source) ([]*conversation.Project, error) {
	a, err := s.adapter(src)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/projects", src)
	return cache.GetOrCompute(ctx, s.cache, key, cache.TierHot, 0,
		func(ctx context.Context) ([]*conversation.Project, []string, error) {
			projects, err := a.ListProjects()
			if err != nil {
				return nil, nil, err
			}
			// 指纹含各项目目录，项目内新增/删除会话文件改变目录 mtime，
			// 会话计数随之刷新
			files := make([]string, 0, len(projects)+1)
			files = append(files, a.RootPath())
			for _, p := range projects {
				files = append(files, p.Path)
			}
			return projects, files, nil
		})
}

// ListAllProjects 聚合全部可用平台的项目
// 单个平台不可用只记录日志，不影响其余平台
func (s *Service) ListAllProjects(ctx context.Context) ([]*conversation.Project, error) {
	var all []*conversation.Project
	for _, a := range s.registry.All() {
		if !a.Available() {
			continue
		}
		projects, err := s.ListProjects(ctx, a.Source())
		if err != nil {
			s.logger.Warn("list projects failed", "source", a.Source(), "error", err)
			continue
		}
		all = append(all, projects...)
	}
	return all, nil
}

// ListSessions 列出项目下的会话，结果进热层缓存
func (s *Service) ListSessions(ctx context.Context, src conversation.Source, projectID string) ([]*conversation.Session, error) {
	a, err := s.adapter(src)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/sessions/%s", src, projectID)
	return cache.GetOrCompute(ctx, s.cache, key, cache.TierHot, 0,
		func(ctx context.Context) ([]*conversation.Session, []string, error) {
			sessions, err := a.ListSessions(projectID)
			if err != nil {
				return nil, nil, err
			}
			return sessions, a.ProjectFiles(projectID), nil
		})
}

// SessionMessages 读取并归一化整个会话，结果进温层缓存
func (s *Service) SessionMessages(ctx context.Context, src conversation.Source, projectID, sessionID string) ([]conversation.Message, error) {
	a, err := s.adapter(src)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/conversation/%s/%s", src, projectID, sessionID)
	return cache.GetOrCompute(ctx, s.cache, key, cache.TierWarm, s.warmTTL,
		func(ctx context.Context) ([]conversation.Message, []string, error) {
			records, err := a.ReadRecords(projectID, sessionID)
			if err != nil {
				return nil, nil, err
			}
			return s.normalizer.Normalize(src, records), a.SessionFiles(projectID, sessionID), nil
		})
}

// GetConversation 读取会话并按选项过滤分页
func (s *Service) GetConversation(ctx context.Context, src conversation.Source, projectID, sessionID string, opts ConversationOptions) (*ConversationPage, error) {
	messages, err := s.SessionMessages(ctx, src, projectID, sessionID)
	if err != nil {
		return nil, err
	}

	page := opts.Page
	if page < 1 {
		page = DefaultPage
	}
	perPage := opts.PerPage
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	search := strings.ToLower(opts.Search)
	occurrences := 0
	filtered := make([]conversation.Message, 0, len(messages))
	for _, msg := range messages {
		if opts.Role != "" && msg.Role != opts.Role {
			continue
		}
		if search != "" {
			count := strings.Count(strings.ToLower(msg.Content), search)
			if count == 0 {
				continue
			}
			occurrences += count
		}
		filtered = append(filtered, msg)
	}

	total := len(filtered)
	totalPages := (total + perPage - 1) / perPage
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	return &ConversationPage{
		Messages:         filtered[start:end],
		Total:            total,
		Page:             page,
		PerPage:          perPage,
		TotalPages:       totalPages,
		MatchOccurrences: occurrences,
	}, nil
}

// GetSession 查询单个会话的元数据
func (s *Service) GetSession(ctx context.Context, src conversation.Source, projectID, sessionID string) (*conversation.Session, error) {
	sessions, err := s.ListSessions(ctx, src, projectID)
	if err != nil {
		return nil, err
	}
	for _, session := range sessions {
		if session.SessionID == sessionID {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s/%s", conversation.ErrSessionNotFound, src, projectID, sessionID)
}

// GetSessionSummary 返回会话摘要
// 取最后一条 summary 消息的正文；占位消息同为 summary 角色但内容是
// 原始 JSON，跳过；没有摘要记录时回退到会话标题
func (s *Service) GetSessionSummary(ctx context.Context, src conversation.Source, projectID, sessionID string) (string, error) {
	messages, err := s.SessionMessages(ctx, src, projectID, sessionID)
	if err != nil {
		return "", err
	}

	summary := ""
	for _, msg := range messages {
		if msg.Role != conversation.RoleSummary {
			continue
		}
		content := strings.TrimSpace(msg.Content)
		if content == "" || strings.HasPrefix(content, "{") {
			continue
		}
		summary = content
	}
	if summary != "" {
		return summary, nil
	}

	session, err := s.GetSession(ctx, src, projectID, sessionID)
	if err != nil {
		return "", err
	}
	return session.Title, nil
}

// Health 汇总各平台的可用状态与规模
func (s *Service) Health(ctx context.Context) []conversation.SourceHealth {
	adapters := s.registry.All()
	out := make([]conversation.SourceHealth, 0, len(adapters))
	for _, a := range adapters {
		health := conversation.SourceHealth{
			Source:    a.Source(),
			Available: a.Available(),
			RootPath:  a.RootPath(),
		}
		if !health.Available {
			health.Error = fmt.Sprintf("root not found: %s", a.RootPath())
			out = append(out, health)
			continue
		}

		projects, err := s.ListProjects(ctx, a.Source())
		if err != nil {
			health.Error = err.Error()
			out = append(out, health)
			continue
		}
		health.ProjectCount = len(projects)
		for _, p := range projects {
			health.SessionCount += p.SessionCount
		}
		out = append(out, health)
	}
	return out
}
