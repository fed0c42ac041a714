// Package search 跨平台全局搜索：对全部可用平台扇出扫描，
// 全局排序后合并为单一结果列表
package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/infrastructure/source"
)

// Hit 单个命中会话
type Hit struct {
	Session *conversation.Session `json:"session"`
	// MatchCount 会话内搜索词的总出现次数
	MatchCount int `json:"match_count"`
	// Previews 最先命中的若干条消息，用于结果列表预览
	Previews []conversation.Message `json:"previews"`
}

// SkippedSource 本次搜索中被跳过的平台及原因
type SkippedSource struct {
	Source conversation.Source `json:"source"`
	Reason string              `json:"reason"`
}

// Result 全局搜索结果
type Result struct {
	Query string `json:"query"`
	Hits  []Hit  `json:"hits"`
	// Skipped 不可用或超时的平台，不影响其余平台的结果
	Skipped []SkippedSource `json:"skipped,omitempty"`
}

// Aggregator 搜索聚合器
type Aggregator struct {
	service  *appconv.Service
	registry *source.Registry
	cfg      *config.SearchConfig
	logger   *slog.Logger
}

// NewAggregator 创建搜索聚合器
func NewAggregator(service *appconv.Service, registry *source.Registry, cfg *config.SearchConfig) *Aggregator {
	return &Aggregator{
		service:  service,
		registry: registry,
		cfg:      cfg,
		logger:   applog.NewModuleLogger("application", "search"),
	}
}

// SearchGlobal 跨平台搜索
// sources 为空时搜索全部平台；limit 小于等于 0 时取配置默认值
// 先收齐全部候选再做全局排序截断，单平台先截断会丢失正确的 top-N
func (a *Aggregator) SearchGlobal(ctx context.Context, query string, limit int, sources []conversation.Source) (*Result, error) {
	if limit <= 0 {
		limit = a.cfg.DefaultLimit
	}
	if len(sources) == 0 {
		sources = conversation.AllSources()
	}

	result := &Result{Query: query}
	if strings.TrimSpace(query) == "" {
		return result, nil
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, src := range sources {
		adapter, ok := a.registry.Get(src)
		if !ok {
			continue
		}
		if !adapter.Available() {
			mu.Lock()
			result.Skipped = append(result.Skipped, SkippedSource{Source: src, Reason: "unavailable"})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(src conversation.Source) {
			defer wg.Done()

			scanCtx, cancel := context.WithTimeout(ctx, a.cfg.SourceTimeout)
			defer cancel()

			hits, err := a.scanSource(scanCtx, src, query)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := "scan failed"
				if scanCtx.Err() == context.DeadlineExceeded {
					reason = "timeout"
				}
				a.logger.Warn("source scan skipped", "source", src, "reason", reason, "error", err)
				result.Skipped = append(result.Skipped, SkippedSource{Source: src, Reason: reason})
				return
			}
			result.Hits = append(result.Hits, hits...)
		}(src)
	}
	wg.Wait()

	sortHits(result.Hits)
	if len(result.Hits) > limit {
		result.Hits = result.Hits[:limit]
	}
	return result, nil
}

// scanSource 扫描单个平台的全部会话
func (a *Aggregator) scanSource(ctx context.Context, src conversation.Source, query string) ([]Hit, error) {
	projects, err := a.service.ListProjects(ctx, src)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var hits []Hit
	for _, project := range projects {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sessions, err := a.service.ListSessions(ctx, src, project.ProjectID)
		if err != nil {
			// 单个项目损坏不终止整个平台的扫描
			a.logger.Debug("list sessions failed during search", "source", src, "project", project.ProjectID, "error", err)
			continue
		}

		for _, session := range sessions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			messages, err := a.service.SessionMessages(ctx, src, session.ProjectID, session.SessionID)
			if err != nil {
				continue
			}

			count := 0
			var previews []conversation.Message
			for _, msg := range messages {
				n := strings.Count(strings.ToLower(msg.Content), needle)
				if n == 0 {
					continue
				}
				count += n
				if len(previews) < a.cfg.PreviewCount {
					previews = append(previews, msg)
				}
			}
			if count > 0 {
				hits = append(hits, Hit{Session: session, MatchCount: count, Previews: previews})
			}
		}
	}
	return hits, nil
}

// sortHits 排序：出现次数降序，修改时间降序，最后按会话键字典序保证确定性
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].MatchCount != hits[j].MatchCount {
			return hits[i].MatchCount > hits[j].MatchCount
		}
		if !hits[i].Session.ModifiedAt.Equal(hits[j].Session.ModifiedAt) {
			return hits[i].Session.ModifiedAt.After(hits[j].Session.ModifiedAt)
		}
		return hits[i].Session.Key().Compare(hits[j].Session.Key()) < 0
	})
}
