// Package cache 提供两层读缓存：热层存列表类小对象，温层存解析后的完整会话
// 所有条目携带底层文件指纹，命中时重新 stat 校验，源文件变化立即失效
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
)

// Tier 缓存层级
type Tier string

const (
	// TierHot 热层：项目/会话列表等小对象，容量淘汰，无 TTL
	TierHot Tier = "hot"

	// TierWarm 温层：解析后的完整会话，容量淘汰加 TTL 过期
	TierWarm Tier = "warm"
)

// FileStat 单个底层文件的指纹
// 文件允许不存在（如探测失败的可选文件），此时 Exists 为 false，
// 复用校验要求存在性也一致
type FileStat struct {
	Path    string
	Exists  bool
	ModTime time.Time
	Size    int64
}

// Entry 缓存条目
type Entry struct {
	Value any
	// Files 计算该值时读过的全部文件指纹
	Files []FileStat
	// ExpiresAt 零值表示不过期
	ExpiresAt time.Time
	StoredAt  time.Time
}

// Stats 缓存统计
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Stale         uint64 `json:"stale"`
	Invalidations uint64 `json:"invalidations"`
	HotEntries    int    `json:"hot_entries"`
	WarmEntries   int    `json:"warm_entries"`
}

// Manager 两层缓存管理器
// 并发读同一缺失键时经 singleflight 合并，确保同一键同时只有一次计算
type Manager struct {
	hot  *lru.Cache[string, *Entry]
	warm *expirable.LRU[string, *Entry]

	group  singleflight.Group
	logger *slog.Logger

	// mu 保护 Invalidate 与写入的键遍历一致性
	mu sync.Mutex

	hits          atomic.Uint64
	misses        atomic.Uint64
	stale         atomic.Uint64
	invalidations atomic.Uint64
}

// NewManager 创建缓存管理器
func NewManager(cfg *config.CacheConfig) (*Manager, error) {
	hot, err := lru.New[string, *Entry](cfg.HotCapacity)
	if err != nil {
		return nil, fmt.Errorf("create hot cache: %w", err)
	}
	// 温层的 TTL 由 expirable 的周期清扫兜底，精确过期在读取时校验
	warm := expirable.NewLRU[string, *Entry](cfg.WarmCapacity, nil, cfg.WarmTTL)

	return &Manager{
		hot:    hot,
		warm:   warm,
		logger: applog.NewModuleLogger("cache", "manager"),
	}, nil
}

// lookup 按层取条目并做过期与指纹校验
func (m *Manager) lookup(key string, tier Tier) (*Entry, bool) {
	var entry *Entry
	var ok bool
	switch tier {
	case TierHot:
		entry, ok = m.hot.Get(key)
	case TierWarm:
		entry, ok = m.warm.Get(key)
	}
	if !ok {
		m.misses.Add(1)
		return nil, false
	}

	if !entry.ExpiresAt.IsZero() && time.Now().After(entry.ExpiresAt) {
		m.remove(key, tier)
		m.stale.Add(1)
		return nil, false
	}
	if !fingerprintValid(entry.Files) {
		m.remove(key, tier)
		m.stale.Add(1)
		return nil, false
	}

	m.hits.Add(1)
	return entry, true
}

// store 写入条目
func (m *Manager) store(key string, tier Tier, entry *Entry) {
	switch tier {
	case TierHot:
		m.hot.Add(key, entry)
	case TierWarm:
		m.warm.Add(key, entry)
	}
}

func (m *Manager) remove(key string, tier Tier) {
	switch tier {
	case TierHot:
		m.hot.Remove(key)
	case TierWarm:
		m.warm.Remove(key)
	}
}

// Invalidate 移除单个键（两层都查）
func (m *Manager) Invalidate(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hot.Remove(key) {
		m.invalidations.Add(1)
	}
	if m.warm.Remove(key) {
		m.invalidations.Add(1)
	}
}

// InvalidatePrefix 移除键前缀匹配的全部条目
// 文件监视器按平台失效时使用，如前缀 "claude/"
func (m *Manager) InvalidatePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, key := range m.hot.Keys() {
		if strings.HasPrefix(key, prefix) && m.hot.Remove(key) {
			removed++
		}
	}
	for _, key := range m.warm.Keys() {
		if strings.HasPrefix(key, prefix) && m.warm.Remove(key) {
			removed++
		}
	}
	if removed > 0 {
		m.invalidations.Add(uint64(removed))
		m.logger.Debug("invalidated by prefix", "prefix", prefix, "count", removed)
	}
	return removed
}

// Clear 清空全部条目
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hot.Purge()
	m.warm.Purge()
	m.invalidations.Add(1)
}

// Stats 当前统计快照
func (m *Manager) Stats() Stats {
	return Stats{
		Hits:          m.hits.Load(),
		Misses:        m.misses.Load(),
		Stale:         m.stale.Load(),
		Invalidations: m.invalidations.Load(),
		HotEntries:    m.hot.Len(),
		WarmEntries:   m.warm.Len(),
	}
}

// ComputeFunc 缓存未命中时的计算函数
// 返回值之外还要上报计算过程中读过的文件路径，作为条目指纹
type ComputeFunc[T any] func(ctx context.Context) (T, []string, error)

// GetOrCompute 读取缓存，未命中时计算并回填
// ttl 为零表示条目不过期（仍受容量淘汰与指纹失效约束）
func GetOrCompute[T any](ctx context.Context, m *Manager, key string, tier Tier, ttl time.Duration, compute ComputeFunc[T]) (T, error) {
	if entry, ok := m.lookup(key, tier); ok {
		if value, ok := entry.Value.(T); ok {
			return value, nil
		}
		// 类型不符说明键被混用，按未命中处理
		m.Invalidate(key)
	}

	result, err, _ := m.group.Do(key, func() (any, error) {
		// 双检：排队期间可能已被并发计算回填
		if entry, ok := m.lookup(key, tier); ok {
			if value, ok := entry.Value.(T); ok {
				return value, nil
			}
		}

		value, files, err := compute(ctx)
		if err != nil {
			return nil, err
		}

		entry := &Entry{
			Value:    value,
			Files:    statFiles(files),
			StoredAt: time.Now(),
		}
		if ttl > 0 {
			entry.ExpiresAt = time.Now().Add(ttl)
		}
		m.store(key, tier, entry)
		return value, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

// statFiles 采集文件指纹
func statFiles(paths []string) []FileStat {
	stats := make([]FileStat, 0, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			stats = append(stats, FileStat{Path: path})
			continue
		}
		stats = append(stats, FileStat{
			Path:    path,
			Exists:  true,
			ModTime: info.ModTime(),
			Size:    info.Size(),
		})
	}
	return stats
}

// fingerprintValid 重新 stat 校验指纹
// 任一文件的存在性、修改时间或大小变化即判定失效
func fingerprintValid(files []FileStat) bool {
	for _, f := range files {
		info, err := os.Stat(f.Path)
		if err != nil {
			if f.Exists {
				return false
			}
			continue
		}
		if !f.Exists {
			return false
		}
		if !info.ModTime().Equal(f.ModTime) || info.Size() != f.Size {
			return false
		}
	}
	return true
}
