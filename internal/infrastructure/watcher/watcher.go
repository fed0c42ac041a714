// Package watcher 监视各平台数据目录，文件变化时按平台前缀失效缓存
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aiview/backend/internal/domain/conversation"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/infrastructure/source"
)

// debounceWindow 事件风暴合并窗口
// 编辑器写日志是高频小写入，窗口内同平台的事件合并为一次失效
const debounceWindow = 500 * time.Millisecond

// Invalidator 缓存失效入口，由缓存管理器实现
type Invalidator interface {
	InvalidatePrefix(prefix string) int
}

// Watcher 数据目录监视器
// 监视各平台根目录及其一级子目录，新项目目录出现时动态加入监视
type Watcher struct {
	registry    *source.Registry
	invalidator Invalidator
	logger      *slog.Logger

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	pending map[conversation.Source]*time.Timer
	cancel  context.CancelFunc
	done    chan struct{}
	// roots 监视路径到平台的映射，事件按最长前缀归属
	roots map[string]conversation.Source
}

// NewWatcher 创建监视器
func NewWatcher(registry *source.Registry, invalidator Invalidator) *Watcher {
	return &Watcher{
		registry:    registry,
		invalidator: invalidator,
		logger:      applog.NewModuleLogger("watcher", "fs"),
		pending:     make(map[conversation.Source]*time.Timer),
		roots:       make(map[string]conversation.Source),
	}
}

// Start 启动监视循环
// 不存在的根目录跳过，由健康检查上报，不算启动失败
func (w *Watcher) Start() error {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.mu.Lock()
	w.fs = fs
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	for _, adapter := range w.registry.All() {
		if !adapter.Available() {
			continue
		}
		w.watchRoot(adapter.Source(), adapter.RootPath())
	}

	go w.loop(ctx)
	return nil
}

// Stop 停止监视并等待循环退出
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	fs := w.fs
	done := w.done
	for _, timer := range w.pending {
		timer.Stop()
	}
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if fs != nil {
		fs.Close()
	}
	if done != nil {
		<-done
	}
}

// watchRoot 监视根目录及其一级子目录
// 会话文件都在项目子目录里，fsnotify 不递归，需要逐层加入
func (w *Watcher) watchRoot(src conversation.Source, root string) {
	if err := w.fs.Add(root); err != nil {
		w.logger.Warn("watch root failed", "source", src, "path", root, "error", err)
		return
	}
	w.mu.Lock()
	w.roots[root] = src
	w.mu.Unlock()

	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(root, entry.Name())
		if err := w.fs.Add(sub); err != nil {
			w.logger.Debug("watch subdir failed", "path", sub, "error", err)
		}
	}
	w.logger.Info("watching source root", "source", src, "path", root)
}

// loop 事件循环
func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

// handleEvent 处理单个文件系统事件
func (w *Watcher) handleEvent(event fsnotify.Event) {
	src, ok := w.sourceForPath(event.Name)
	if !ok {
		return
	}

	// 新建的项目目录加入监视
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil {
				w.logger.Debug("watch new dir failed", "path", event.Name, "error", err)
			}
		}
	}

	w.scheduleInvalidate(src)
}

// sourceForPath 事件路径归属的平台，按最长根前缀匹配
func (w *Watcher) sourceForPath(path string) (conversation.Source, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var best string
	var src conversation.Source
	for root, s := range w.roots {
		if strings.HasPrefix(path, root+string(filepath.Separator)) || path == root {
			if len(root) > len(best) {
				best = root
				src = s
			}
		}
	}
	return src, best != ""
}

// scheduleInvalidate 防抖后按平台前缀失效
func (w *Watcher) scheduleInvalidate(src conversation.Source) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[src]; ok {
		timer.Reset(debounceWindow)
		return
	}
	w.pending[src] = time.AfterFunc(debounceWindow, func() {
		w.mu.Lock()
		delete(w.pending, src)
		w.mu.Unlock()

		count := w.invalidator.InvalidatePrefix(string(src) + "/")
		w.logger.Debug("cache invalidated on change", "source", src, "entries", count)
	})
}
