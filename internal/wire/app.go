package wire

import (
	"log/slog"

	"github.com/aiview/backend/internal/infrastructure/cache"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/infrastructure/watcher"
	ifacehttp "github.com/aiview/backend/internal/interfaces/http"
)

// App 应用主结构，组合所有服务
type App struct {
	HTTPServer  *ifacehttp.HTTPServer
	fileWatcher *watcher.Watcher
	cache       *cache.Manager
	logger      *slog.Logger
}

// NewApp 创建应用实例
func NewApp(
	httpServer *ifacehttp.HTTPServer,
	fileWatcher *watcher.Watcher,
	cacheManager *cache.Manager,
) *App {
	return &App{
		HTTPServer:  httpServer,
		fileWatcher: fileWatcher,
		cache:       cacheManager,
		logger:      applog.NewModuleLogger("app", "main"),
	}
}

// Start 启动所有服务
func (a *App) Start() error {
	a.logger.Info("starting aiview backend")

	// 文件监听失败不阻塞启动，缓存退化为指纹校验兜底
	if err := a.fileWatcher.Start(); err != nil {
		a.logger.Error("failed to start file watcher", "error", err)
	}

	go func() {
		if err := a.HTTPServer.Start(); err != nil {
			a.logger.Error("HTTP server exited", "error", err)
		}
	}()

	a.logger.Info("aiview backend started")
	return nil
}

// Stop 停止所有服务
func (a *App) Stop() error {
	a.logger.Info("stopping aiview backend")

	a.fileWatcher.Stop()
	a.cache.Clear()

	if err := a.HTTPServer.Stop(); err != nil {
		a.logger.Error("failed to stop HTTP server", "error", err)
		return err
	}

	a.logger.Info("aiview backend stopped")
	return nil
}
