package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/interfaces/http/handler"
	"github.com/aiview/backend/internal/interfaces/http/middleware"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	router   *gin.Engine
	httpPort string
	server   *http.Server
	logger   *slog.Logger
}

// NewServer 创建 HTTP 服务器并注册路由
func NewServer(
	cfg *config.ServerConfig,
	projectHandler *handler.ProjectHandler,
	sessionHandler *handler.SessionHandler,
	searchHandler *handler.SearchHandler,
	healthHandler *handler.HealthHandler,
	cacheHandler *handler.CacheHandler,
) *HTTPServer {
	router := gin.Default()
	router.Use(middleware.RequestID())

	logger := applog.NewModuleLogger("http", "server")

	api := router.Group("/api/v1")
	{
		// 项目相关路由
		api.GET("/projects", projectHandler.ListAll)
		api.GET("/sources/:source/projects", projectHandler.ListBySource)

		// 会话相关路由
		api.GET("/sources/:source/projects/:project_id/sessions", sessionHandler.ListSessions)
		api.GET("/sources/:source/projects/:project_id/sessions/:session_id", sessionHandler.GetSession)
		api.GET("/sources/:source/projects/:project_id/sessions/:session_id/messages", sessionHandler.GetConversation)
		api.GET("/sources/:source/projects/:project_id/sessions/:session_id/summary", sessionHandler.GetSummary)

		// 全局搜索
		api.GET("/search", searchHandler.Global)

		// 平台健康状态
		api.GET("/health", healthHandler.Health)
		api.GET("/sources/health", healthHandler.Health)

		// 缓存管理
		api.GET("/cache/stats", cacheHandler.Stats)
		api.POST("/cache/clear", cacheHandler.Clear)
	}

	// 进程级健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return &HTTPServer{
		router:   router,
		httpPort: cfg.HTTPPort,
		logger:   logger,
	}
}

// Start 启动服务器
func (s *HTTPServer) Start() error {
	s.server = &http.Server{
		Addr:    s.httpPort,
		Handler: s.router,
	}

	s.logger.Info("HTTP server starting",
		"port", s.httpPort,
	)

	return s.server.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// Stop 停止服务器
func (s *HTTPServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(ctx)
}
