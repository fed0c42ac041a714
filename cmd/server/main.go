package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aiview/backend/internal/infrastructure/config"
	applog "github.com/aiview/backend/internal/infrastructure/log"
	"github.com/aiview/backend/internal/infrastructure/singleton"
	"github.com/aiview/backend/internal/wire"
)

func main() {
	// 初始化日志系统
	applog.Init(nil)

	// 加载配置获取端口
	cfg := config.NewConfig()
	port := cfg.Server.HTTPPort

	// 单实例检查：端口即进程锁
	listener, err := singleton.CheckAndLock(port)
	if err != nil {
		log.Fatalf("singleton check failed: %v", err)
	}
	if listener == nil {
		log.Println("another instance is already running, exiting")
		os.Exit(0)
	}
	// 关闭临时 listener，实际监听由 HTTP 服务器负责
	_ = listener.Close()

	app, err := wire.InitializeApp()
	if err != nil {
		applog.GetLogger().Error("failed to initialize application",
			"error", err,
		)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		applog.GetLogger().Error("failed to start application",
			"error", err,
		)
		os.Exit(1)
	}

	// 优雅关闭
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	applog.GetLogger().Info("shutting down...")
	if err := app.Stop(); err != nil {
		applog.GetLogger().Error("error during shutdown",
			"error", err,
		)
	}
	applog.GetLogger().Info("application stopped")
}
