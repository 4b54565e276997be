package main

import (
	"context"
	"errors"
	"flag"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pelusa-v/chatroom.git/internal/chat"
	"github.com/pelusa-v/chatroom.git/internal/config"
	"github.com/pelusa-v/chatroom.git/internal/handlers"
	"github.com/pelusa-v/chatroom.git/internal/logger"
	"golang.org/x/sync/errgroup"
)

var configDir = flag.String("config", "./configs", "directory containing config.yaml")

func main() {
	flag.Parse()

	// 加载配置
	cfg, err := config.LoadConfig(*configDir)
	if err != nil {
		log.Error("Fatal error: failed to load configuration", "err", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.InitLogger(cfg.Log)
	accessLog := logger.NewDailyFile(cfg.Log.Dir)
	defer func() { _ = accessLog.Close() }()

	// 聊天管理器
	manager := chat.NewManager(
		chat.WithLogger(log.Default()),
		chat.WithHeartbeat(cfg.Server.Heartbeat),
		chat.WithSendBuffer(cfg.Server.SendBuffer),
	)
	app := handlers.NewApp(manager, cfg.Server, accessLog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return manager.Run(ctx)
	})

	g.Go(func() error {
		log.Info("Server running", "addr", cfg.Server.Addr)
		return app.Listen(cfg.Server.Addr)
	})

	// 优雅退出
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down...")
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Error("HTTP Server shutdown failed", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server exited with error", "err", err)
		os.Exit(1)
	}
	log.Info("Server stopped")
}
