package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"landadmin/internal/app"
	"landadmin/internal/landtransfer/preload"
	"landadmin/internal/platform/config"
	"landadmin/internal/platform/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogFormat, cfg.Server.LogLevel)
	if !cfg.Queue.Enabled() {
		log.Error("queue is not configured; set QUEUE_REDIS_ADDR")
		os.Exit(1)
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	server := asynq.NewServer(preload.RedisOpt(cfg.Queue), asynq.Config{
		Concurrency: cfg.Queue.Concurrency,
	})

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	log.Info("starting preload worker", "concurrency", cfg.Queue.Concurrency)
	if err := server.Run(a.PreloadProcessor().Handler()); err != nil {
		log.Error("worker stopped", "error", err)
		os.Exit(1)
	}
}
