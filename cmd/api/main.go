package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"bucketstream/config"
	"bucketstream/internal/app"
	"bucketstream/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.New(cfg.LogMode)
	logger.SetGlobalLogger(l)
	defer l.Sync() //nolint:errcheck

	if err := cfg.Validate(); err != nil {
		l.Logger.Fatal("invalid configuration", zap.Error(err))
	}

	a, err := app.New(ctx, cfg, l)
	if err != nil {
		l.Logger.Fatal("failed to start relay", zap.Error(err))
	}

	if err := a.Server.Run(ctx); err != nil {
		l.Logger.Error("server stopped with error", zap.Error(err))
	}
}
