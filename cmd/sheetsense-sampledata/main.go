package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sheetsense/sheetsense/internal/demo/sampledata"
)

func main() {
	_ = godotenv.Load()

	cfg, err := sampledata.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load sample data config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	service, err := sampledata.NewService(cfg, logger, nil)
	if err != nil {
		logger.Error("failed to initialize sample data generator", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := service.Run(ctx); err != nil {
		logger.Error("sample data generation failed", slog.Any("error", err))
		os.Exit(1)
	}
}
