package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheetsense/sheetsense/internal/api"
	"github.com/sheetsense/sheetsense/internal/assistant"
	"github.com/sheetsense/sheetsense/internal/auth"
	catalogpostgres "github.com/sheetsense/sheetsense/internal/catalog/postgres"
	"github.com/sheetsense/sheetsense/internal/config"
	"github.com/sheetsense/sheetsense/internal/dashboard"
	"github.com/sheetsense/sheetsense/internal/dataset"
	"github.com/sheetsense/sheetsense/internal/llm"
	"github.com/sheetsense/sheetsense/internal/maintenance"
	"github.com/sheetsense/sheetsense/internal/observability"
	duckdbengine "github.com/sheetsense/sheetsense/internal/query/duckdb"
	"github.com/sheetsense/sheetsense/internal/storage"
	"github.com/sheetsense/sheetsense/internal/storage/localfs"
	s3store "github.com/sheetsense/sheetsense/internal/storage/s3"
	"github.com/sheetsense/sheetsense/internal/translate"
)

func main() {
	cfg, err := config.LoadFromEnv("sheetsense-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	catalogDB, err := catalogpostgres.Open(context.Background(), cfg.Catalog)
	if err != nil {
		logger.Error("failed to open catalog db", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = catalogDB.Close() }()
	catalogRepo := catalogpostgres.NewRepository(catalogDB)

	objectStore, err := openObjectStore(context.Background(), cfg.ObjectStore)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}
	datasets, err := dataset.NewStore(objectStore, catalogRepo, duckdbengine.NewEngine(objectStore), cfg.Dataset.CacheSize, logger)
	if err != nil {
		logger.Error("failed to initialize dataset store", slog.Any("error", err))
		os.Exit(1)
	}

	inference, err := llm.New(llm.Config{
		LocalURL:       cfg.Inference.LocalURL,
		LocalModel:     cfg.Inference.LocalModel,
		ProbeTimeout:   cfg.Inference.LocalProbeTimeout,
		RemoteURL:      cfg.Inference.RemoteURL,
		RemoteModel:    cfg.Inference.RemoteModel,
		RemoteAPIKey:   cfg.Inference.RemoteAPIKey,
		RemoteAttempts: cfg.Inference.RemoteMaxAttempts,
		RemoteBackoff:  cfg.Inference.RemoteBackoff,
	}, &http.Client{}, logger)
	if err != nil {
		logger.Error("failed to initialize inference client", slog.Any("error", err))
		os.Exit(1)
	}
	translator := translate.New(inference, translate.Timeouts{
		Filter: cfg.Inference.FilterTimeout,
		Chart:  cfg.Inference.ChartTimeout,
		Answer: cfg.Inference.AnswerTimeout,
	}, logger)

	maintenanceService := &maintenance.Service{
		Datasets:    datasets,
		ObjectStore: objectStore,
		Config: maintenance.Config{
			IntegrityInterval: cfg.Maintenance.IntegrityInterval,
			PruneMissing:      cfg.Maintenance.PruneMissing,
		},
		Logger: logger,
	}

	deps := api.Dependencies{
		Logger:      logger,
		Datasets:    datasets,
		Assistant:   assistant.New(datasets, translator, assistant.Options{SampleRows: cfg.Dataset.SampleRows, SampleValues: cfg.Dataset.SampleValues}, logger),
		Dashboard:   dashboard.New(catalogRepo, datasets, translator, cfg.Dataset.SampleValues, logger),
		Backends:    inference,
		Maintenance: maintenanceService,
		Readiness: api.CombineReadinessChecks(
			api.CheckCatalog(catalogRepo),
			api.CheckObjectStore(objectStore),
		),
		DependencyTimeout: 2 * time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		_ = maintenanceService.Run(ctx)
	}()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("object_store", cfg.ObjectStore.Driver),
			slog.Bool("remote_inference", inference.RemoteConfigured()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openObjectStore(ctx context.Context, cfg config.ObjectStoreConfig) (storage.ObjectStore, error) {
	switch cfg.Driver {
	case config.ObjectStoreLocal:
		store, err := localfs.New(cfg.LocalDir)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.ObjectStoreS3:
		store, err := s3store.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown object store driver %q", cfg.Driver)
	}
}
