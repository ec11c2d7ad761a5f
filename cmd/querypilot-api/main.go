package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/querypilot/querypilot/internal/api"
	"github.com/querypilot/querypilot/internal/config"
	"github.com/querypilot/querypilot/internal/db"
	"github.com/querypilot/querypilot/internal/executor"
	"github.com/querypilot/querypilot/internal/nl2sql"
	"github.com/querypilot/querypilot/internal/observability"
	"github.com/querypilot/querypilot/internal/pipeline"
	"github.com/querypilot/querypilot/internal/schema"
	schemapostgres "github.com/querypilot/querypilot/internal/schema/postgres"
	schemasqlite "github.com/querypilot/querypilot/internal/schema/sqlite"
	"github.com/querypilot/querypilot/internal/sqlcheck"
)

func main() {
	cfg, err := config.LoadFromEnv("querypilot-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	database, err := db.Open(context.Background(), cfg.Database)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = database.Close() }()

	var provider schema.Provider
	switch cfg.Database.Dialect {
	case config.DialectPostgreSQL:
		provider = schemapostgres.NewProvider(database)
	default:
		provider = schemasqlite.NewProvider(database)
	}
	cachedProvider := schema.NewCachedProvider(provider)

	generator, err := nl2sql.NewOpenAIGenerator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize sql generator", slog.Any("error", err))
		os.Exit(1)
	}

	askPipeline := &pipeline.Pipeline{
		Schema:                cachedProvider,
		Generator:             generator,
		Validator:             sqlcheck.New(),
		Executor:              executor.NewRunner(database, cfg.Database.RowLimit),
		MaxCorrectionAttempts: cfg.Pipeline.MaxCorrectionAttempts,
		Logger:                logger,
	}

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:            logger,
		Readiness:         api.CheckDatabase(database.PingContext),
		DependencyTimeout: time.Second,
		Pipeline:          askPipeline,
		Schema:            cachedProvider,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
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
