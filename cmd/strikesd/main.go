package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/CorniiDog/lightning-research-application/internal/adapter/http"
	kafkaadapter "github.com/CorniiDog/lightning-research-application/internal/adapter/kafka"
	"github.com/CorniiDog/lightning-research-application/internal/cache"
	"github.com/CorniiDog/lightning-research-application/internal/config"
	"github.com/CorniiDog/lightning-research-application/internal/dispatch"
	"github.com/CorniiDog/lightning-research-application/internal/engine"
	"github.com/CorniiDog/lightning-research-application/internal/filter"
	"github.com/CorniiDog/lightning-research-application/internal/ingest"
	"github.com/CorniiDog/lightning-research-application/internal/observability"
	"github.com/CorniiDog/lightning-research-application/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Point store: Postgres when configured, in-memory otherwise.
	var pointStore store.PointStore
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open postgres store", "error", err)
			os.Exit(1)
		}
		defer pg.Close() //nolint:errcheck // process exiting
		pointStore = pg
		logger.Info("using postgres point store")
	} else {
		pointStore = store.NewMemoryStore()
		logger.Info("using in-memory point store")
	}

	db, err := cache.Open(cfg.CacheDir)
	if err != nil {
		logger.Error("failed to open result cache", "error", err)
		os.Exit(1)
	}
	defer db.Close() //nolint:errcheck // process exiting

	resultCache := cache.New(db, logger, metrics)
	filterEngine := filter.New(pointStore, logger)
	dispatcher := dispatch.New(cfg.Workers, logger, metrics)
	eng := engine.New(pointStore, filterEngine, dispatcher, resultCache, logger, metrics)

	var writer *kafkaadapter.StrikeWriter
	if cfg.KafkaSinkTopic != "" {
		writer = kafkaadapter.NewStrikeWriter(cfg, logger)
		eng.SetPublisher(writer)
		logger.Info("strike publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("strike publishing disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	pipeline := ingest.New(reader, pointStore, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, pipeline, eng, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ingest pipeline.
	go func() {
		if err := pipeline.Run(ctx); err != nil {
			logger.Error("ingest pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
