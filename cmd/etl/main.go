package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	httpadapter "github.com/couchcryptid/foot-traffic-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/foot-traffic-etl/internal/adapter/kafka"
	"github.com/couchcryptid/foot-traffic-etl/internal/config"
	"github.com/couchcryptid/foot-traffic-etl/internal/domain"
	"github.com/couchcryptid/foot-traffic-etl/internal/observability"
	"github.com/couchcryptid/foot-traffic-etl/internal/pipeline"
	"github.com/couchcryptid/foot-traffic-etl/internal/spreadsheet"
	"github.com/couchcryptid/foot-traffic-etl/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	logger.Info("store opened", "driver", cfg.Store.Driver, "location", st.Location())
	if cfg.VenueHoursFile != "" {
		logger.Info("operating hours loaded", "file", cfg.VenueHoursFile)
	}

	runner := pipeline.NewRunner(
		domain.NewDateResolver(cfg.ReferenceZone),
		spreadsheet.NewExtractor(domain.Venues, logger),
		domain.NewEnricher(cfg.EnteringMultiplier, cfg.Hours),
		st,
		cfg.ExtractWorkers,
		logger,
		metrics,
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, runner, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
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
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete")
}
