// Command analytics runs the standalone query analytics service.
//
// It consumes query and reload events published by catalog instances,
// aggregates them in memory (query totals, cache hit rate, latency
// percentiles, top and zero-result queries, top recommendation targets),
// snapshots the aggregate to PostgreSQL and serves it over HTTP.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics/aggregator"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/postgres"
)

// main wires the Kafka consumer into the aggregator, restores the last
// persisted snapshot when PostgreSQL is reachable, and serves the HTTP API
// until SIGINT or SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Analytics.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agg := analytics.NewAggregator()
	checker := health.NewChecker()
	var wg sync.WaitGroup

	var snapshots analytics.SnapshotLister
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics will not be persisted", "error", err)
	} else {
		defer db.Close()
		store := aggregator.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare analytics schema", "error", err)
			os.Exit(1)
		}
		latest, err := store.LatestSnapshot(ctx)
		switch {
		case err != nil:
			slog.Warn("failed to load previous analytics snapshot", "error", err)
		case latest != nil:
			agg.Restore(*latest)
			slog.Info("analytics restored from snapshot", "total_queries", latest.TotalQueries)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RunPeriodicSave(ctx, agg, cfg.Analytics.SnapshotInterval)
		}()
		checker.Register("postgres", health.PingCheck(db.Ping))
		snapshots = store
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(agg))
	defer consumer.Close()
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer stopped", "error", err)
		}
	}()
	slog.Info("analytics consumer started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	mux := http.NewServeMux()
	analytics.NewHandler(agg, snapshots).Register(mux)
	mux.HandleFunc("GET /health", health.StatusHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Analytics.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	wg.Wait()
	slog.Info("analytics service stopped")
}
