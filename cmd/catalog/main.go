// Command catalog serves the product catalog query API.
//
// It loads products and orders from the configured source (JSON files or
// PostgreSQL), publishes an immutable snapshot, and answers listing, facet,
// product and recommendation queries against it. Reloads arrive over HTTP,
// from the catalog-reload Kafka topic, or from a periodic ticker.
//
// Usage:
//
//	go run ./cmd/catalog [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/gateway/router"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/store"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/tracing"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting catalog service",
		"port", cfg.Server.Port,
		"source", cfg.Catalog.Source,
		"eager_index", cfg.Catalog.EagerIndex,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		metricsServer := metrics.NewServer(cfg.Metrics.Port, nil)
		metricsServer.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	var source catalog.Source
	switch cfg.Catalog.Source {
	case config.SourcePostgres:
		db, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := catalog.NewPostgresSource(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare catalog schema", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(db.Ping))
		source = pg
	default:
		source = catalog.NewFileSource(cfg.Catalog.ProductsPath, cfg.Catalog.OrdersPath)
	}

	catalogStore := store.New(source, store.Options{
		EagerIndex:       cfg.Catalog.EagerIndex,
		MaxItemsPerOrder: cfg.Catalog.MaxItemsPerOrder,
		LoadTimeout:      cfg.Catalog.LoadTimeout,
		Retry:            resilience.RetryConfig{MaxAttempts: 3},
		Metrics:          m,
	})
	checker.Register("catalog", func(ctx context.Context) health.ComponentHealth {
		stats := catalogStore.Snapshot().Stats()
		if stats.Products == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "catalog is empty"}
		}
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("version %d, %d products", stats.Version, stats.Products),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, query caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(cache.RedisBackend{Client: redisClient}, cache.Options{
				TTL:     cfg.Redis.CacheTTL,
				Metrics: m,
			})
			checker.RegisterOptional("redis", health.PingCheck(redisClient.Ping))
			slog.Info("query cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var aggregator *analytics.Aggregator
	var collector *analytics.Collector
	if cfg.Analytics.Enabled {
		aggregator = analytics.NewAggregator()
		var publisher kafka.Publisher
		if cfg.Kafka.Enabled {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
			defer producer.Close()
			publisher = producer
		}
		collector = analytics.NewCollector(publisher, analytics.CollectorOptions{
			BufferSize: cfg.Analytics.BufferSize,
			Local:      aggregator,
			Metrics:    m,
		})
		collector.Start(ctx)
		defer collector.Close()
	}

	catalogStore.OnReload(func(report store.ReloadReport) {
		if _, err := queryCache.Invalidate(context.Background()); err != nil {
			slog.Warn("failed to invalidate query cache after reload", "error", err)
		}
		collector.Track(analytics.ReloadEvent{
			Type:       analytics.EventReload,
			Version:    report.Version,
			Products:   report.Products,
			Orders:     report.Orders,
			Degraded:   report.Degraded(),
			DurationMs: report.DurationMs,
			Timestamp:  time.Now().UTC(),
		})
	})

	report := catalogStore.Reload(ctx)
	if report.Degraded() {
		slog.Warn("initial catalog load degraded",
			"products_error", report.ProductsError,
			"orders_error", report.OrdersError,
		)
	}

	if cfg.Kafka.Enabled {
		// Each instance has its own group so every instance reloads.
		hostname, _ := os.Hostname()
		group := fmt.Sprintf("%s-reload-%s-%s", cfg.Kafka.ConsumerGroup, hostname, uuid.NewString()[:8])
		consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CatalogReload, catalogStore.HandleReloadMessage(),
			kafka.ConsumerOptions{GroupID: group})
		defer consumer.Close()
		go func() {
			if err := consumer.Start(ctx); err != nil {
				slog.Error("reload consumer stopped", "error", err)
			}
		}()
		slog.Info("reload consumer started", "topic", cfg.Kafka.Topics.CatalogReload, "group", group)
	}

	go catalogStore.RunPeriodic(ctx, cfg.Catalog.ReloadInterval)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		defer limiter.Close()
	}

	var analyticsHandler *analytics.Handler
	if aggregator != nil {
		analyticsHandler = analytics.NewHandler(aggregator, nil)
	}

	opts := handler.Options{Cache: queryCache, Metrics: m, Search: cfg.Search}
	if collector != nil {
		opts.Tracker = collector
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router.New(router.Deps{
			Handler:        handler.New(catalogStore, opts),
			Health:         checker,
			Analytics:      analyticsHandler,
			Limiter:        limiter,
			Metrics:        m,
			Tracer:         tracing.NewTracer(cfg.Tracing),
			AdminToken:     cfg.Admin.Token,
			AllowedOrigins: cfg.CORS.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// ListenAndServe returns as soon as Shutdown starts; the deferred
	// closes must wait until in-flight requests have drained.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("catalog service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	<-drained

	slog.Info("catalog service stopped")
}
