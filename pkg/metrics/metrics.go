// Package metrics defines the Prometheus metric collectors used across the
// catalog services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the catalog services.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RateLimitedTotal     prometheus.Counter
	CatalogQueriesTotal  *prometheus.CounterVec
	QueryLatency         *prometheus.HistogramVec
	QueryResultsCount    *prometheus.HistogramVec
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	ReloadsTotal         *prometheus.CounterVec
	ReloadDuration       prometheus.Histogram
	IndexBuildsTotal     prometheus.Counter
	IndexBuildDuration   prometheus.Histogram
	CatalogProducts      prometheus.Gauge
	CatalogOrders        prometheus.Gauge
	IndexTerms           prometheus.Gauge
	GraphEdges           prometheus.Gauge
	SnapshotVersion      prometheus.Gauge
	AnalyticsEventsTotal *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them on reg. A nil reg registers
// on the process-wide default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter.",
			},
		),
		CatalogQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_queries_total",
				Help: "Catalog queries by operation and result (hit, zero_result, error).",
			},
			[]string{"operation", "result"},
		),
		QueryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_query_latency_seconds",
				Help:    "Catalog query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"operation", "cache_status"},
		),
		QueryResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_query_results_count",
				Help:    "Number of matching products per query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
			},
			[]string{"operation"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses.",
			},
		),
		ReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_reloads_total",
				Help: "Catalog reloads by status (ok, degraded).",
			},
			[]string{"status"},
		),
		ReloadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "catalog_reload_duration_seconds",
				Help:    "Time to load sources and build a snapshot.",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
		),
		IndexBuildsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "search_index_builds_total",
				Help: "Search index builds.",
			},
		),
		IndexBuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_index_build_duration_seconds",
				Help:    "Search index build time in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
		),
		CatalogProducts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_products",
				Help: "Products in the published snapshot.",
			},
		),
		CatalogOrders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_orders",
				Help: "Orders in the published snapshot.",
			},
		),
		IndexTerms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "search_index_terms",
				Help: "Distinct terms in the most recently built search index.",
			},
		),
		GraphEdges: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "copurchase_graph_edges",
				Help: "Undirected edges in the co-purchase graph.",
			},
		),
		SnapshotVersion: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "catalog_snapshot_version",
				Help: "Version of the published catalog snapshot.",
			},
		),
		AnalyticsEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analytics_events_total",
				Help: "Query analytics events by outcome (published, dropped, failed).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RateLimitedTotal,
		m.CatalogQueriesTotal,
		m.QueryLatency,
		m.QueryResultsCount,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.ReloadsTotal,
		m.ReloadDuration,
		m.IndexBuildsTotal,
		m.IndexBuildDuration,
		m.CatalogProducts,
		m.CatalogOrders,
		m.IndexTerms,
		m.GraphEdges,
		m.SnapshotVersion,
		m.AnalyticsEventsTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for the default
// registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// HandlerFor returns a scrape handler for a specific gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
