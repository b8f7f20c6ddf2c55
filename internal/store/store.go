// Package store owns the published catalog snapshot. Reloads build a complete
// new snapshot and swap it in atomically, so queries always run against one
// consistent generation of products, orders, search index and co-purchase
// graph.
package store

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/recommend"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/pkg/resilience"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// EagerIndex builds the search index before a snapshot is published.
	// Otherwise the first search against the snapshot builds it.
	EagerIndex       bool
	MaxItemsPerOrder int
	LoadTimeout      time.Duration
	Retry            resilience.RetryConfig
	Metrics          *metrics.Metrics
}

// ReloadReport describes the outcome of a reload. A failed source does not
// fail the reload: it contributes an empty collection and its error is
// reported here. An aborted reload published nothing; the report then
// describes the snapshot still being served.
type ReloadReport struct {
	Version         uint64        `json:"version"`
	Generation      string        `json:"generation"`
	Aborted         bool          `json:"aborted,omitempty"`
	Products        int           `json:"products"`
	Orders          int           `json:"orders"`
	GraphEdges      int           `json:"graphEdges"`
	TruncatedOrders int           `json:"truncatedOrders"`
	IndexBuilt      bool          `json:"indexBuilt"`
	Duration        time.Duration `json:"-"`
	DurationMs      int64         `json:"durationMs"`
	ProductsError   string        `json:"productsError,omitempty"`
	OrdersError     string        `json:"ordersError,omitempty"`
}

// Degraded reports whether either source failed to load.
func (r ReloadReport) Degraded() bool {
	return r.ProductsError != "" || r.OrdersError != ""
}

type Store struct {
	source     catalog.Source
	opts       Options
	current    atomic.Pointer[Snapshot]
	reloadMu   sync.Mutex
	version    uint64
	listeners  []func(ReloadReport)
	listenMu   sync.Mutex
	buildIndex func([]catalog.Product) *index.SearchIndex
	logger     *slog.Logger
}

// New creates a Store serving an empty snapshot until the first Reload.
func New(source catalog.Source, opts Options) *Store {
	if opts.MaxItemsPerOrder <= 0 {
		opts.MaxItemsPerOrder = recommend.DefaultMaxItemsPerOrder
	}
	s := &Store{
		source:     source,
		opts:       opts,
		buildIndex: index.Build,
		logger:     slog.Default().With("component", "catalog-store"),
	}
	s.current.Store(s.prepare(newSnapshot(0, nil, nil, recommend.BuildGraph(nil, recommend.GraphOptions{}))))
	return s
}

// OnReload registers fn to run after every published reload.
func (s *Store) OnReload(fn func(ReloadReport)) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Snapshot returns the currently published snapshot. Callers should load it
// once per request and use it throughout.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Reload loads both sources, derives popularity and the co-purchase graph,
// and publishes the result as a new snapshot. Concurrent reloads are
// serialised; queries keep using the previous snapshot until the swap.
//
// A products failure publishes an empty catalog and an orders failure
// publishes zero popularity and an empty graph. Neither stops the service.
// If ctx ends before the sources are loaded nothing is published and the
// current snapshot stays live.
func (s *Store) Reload(ctx context.Context) ReloadReport {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	var (
		products    []catalog.Product
		orders      []catalog.Order
		popularity  map[string]int
		graph       *recommend.Graph
		productsErr error
		ordersErr   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		products, productsErr = load(gctx, s, "load products", s.source.LoadProducts)
		return nil
	})
	g.Go(func() error {
		orders, ordersErr = load(gctx, s, "load orders", s.source.LoadOrders)
		if ordersErr != nil {
			orders = nil
		}
		popularity = recommend.Popularity(orders)
		graph = recommend.BuildGraph(orders, recommend.GraphOptions{
			MaxItemsPerOrder: s.opts.MaxItemsPerOrder,
			Logger:           s.logger,
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return s.abort(start, err)
	}

	report := ReloadReport{}
	if productsErr != nil {
		s.logger.Error("product catalog unavailable, serving an empty catalog", "error", productsErr)
		report.ProductsError = productsErr.Error()
		products = nil
	}
	if ordersErr != nil {
		s.logger.Warn("order history unavailable, popularity and recommendations disabled", "error", ordersErr)
		report.OrdersError = ordersErr.Error()
	}

	scored := slices.Clone(products)
	for i := range scored {
		scored[i].PopularityScore = popularity[scored[i].ID]
	}

	s.version++
	snap := s.prepare(newSnapshot(s.version, scored, orders, graph))
	if s.opts.EagerIndex {
		snap.SearchIndex()
	}
	s.current.Store(snap)

	stats := graph.Stats()
	report.Version = snap.version
	report.Generation = snap.generation
	report.Products = len(scored)
	report.Orders = len(orders)
	report.GraphEdges = stats.Edges
	report.TruncatedOrders = stats.TruncatedOrders
	report.IndexBuilt = snap.IndexBuilt()
	report.Duration = time.Since(start)
	report.DurationMs = report.Duration.Milliseconds()

	s.record(report)
	s.logger.Info("catalog snapshot published",
		"version", report.Version,
		"products", report.Products,
		"orders", report.Orders,
		"graph_edges", report.GraphEdges,
		"truncated_orders", report.TruncatedOrders,
		"index_built", report.IndexBuilt,
		"duration_ms", report.DurationMs,
	)

	s.listenMu.Lock()
	listeners := slices.Clone(s.listeners)
	s.listenMu.Unlock()
	for _, fn := range listeners {
		fn(report)
	}
	return report
}

// abort reports a reload whose caller went away mid-load. A cancelled load
// says nothing about the source, so the live snapshot is kept.
func (s *Store) abort(start time.Time, cause error) ReloadReport {
	current := s.Snapshot()
	report := ReloadReport{
		Version:    current.version,
		Generation: current.generation,
		Aborted:    true,
		Products:   len(current.products),
		Orders:     current.orders,
		IndexBuilt: current.IndexBuilt(),
		Duration:   time.Since(start),
	}
	report.DurationMs = report.Duration.Milliseconds()
	if m := s.opts.Metrics; m != nil {
		m.ReloadsTotal.WithLabelValues("aborted").Inc()
	}
	s.logger.Warn("reload abandoned, keeping current snapshot",
		"version", report.Version,
		"products", report.Products,
		"error", cause,
	)
	return report
}

func load[T any](ctx context.Context, s *Store, name string, fn func(context.Context) (T, error)) (T, error) {
	return resilience.Do(ctx, name, s.opts.Retry, func(ctx context.Context) (T, error) {
		return resilience.Call(ctx, s.opts.LoadTimeout, name, fn)
	})
}

func (s *Store) prepare(snap *Snapshot) *Snapshot {
	snap.buildIndex = s.buildIndex
	m := s.opts.Metrics
	snap.onBuild = func(idx *index.SearchIndex, took time.Duration) {
		s.logger.Info("search index built",
			"version", snap.version,
			"terms", idx.Terms(),
			"docs", idx.DocCount(),
			"duration_ms", took.Milliseconds(),
		)
		if m != nil {
			m.IndexBuildsTotal.Inc()
			m.IndexBuildDuration.Observe(took.Seconds())
			m.IndexTerms.Set(float64(idx.Terms()))
		}
	}
	return snap
}

func (s *Store) record(report ReloadReport) {
	m := s.opts.Metrics
	if m == nil {
		return
	}
	status := "ok"
	if report.Degraded() {
		status = "degraded"
	}
	m.ReloadsTotal.WithLabelValues(status).Inc()
	m.ReloadDuration.Observe(report.Duration.Seconds())
	m.CatalogProducts.Set(float64(report.Products))
	m.CatalogOrders.Set(float64(report.Orders))
	m.GraphEdges.Set(float64(report.GraphEdges))
	m.SnapshotVersion.Set(float64(report.Version))
}

// SearchAndFilter runs a listing query against the current snapshot.
func (s *Store) SearchAndFilter(c criteria.Criteria) executor.Page {
	return executor.SearchAndFilter(s.Snapshot(), c)
}

// FacetedMetadata computes facet counts against the current snapshot.
func (s *Store) FacetedMetadata(c criteria.Criteria) executor.Facets {
	return executor.FacetedMetadata(s.Snapshot(), c)
}

// Product returns the product with the given ID from the current snapshot.
func (s *Store) Product(id string) (catalog.Product, bool) {
	return s.Snapshot().Product(id)
}

// Recommendations returns up to limit products most often bought together
// with productID. Products no longer in the catalog are skipped. An unknown
// product or a non-positive limit yields an empty list.
func (s *Store) Recommendations(productID string, limit int) []catalog.Product {
	return Recommend(s.Snapshot(), productID, limit)
}

// Recommend is Recommendations against a specific snapshot.
func Recommend(snap *Snapshot, productID string, limit int) []catalog.Product {
	if limit <= 0 {
		return []catalog.Product{}
	}
	if _, ok := snap.byID[productID]; !ok {
		return []catalog.Product{}
	}
	ids := snap.graph.TopNeighbors(productID, limit, func(id string) bool {
		_, ok := snap.byID[id]
		return ok
	})
	out := make([]catalog.Product, len(ids))
	for i, id := range ids {
		out[i] = snap.products[snap.byID[id]]
	}
	return out
}
