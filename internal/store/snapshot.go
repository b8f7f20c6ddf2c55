package store

import (
	"sync/atomic"
	"time"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/recommend"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Snapshot is one immutable generation of the catalog together with its
// derived indices. The search index may be built lazily on first use; every
// other field is fixed when the snapshot is published.
type Snapshot struct {
	version    uint64
	generation string
	loadedAt   time.Time
	products []catalog.Product
	orders   int
	byID     map[string]int
	graph    *recommend.Graph

	index      atomic.Pointer[index.SearchIndex]
	build      singleflight.Group
	buildIndex func([]catalog.Product) *index.SearchIndex
	onBuild    func(*index.SearchIndex, time.Duration)
}

func newSnapshot(version uint64, products []catalog.Product, orders []catalog.Order, graph *recommend.Graph) *Snapshot {
	byID := make(map[string]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	return &Snapshot{
		version:    version,
		generation: uuid.NewString(),
		loadedAt:   time.Now().UTC(),
		products:   products,
		orders:     len(orders),
		byID:       byID,
		graph:      graph,
		buildIndex: index.Build,
	}
}

func (s *Snapshot) Version() uint64 {
	return s.version
}

// Generation identifies this snapshot across processes. Versions restart at
// 1 in every instance, so anything shared between instances, such as cache
// keys, must use the generation instead.
func (s *Snapshot) Generation() string {
	return s.generation
}

func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Products returns the catalog in natural order. Callers must not modify
// the returned slice.
func (s *Snapshot) Products() []catalog.Product {
	return s.products
}

// Product looks up a product by ID.
func (s *Snapshot) Product(id string) (catalog.Product, bool) {
	i, ok := s.byID[id]
	if !ok {
		return catalog.Product{}, false
	}
	return s.products[i], true
}

func (s *Snapshot) Graph() *recommend.Graph {
	return s.graph
}

// SearchIndex returns the snapshot's index, building it on first use.
// Concurrent first callers share a single build.
func (s *Snapshot) SearchIndex() *index.SearchIndex {
	if idx := s.index.Load(); idx != nil {
		return idx
	}
	v, _, _ := s.build.Do("index", func() (any, error) {
		if idx := s.index.Load(); idx != nil {
			return idx, nil
		}
		start := time.Now()
		idx := s.buildIndex(s.products)
		s.index.Store(idx)
		if s.onBuild != nil {
			s.onBuild(idx, time.Since(start))
		}
		return idx, nil
	})
	return v.(*index.SearchIndex)
}

// IndexBuilt reports whether the search index exists yet.
func (s *Snapshot) IndexBuilt() bool {
	return s.index.Load() != nil
}

// Stats summarises the snapshot for status endpoints.
type Stats struct {
	Version         uint64    `json:"version"`
	Generation      string    `json:"generation"`
	LoadedAt        time.Time `json:"loadedAt"`
	Products        int       `json:"products"`
	Orders          int       `json:"orders"`
	IndexBuilt      bool      `json:"indexBuilt"`
	IndexTerms      int       `json:"indexTerms"`
	GraphNodes      int       `json:"graphNodes"`
	GraphEdges      int       `json:"graphEdges"`
	TruncatedOrders int       `json:"truncatedOrders"`
}

func (s *Snapshot) Stats() Stats {
	graph := s.graph.Stats()
	stats := Stats{
		Version:         s.version,
		Generation:      s.generation,
		LoadedAt:        s.loadedAt,
		Products:        len(s.products),
		Orders:          s.orders,
		GraphNodes:      graph.Nodes,
		GraphEdges:      graph.Edges,
		TruncatedOrders: graph.TruncatedOrders,
	}
	if idx := s.index.Load(); idx != nil {
		stats.IndexBuilt = true
		stats.IndexTerms = idx.Terms()
	}
	return stats
}
