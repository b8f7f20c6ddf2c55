package recommend

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
)

// DefaultMaxItemsPerOrder bounds the quadratic pair expansion of a single
// order.
const DefaultMaxItemsPerOrder = 100

type GraphOptions struct {
	// MaxItemsPerOrder caps the distinct products of one order that take
	// part in pairing. Zero or negative selects DefaultMaxItemsPerOrder.
	MaxItemsPerOrder int
	Logger           *slog.Logger
}

// GraphStats describes how a graph was built.
type GraphStats struct {
	Orders          int `json:"orders"`
	TruncatedOrders int `json:"truncatedOrders"`
	Nodes           int `json:"nodes"`
	Edges           int `json:"edges"`
}

// Graph is an undirected weighted co-purchase graph. The weight of a-b is
// the number of orders containing both. It is immutable once built.
type Graph struct {
	adj   map[string]map[string]int
	stats GraphStats
}

// BuildGraph pairs the distinct products of every order. Orders listing more
// than MaxItemsPerOrder distinct products only pair the first
// MaxItemsPerOrder of them, in line order.
func BuildGraph(orders []catalog.Order, opts GraphOptions) *Graph {
	limit := opts.MaxItemsPerOrder
	if limit <= 0 {
		limit = DefaultMaxItemsPerOrder
	}
	g := &Graph{adj: make(map[string]map[string]int)}
	for _, order := range orders {
		ids := order.ProductIDs()
		if len(ids) > limit {
			g.stats.TruncatedOrders++
			if opts.Logger != nil {
				opts.Logger.Warn("order truncated for co-purchase pairing",
					"order_id", order.OrderID,
					"distinct_products", len(ids),
					"limit", limit,
				)
			}
			ids = ids[:limit]
		}
		g.stats.Orders++
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				g.increment(ids[i], ids[j])
				g.increment(ids[j], ids[i])
			}
		}
	}
	g.stats.Nodes = len(g.adj)
	for _, neighbors := range g.adj {
		g.stats.Edges += len(neighbors)
	}
	g.stats.Edges /= 2
	return g
}

func (g *Graph) increment(from, to string) {
	neighbors, ok := g.adj[from]
	if !ok {
		neighbors = make(map[string]int)
		g.adj[from] = neighbors
	}
	neighbors[to]++
}

// Neighbors returns up to limit products most often bought with id, heaviest
// first, ties broken by ascending product ID.
func (g *Graph) Neighbors(id string, limit int) []string {
	return g.TopNeighbors(id, limit, nil)
}

// TopNeighbors is Neighbors restricted to IDs accepted by keep. Rejected IDs
// do not count towards limit. A nil keep accepts everything.
func (g *Graph) TopNeighbors(id string, limit int, keep func(string) bool) []string {
	if limit <= 0 {
		return []string{}
	}
	neighbors, ok := g.adj[id]
	if !ok {
		return []string{}
	}
	ranked := topK(neighbors, limit, keep)
	ids := make([]string, len(ranked))
	for i, n := range ranked {
		ids[i] = n.ID
	}
	return ids
}

// Weight returns the number of orders containing both a and b.
func (g *Graph) Weight(a, b string) int {
	return g.adj[a][b]
}

// Nodes returns the number of products with at least one neighbor.
func (g *Graph) Nodes() int {
	return g.stats.Nodes
}

// Edges returns the number of undirected edges.
func (g *Graph) Edges() int {
	return g.stats.Edges
}

// Stats returns the counts gathered while the graph was built.
func (g *Graph) Stats() GraphStats {
	return g.stats
}
