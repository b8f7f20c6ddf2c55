package recommend

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id string, lines ...any) catalog.Order {
	o := catalog.Order{OrderID: id}
	for i := 0; i < len(lines); i += 2 {
		o.Items = append(o.Items, catalog.OrderItem{
			ProductID: lines[i].(string),
			Quantity:  lines[i+1].(int),
		})
	}
	return o
}

func TestPopularityCountsOrdersNotUnits(t *testing.T) {
	orders := []catalog.Order{
		order("o1", "bulk", 100),
		order("o2", "steady", 1),
		order("o3", "steady", 1),
		order("o4", "steady", 1, "steady", 3),
	}
	scores := Popularity(orders)
	assert.Equal(t, 1, scores["bulk"])
	assert.Equal(t, 3, scores["steady"], "repeated line in one order counts once")
	assert.Zero(t, scores["absent"])
}

func TestPopularityEmpty(t *testing.T) {
	assert.Empty(t, Popularity(nil))
	assert.Empty(t, Popularity([]catalog.Order{order("o1")}))
}

func TestGraphSymmetricWithoutSelfLoops(t *testing.T) {
	orders := []catalog.Order{
		order("o1", "a", 1, "b", 1, "a", 2),
		order("o2", "a", 1, "b", 1, "c", 1),
		order("o3", "c", 1, "d", 1),
		order("o4", "e", 5),
	}
	g := BuildGraph(orders, GraphOptions{})

	for _, x := range []string{"a", "b", "c", "d", "e"} {
		assert.Zero(t, g.Weight(x, x), "self loop on %s", x)
		for _, y := range []string{"a", "b", "c", "d", "e"} {
			assert.Equal(t, g.Weight(x, y), g.Weight(y, x), "%s-%s", x, y)
		}
	}
	assert.Equal(t, 2, g.Weight("a", "b"))
	assert.Equal(t, 1, g.Weight("a", "c"))
	assert.Equal(t, 1, g.Weight("c", "d"))
	assert.Equal(t, 4, g.Nodes(), "single-product order adds no node")
	assert.Equal(t, 4, g.Edges())
}

func TestNeighborsRanking(t *testing.T) {
	orders := []catalog.Order{
		order("o1", "hub", 1, "x", 1),
		order("o2", "hub", 1, "x", 1),
		order("o3", "hub", 1, "z", 1),
		order("o4", "hub", 1, "y", 1),
		order("o5", "hub", 1, "w", 1),
	}
	g := BuildGraph(orders, GraphOptions{})

	assert.Equal(t, []string{"x", "w", "y", "z"}, g.Neighbors("hub", 10))
	assert.Equal(t, []string{"x", "w"}, g.Neighbors("hub", 2))
	assert.Equal(t, []string{"hub"}, g.Neighbors("x", 3))
	assert.Equal(t, []string{}, g.Neighbors("hub", 0))
	assert.Equal(t, []string{}, g.Neighbors("hub", -1))
	assert.Equal(t, []string{}, g.Neighbors("unknown", 3))
}

func TestTopNeighborsFiltersBeforeLimit(t *testing.T) {
	orders := []catalog.Order{
		order("o1", "a", 1, "retired", 1),
		order("o2", "a", 1, "retired", 1),
		order("o3", "a", 1, "b", 1),
		order("o4", "a", 1, "c", 1),
	}
	g := BuildGraph(orders, GraphOptions{})
	keep := func(id string) bool { return id != "retired" }

	assert.Equal(t, []string{"b", "c"}, g.TopNeighbors("a", 2, keep))
	assert.Equal(t, []string{"retired", "b"}, g.Neighbors("a", 2))
}

func TestGraphTruncatesLargeOrders(t *testing.T) {
	var lines []any
	for i := 0; i < 6; i++ {
		lines = append(lines, fmt.Sprintf("p%d", i), 1)
	}
	g := BuildGraph([]catalog.Order{order("big", lines...)}, GraphOptions{MaxItemsPerOrder: 3})

	stats := g.Stats()
	assert.Equal(t, 1, stats.TruncatedOrders)
	assert.Equal(t, 3, stats.Nodes)
	assert.Equal(t, 3, stats.Edges)
	assert.Equal(t, 1, g.Weight("p0", "p2"))
	assert.Zero(t, g.Weight("p0", "p3"))
}

func TestGraphDefaultLimit(t *testing.T) {
	var lines []any
	for i := 0; i < DefaultMaxItemsPerOrder+5; i++ {
		lines = append(lines, fmt.Sprintf("p%03d", i), 1)
	}
	g := BuildGraph([]catalog.Order{order("huge", lines...)}, GraphOptions{})
	require.Equal(t, 1, g.Stats().TruncatedOrders)
	assert.Equal(t, DefaultMaxItemsPerOrder, g.Nodes())
	assert.Equal(t, DefaultMaxItemsPerOrder*(DefaultMaxItemsPerOrder-1)/2, g.Edges())
}
