// Package benchmark contains Go benchmarks for the catalog engine: text
// normalisation, index construction, listing and facet queries, and the
// co-purchase graph.
//
// Run with:
//
//	go test -bench=. -benchmem ./test/benchmark/...
package benchmark

import (
	"fmt"
	"math/rand"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/index"
)

var (
	categories = []string{"Footwear", "Apparel", "Electronics", "Accessories", "Outdoor", "Home"}
	brands     = []string{"Nike", "Adidas", "Puma", "Garmin", "Hydro Flask", "Patagonia", "Sony", "Asics"}
	words      = []string{"running", "trail", "lightweight", "waterproof", "wireless", "insulated", "classic", "training", "shoe", "jacket", "watch", "bottle", "headphones", "socks", "backpack"}
)

// benchCatalog is a fixed product slice with a prebuilt index.
type benchCatalog struct {
	products []catalog.Product
	idx      *index.SearchIndex
}

func (c *benchCatalog) Products() []catalog.Product     { return c.products }
func (c *benchCatalog) SearchIndex() *index.SearchIndex { return c.idx }

func newBenchCatalog(n int) *benchCatalog {
	products := generateProducts(n)
	return &benchCatalog{products: products, idx: index.Build(products)}
}

func generateProducts(n int) []catalog.Product {
	rng := rand.New(rand.NewSource(42))
	products := make([]catalog.Product, n)
	for i := range products {
		name := fmt.Sprintf("%s %s %s", words[rng.Intn(len(words))], words[rng.Intn(len(words))], words[rng.Intn(len(words))])
		products[i] = catalog.Product{
			ID:              fmt.Sprintf("p%d", i),
			Name:            name,
			Description:     fmt.Sprintf("A %s %s for everyday use, model %d", words[rng.Intn(len(words))], words[rng.Intn(len(words))], i),
			Price:           float64(rng.Intn(30000)) / 100,
			Category:        categories[rng.Intn(len(categories))],
			Brand:           brands[rng.Intn(len(brands))],
			Rating:          float64(rng.Intn(50)) / 10,
			InStock:         rng.Intn(4) != 0,
			Tags:            []string{words[rng.Intn(len(words))], words[rng.Intn(len(words))]},
			PopularityScore: rng.Intn(500),
		}
	}
	return products
}

func generateOrders(n, products, maxItems int) []catalog.Order {
	rng := rand.New(rand.NewSource(7))
	orders := make([]catalog.Order, n)
	for i := range orders {
		items := make([]catalog.OrderItem, 1+rng.Intn(maxItems))
		for j := range items {
			items[j] = catalog.OrderItem{ProductID: fmt.Sprintf("p%d", rng.Intn(products)), Quantity: 1 + rng.Intn(3)}
		}
		orders[i] = catalog.Order{OrderID: fmt.Sprintf("o%d", i), Items: items}
	}
	return orders
}
