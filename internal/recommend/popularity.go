// Package recommend derives purchase-history signals from orders: per-product
// popularity and the co-purchase graph behind "frequently bought together".
package recommend

import "github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"

// Popularity counts, for every product ID, the number of distinct orders
// containing it. Quantities are ignored, so one order of 100 units scores
// the same as one order of a single unit.
func Popularity(orders []catalog.Order) map[string]int {
	scores := make(map[string]int)
	for _, order := range orders {
		for _, id := range order.ProductIDs() {
			scores[id]++
		}
	}
	return scores
}
