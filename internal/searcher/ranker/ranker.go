// Package ranker orders matched products. Every ordering is stable: products
// that compare equal keep the order they arrived in.
package ranker

import (
	"cmp"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
)

// Compare returns the comparison function for order, or nil when the order
// keeps input order.
func Compare(order criteria.SortOrder) func(a, b catalog.Product) int {
	switch order {
	case criteria.SortPriceAsc:
		return func(a, b catalog.Product) int {
			return cmp.Compare(a.Price, b.Price)
		}
	case criteria.SortPriceDesc:
		return func(a, b catalog.Product) int {
			return cmp.Compare(b.Price, a.Price)
		}
	case criteria.SortRating:
		return func(a, b catalog.Product) int {
			return cmp.Compare(b.Rating, a.Rating)
		}
	case criteria.SortPopular:
		return func(a, b catalog.Product) int {
			return cmp.Compare(b.PopularityScore, a.PopularityScore)
		}
	default:
		return nil
	}
}

// Sort orders products in place.
func Sort(products []catalog.Product, order criteria.SortOrder) {
	if compare := Compare(order); compare != nil {
		slices.SortStableFunc(products, compare)
	}
}
