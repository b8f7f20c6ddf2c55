// Package executor runs catalog queries against a snapshot: search, filter,
// sort and paginate for listings, and exclude-self facet counting for the
// filter sidebar. Every function is a pure read of its Catalog.
package executor

import (
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/ranker"
)

// Catalog is the read view a query runs against. Products must be in
// catalog order and SearchIndex must have been built from exactly that
// slice. Implementations must not mutate either while queries run.
type Catalog interface {
	Products() []catalog.Product
	SearchIndex() *index.SearchIndex
}

// Page is one window of a listing.
type Page struct {
	Items      []catalog.Product `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

// SearchAndFilter returns the requested page of products matching c.
// Pages past the end are empty but still report the full match count.
func SearchAndFilter(cat Catalog, c criteria.Criteria) Page {
	m := newMatcher(c)
	working := searchStage(cat, c)

	matched := make([]catalog.Product, 0, len(working))
	for i := range working {
		if m.matches(&working[i]) {
			matched = append(matched, working[i])
		}
	}
	ranker.Sort(matched, c.Sort)
	return paginate(matched, c)
}

// searchStage narrows the catalog to products containing every search
// token. The returned slice may alias the catalog and must not be modified.
func searchStage(cat Catalog, c criteria.Criteria) []catalog.Product {
	products := cat.Products()
	if !c.HasSearch() {
		return products
	}
	positions := cat.SearchIndex().SearchPositions(c.Search)
	hits := make([]catalog.Product, len(positions))
	for i, pos := range positions {
		hits[i] = products[pos]
	}
	return hits
}

func paginate(matched []catalog.Product, c criteria.Criteria) Page {
	page, limit := c.Window()
	total := len(matched)
	totalPages := 0
	if total > 0 {
		totalPages = (total-1)/limit + 1
	}
	result := Page{
		Items:      []catalog.Product{},
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
	if page-1 >= totalPages {
		return result
	}
	start := (page - 1) * limit
	end := start + min(limit, total-start)
	result.Items = matched[start:end]
	return result
}
