package executor

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
)

// FacetValue is one selectable value of a facet and the number of products
// that selecting it would show.
type FacetValue struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AvailabilityFacet is one stock state. Value is what a client sends back as
// the availability filter.
type AvailabilityFacet struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Facets describes the filter options still reachable from a query.
type Facets struct {
	Categories   []FacetValue        `json:"categories"`
	Brands       []FacetValue        `json:"brands"`
	Availability []AvailabilityFacet `json:"availability"`
	MinPrice     float64             `json:"minPrice"`
	MaxPrice     float64             `json:"maxPrice"`
}

// FacetedMetadata counts each facet dimension against the search and every
// active filter except that dimension's own. Selecting a category therefore
// leaves the other categories visible with their counts, while the brand
// counts shrink to the selected category. Price bounds are the range of the
// products left when the price filter is ignored. Sort and paging in c are
// ignored.
func FacetedMetadata(cat Catalog, c criteria.Criteria) Facets {
	m := newMatcher(c)
	working := searchStage(cat, c)

	categories := newFacetCounter()
	brands := newFacetCounter()
	var inStock, soldOut int
	var priceSeen bool
	var minPrice, maxPrice float64

	for i := range working {
		p := &working[i]
		inCategory := m.category(p)
		inBrand := m.brand(p)
		inPrice := m.price(p)
		inStockState := m.stock(p)

		if inBrand && inPrice && inStockState {
			categories.add(p.Category)
		}
		if inCategory && inPrice && inStockState {
			brands.add(p.Brand)
		}
		if inCategory && inBrand && inPrice {
			if p.InStock {
				inStock++
			} else {
				soldOut++
			}
		}
		if inCategory && inBrand && inStockState {
			if !priceSeen || p.Price < minPrice {
				minPrice = p.Price
			}
			if !priceSeen || p.Price > maxPrice {
				maxPrice = p.Price
			}
			priceSeen = true
		}
	}

	return Facets{
		Categories: categories.values(),
		Brands:     brands.values(),
		Availability: []AvailabilityFacet{
			{Name: "In Stock", Value: string(criteria.AvailabilityInStock), Count: inStock},
			{Name: "Sold Out", Value: string(criteria.AvailabilitySoldOut), Count: soldOut},
		},
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}
}

// facetCounter groups raw values by normalised key. The first raw spelling
// seen names the group.
type facetCounter struct {
	counts map[string]int
	names  map[string]string
}

func newFacetCounter() *facetCounter {
	return &facetCounter{
		counts: make(map[string]int),
		names:  make(map[string]string),
	}
}

func (f *facetCounter) add(raw string) {
	key := tokenizer.NormalizeKey(raw)
	if key == "" {
		return
	}
	if _, ok := f.names[key]; !ok {
		f.names[key] = strings.TrimSpace(raw)
	}
	f.counts[key]++
}

// values returns the groups ordered by key, which is the case-insensitive
// name order.
func (f *facetCounter) values() []FacetValue {
	keys := make([]string, 0, len(f.counts))
	for k := range f.counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	out := make([]FacetValue, len(keys))
	for i, k := range keys {
		out[i] = FacetValue{Name: f.names[k], Count: f.counts[k]}
	}
	return out
}
