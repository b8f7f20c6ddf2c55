package executor

import (
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
)

// matcher evaluates the four filter dimensions independently so facet
// counting can leave any one of them out.
type matcher struct {
	categories   map[string]struct{}
	brands       map[string]struct{}
	minPrice     *float64
	maxPrice     *float64
	availability criteria.Availability
}

func newMatcher(c criteria.Criteria) matcher {
	return matcher{
		categories:   keySet(c.NormalizedCategories()),
		brands:       keySet(c.NormalizedBrands()),
		minPrice:     c.MinPrice,
		maxPrice:     c.MaxPrice,
		availability: c.Availability,
	}
}

// keySet returns nil for no values so an empty selection means "any". A
// requested value that normalises to "" stays in the set as "" and matches
// only products whose own key is blank.
func keySet(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

func (m matcher) matches(p *catalog.Product) bool {
	return m.category(p) && m.brand(p) && m.price(p) && m.stock(p)
}

func (m matcher) category(p *catalog.Product) bool {
	if m.categories == nil {
		return true
	}
	_, ok := m.categories[tokenizer.NormalizeKey(p.Category)]
	return ok
}

func (m matcher) brand(p *catalog.Product) bool {
	if m.brands == nil {
		return true
	}
	_, ok := m.brands[tokenizer.NormalizeKey(p.Brand)]
	return ok
}

func (m matcher) price(p *catalog.Product) bool {
	if m.minPrice != nil && p.Price < *m.minPrice {
		return false
	}
	if m.maxPrice != nil && p.Price > *m.maxPrice {
		return false
	}
	return true
}

func (m matcher) stock(p *catalog.Product) bool {
	switch m.availability {
	case criteria.AvailabilityInStock:
		return p.InStock
	case criteria.AvailabilitySoldOut:
		return !p.InStock
	default:
		return true
	}
}
