package executor

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/stretchr/testify/assert"
)

func wardrobe() *staticCatalog {
	return newCatalog([]catalog.Product{
		{ID: "1", Name: "A", Category: "Shoes", Brand: "Nike", Price: 100, InStock: true},
		{ID: "2", Name: "B", Category: "Shoes", Brand: "Adidas", Price: 100, InStock: true},
		{ID: "3", Name: "C", Category: "Shirts", Brand: "Nike", Price: 50, InStock: true},
		{ID: "4", Name: "D", Category: "Hats", Brand: "Puma", Price: 20, InStock: false},
	})
}

func counts(values []FacetValue) map[string]int {
	out := make(map[string]int, len(values))
	for _, v := range values {
		out[v.Name] = v.Count
	}
	return out
}

func availability(facets Facets) map[string]int {
	out := make(map[string]int, len(facets.Availability))
	for _, a := range facets.Availability {
		out[a.Value] = a.Count
	}
	return out
}

func TestFacetsExcludeSelf(t *testing.T) {
	facets := FacetedMetadata(wardrobe(), criteria.Criteria{Categories: []string{"Shoes"}})

	assert.Equal(t, map[string]int{"Shoes": 2, "Shirts": 1, "Hats": 1}, counts(facets.Categories),
		"the category selection must not hide other categories")
	assert.Equal(t, map[string]int{"Nike": 1, "Adidas": 1}, counts(facets.Brands),
		"brands are narrowed by the category selection")
}

func TestFacetsBrandSelection(t *testing.T) {
	facets := FacetedMetadata(wardrobe(), criteria.Criteria{Brands: []string{"Nike"}})
	assert.Equal(t, map[string]int{"Nike": 2, "Adidas": 1, "Puma": 1}, counts(facets.Brands))
	assert.Equal(t, map[string]int{"Shoes": 1, "Shirts": 1}, counts(facets.Categories))
	assert.Equal(t, map[string]int{"in-stock": 2, "sold-out": 0}, availability(facets))

	puma := FacetedMetadata(wardrobe(), criteria.Criteria{Brands: []string{"Puma"}})
	assert.Equal(t, map[string]int{"in-stock": 0, "sold-out": 1}, availability(puma))
}

func TestFacetsAvailabilityExcludesSelf(t *testing.T) {
	facets := FacetedMetadata(wardrobe(), criteria.Criteria{Availability: criteria.AvailabilitySoldOut})
	assert.Equal(t, map[string]int{"in-stock": 3, "sold-out": 1}, availability(facets))
	assert.Equal(t, map[string]int{"Hats": 1}, counts(facets.Categories))
	assert.Equal(t, []AvailabilityFacet{
		{Name: "In Stock", Value: "in-stock", Count: 3},
		{Name: "Sold Out", Value: "sold-out", Count: 1},
	}, facets.Availability)
}

func TestFacetsPriceBounds(t *testing.T) {
	all := FacetedMetadata(wardrobe(), criteria.Criteria{})
	assert.Equal(t, 20.0, all.MinPrice)
	assert.Equal(t, 100.0, all.MaxPrice)

	// the requested range does not shrink the reported range
	narrowed := FacetedMetadata(wardrobe(), criteria.Criteria{MinPrice: criteria.Price(60), MaxPrice: criteria.Price(70)})
	assert.Equal(t, 20.0, narrowed.MinPrice)
	assert.Equal(t, 100.0, narrowed.MaxPrice)
	assert.Empty(t, narrowed.Categories, "no product lies inside 60..70")

	// other filters do
	nike := FacetedMetadata(wardrobe(), criteria.Criteria{Brands: []string{"Nike"}})
	assert.Equal(t, 50.0, nike.MinPrice)
	assert.Equal(t, 100.0, nike.MaxPrice)

	none := FacetedMetadata(wardrobe(), criteria.Criteria{Brands: []string{"Gucci"}})
	assert.Zero(t, none.MinPrice)
	assert.Zero(t, none.MaxPrice)
}

func TestFacetsPriceExcludedFromOthers(t *testing.T) {
	facets := FacetedMetadata(wardrobe(), criteria.Criteria{MaxPrice: criteria.Price(60)})
	assert.Equal(t, map[string]int{"Shirts": 1, "Hats": 1}, counts(facets.Categories))
	assert.Equal(t, map[string]int{"Nike": 1, "Puma": 1}, counts(facets.Brands))
}

func TestFacetsRespectSearch(t *testing.T) {
	cat := storefront()
	facets := FacetedMetadata(cat, criteria.Criteria{Search: "running", Categories: []string{"Footwear"}})
	assert.Equal(t, map[string]int{"Footwear": 3, "Electronics": 1}, counts(facets.Categories))
	assert.Equal(t, map[string]int{"Nike": 1, "Adidas": 1, "Generic": 1}, counts(facets.Brands))
	assert.Equal(t, 100.0, facets.MinPrice)
	assert.Equal(t, 150.0, facets.MaxPrice)
}

func TestFacetsGroupByNormalisedKey(t *testing.T) {
	cat := newCatalog([]catalog.Product{
		{ID: "1", Category: "Home & Garden", Brand: "ACME"},
		{ID: "2", Category: "home garden", Brand: "Acme"},
		{ID: "3", Category: "Toys", Brand: "   "},
		{ID: "4", Category: "", Brand: "Zeta"},
		{ID: "5", Category: "apparel", Brand: "beta"},
	})
	facets := FacetedMetadata(cat, criteria.Criteria{})
	assert.Equal(t, []FacetValue{
		{Name: "apparel", Count: 1},
		{Name: "Home & Garden", Count: 2},
		{Name: "Toys", Count: 1},
	}, facets.Categories, "sorted by key, named by first spelling, blanks omitted")
	assert.Equal(t, []FacetValue{
		{Name: "ACME", Count: 2},
		{Name: "beta", Count: 1},
		{Name: "Zeta", Count: 1},
	}, facets.Brands)
}

func TestFacetsAgreeWithListing(t *testing.T) {
	cat := storefront()
	base := criteria.Criteria{Search: "running", MaxPrice: criteria.Price(200)}
	facets := FacetedMetadata(cat, base)
	for _, fv := range facets.Categories {
		c := base
		c.Categories = []string{fv.Name}
		assert.Equal(t, fv.Count, SearchAndFilter(cat, c).Total, fv.Name)
	}
	for _, fv := range facets.Brands {
		c := base
		c.Brands = []string{fv.Name}
		assert.Equal(t, fv.Count, SearchAndFilter(cat, c).Total, fv.Name)
	}
}
