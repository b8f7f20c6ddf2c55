package ranker

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/searcher/criteria"
	"github.com/stretchr/testify/assert"
)

func ids(products []catalog.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.ID
	}
	return out
}

func fixture() []catalog.Product {
	return []catalog.Product{
		{ID: "a", Price: 50, Rating: 4.0, PopularityScore: 1},
		{ID: "twin-a", Price: 10, Rating: 4.5, PopularityScore: 3},
		{ID: "twin-b", Price: 10, Rating: 4.5, PopularityScore: 3},
		{ID: "b", Price: 0, Rating: 5.0, PopularityScore: 0},
		{ID: "c", Price: 99.99, Rating: 4.0, PopularityScore: 7},
	}
}

func TestSort(t *testing.T) {
	tests := []struct {
		order criteria.SortOrder
		want  []string
	}{
		{criteria.SortNone, []string{"a", "twin-a", "twin-b", "b", "c"}},
		{criteria.SortPriceAsc, []string{"b", "twin-a", "twin-b", "a", "c"}},
		{criteria.SortPriceDesc, []string{"c", "a", "twin-a", "twin-b", "b"}},
		{criteria.SortRating, []string{"b", "twin-a", "twin-b", "a", "c"}},
		{criteria.SortPopular, []string{"c", "twin-a", "twin-b", "a", "b"}},
		{criteria.SortOrder("bogus"), []string{"a", "twin-a", "twin-b", "b", "c"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			products := fixture()
			Sort(products, tt.order)
			assert.Equal(t, tt.want, ids(products))
		})
	}
}

func TestSortIsStableAcrossRuns(t *testing.T) {
	for i := 0; i < 50; i++ {
		products := fixture()
		Sort(products, criteria.SortPriceAsc)
		assert.Equal(t, []string{"b", "twin-a", "twin-b", "a", "c"}, ids(products))
	}
}

func TestCompareNilForNone(t *testing.T) {
	assert.Nil(t, Compare(criteria.SortNone))
	assert.NotNil(t, Compare(criteria.SortRating))
}
