package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/index"
)

func BenchmarkIndexBuild(b *testing.B) {
	for _, n := range []int{100, 1000, 10000} {
		products := generateProducts(n)
		b.Run(fmt.Sprintf("products_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = index.Build(products)
			}
		})
	}
}

func BenchmarkIndexSearch(b *testing.B) {
	idx := index.Build(generateProducts(10000))
	queries := []struct {
		name  string
		query string
	}{
		{"single_term", "running"},
		{"two_terms", "running shoe"},
		{"three_terms", "waterproof trail jacket"},
		{"no_match", "snowboard"},
	}
	for _, q := range queries {
		b.Run(q.name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = idx.Search(q.query)
			}
		})
	}
}
