package benchmark

import (
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/tokenizer"
)

var sampleTexts = map[string]string{
	"name":        "Nike Air Zoom Pegasus 40",
	"description": "Cushioned road-running shoe with a breathable mesh upper, React foam midsole and a durable rubber outsole for daily miles.",
	"long":        strings.Repeat("Waterproof, insulated trail jacket; packs into its own pocket. ", 40),
}

func BenchmarkTokens(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Tokens(text)
			}
		})
	}
}

func BenchmarkNormalize(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				_ = tokenizer.Normalize(text)
			}
		})
	}
}

func BenchmarkNormalizeKey(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = tokenizer.NormalizeKey("  Hydro Flask ")
	}
}
