package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   \t\n ", nil},
		{"punctuation only", "!!!", nil},
		{"lower-cases", "Nike Air MAX", []string{"nike", "air", "max"}},
		{"punctuation splits", "SQL' Injection --", []string{"sql", "injection"}},
		{"collapses runs", "a--b   c", []string{"a", "b", "c"}},
		{"deduplicates", "run run RUN", []string{"run"}},
		{"keeps digits", "iPhone 15 Pro", []string{"iphone", "15", "pro"}},
		{"keeps emoji", "🔥 Hot Item!", []string{"🔥", "hot", "item"}},
		{"keeps skin tone", "👍🏽 great", []string{"👍🏽", "great"}},
		{"skin tone distinct", "👍 👍🏽", []string{"👍", "👍🏽"}},
		{"keeps non-latin", "Café Москва 東京", []string{"café", "москва", "東京"}},
		{"underscore separates", "snake_case", []string{"snake", "case"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokens(tt.input))
		})
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "", NormalizeKey(""))
	assert.Equal(t, "", NormalizeKey("   "))
	assert.Equal(t, "running shoes", NormalizeKey("  Running-Shoes "))
	assert.Equal(t, "home garden", NormalizeKey("Home & Garden"))
	assert.Equal(t, NormalizeKey("home garden"), NormalizeKey("HOME  /  GARDEN"))
}

func TestNormalize(t *testing.T) {
	set := Normalize("Running, running; RUNNING shoes")
	assert.Len(t, set, 2)
	assert.Contains(t, set, "running")
	assert.Contains(t, set, "shoes")

	assert.Empty(t, Normalize(""))
	assert.Empty(t, Normalize("?!.,"))
}

// Index-time and query-time normalisation must agree, otherwise filters
// silently stop matching.
func TestNormalizeKeyMatchesTokens(t *testing.T) {
	inputs := []string{"Footwear", "  footwear ", "Home & Garden", "🔥 Deals", "Ünïcödé"}
	for _, in := range inputs {
		tokens := Tokens(in)
		key := NormalizeKey(in)
		if len(tokens) == 0 {
			assert.Empty(t, key, in)
			continue
		}
		for _, tok := range tokens {
			assert.Contains(t, key, tok, in)
		}
		assert.Equal(t, key, NormalizeKey(key), "key must be a fixed point: %q", in)
	}
}
