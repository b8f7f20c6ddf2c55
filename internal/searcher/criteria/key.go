package criteria

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/tokenizer"
)

// Fingerprint returns a stable hash of everything that affects the result of
// c. Criteria differing only in token order, case, punctuation or the order
// of category and brand values share a fingerprint.
func (c Criteria) Fingerprint() string {
	var b strings.Builder
	b.WriteString("q=")
	if c.HasSearch() {
		tokens := tokenizer.Tokens(c.Search)
		slices.Sort(tokens)
		b.WriteString(strings.Join(tokens, " "))
		// a non-blank query without tokens matches nothing, unlike no query
		if len(tokens) == 0 {
			b.WriteString("\x00")
		}
	}
	writeSet(&b, "|c=", normalizedSet(c.Categories))
	writeSet(&b, "|b=", normalizedSet(c.Brands))
	b.WriteString("|min=")
	writeBound(&b, c.MinPrice)
	b.WriteString("|max=")
	writeBound(&b, c.MaxPrice)
	b.WriteString("|a=")
	b.WriteString(string(c.Availability))
	b.WriteString("|s=")
	b.WriteString(string(c.Sort))
	page, limit := c.Window()
	b.WriteString("|p=")
	b.WriteString(strconv.Itoa(page))
	b.WriteString("|l=")
	b.WriteString(strconv.Itoa(limit))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// NormalizedCategories returns the distinct normalised category keys, sorted.
// A value normalising to "" is kept as the key "", so it only matches
// products whose category is itself blank or punctuation.
func (c Criteria) NormalizedCategories() []string {
	return normalizedSet(c.Categories)
}

// NormalizedBrands is NormalizedCategories for brands.
func (c Criteria) NormalizedBrands() []string {
	return normalizedSet(c.Brands)
}

func normalizedSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, tokenizer.NormalizeKey(v))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// writeSet prefixes the key count so a set holding only "" differs from no
// set at all.
func writeSet(b *strings.Builder, label string, keys []string) {
	b.WriteString(label)
	if len(keys) == 0 {
		return
	}
	b.WriteString(strconv.Itoa(len(keys)))
	b.WriteString(":")
	b.WriteString(strings.Join(keys, ","))
}

func writeBound(b *strings.Builder, v *float64) {
	if v == nil {
		return
	}
	b.WriteString(strconv.FormatFloat(*v, 'g', -1, 64))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
