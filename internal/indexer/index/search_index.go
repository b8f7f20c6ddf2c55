// Package index implements the inverted token index over a product catalog.
// An index is built in one pass and never mutated afterwards, so it can be
// shared by any number of concurrent readers.
package index

import (
	"slices"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/catalog-query-engine/internal/indexer/tokenizer"
)

// SearchIndex maps normalised terms to the catalog positions containing them.
// It is immutable once built.
type SearchIndex struct {
	postings map[string]PostingList
	ids      []string
}

// Build indexes the name, description, brand and category of every product.
// Postings refer to positions in products, so search results come back in
// the order products were given.
func Build(products []catalog.Product) *SearchIndex {
	idx := &SearchIndex{
		postings: make(map[string]PostingList),
		ids:      make([]string, len(products)),
	}
	for pos, p := range products {
		idx.ids[pos] = p.ID
		blob := p.Name + " " + p.Description + " " + p.Brand + " " + p.Category
		for _, token := range tokenizer.Tokens(blob) {
			idx.postings[token] = append(idx.postings[token], pos)
		}
	}
	return idx
}

// SearchPositions returns the catalog positions of products containing
// every token of query. A query with no tokens matches nothing.
func (s *SearchIndex) SearchPositions(query string) PostingList {
	tokens := tokenizer.Tokens(query)
	if len(tokens) == 0 {
		return PostingList{}
	}
	lists := make([]PostingList, 0, len(tokens))
	for _, token := range tokens {
		list, ok := s.postings[token]
		if !ok {
			return PostingList{}
		}
		lists = append(lists, list)
	}
	slices.SortFunc(lists, func(a, b PostingList) int {
		return len(a) - len(b)
	})

	result := slices.Clone(lists[0])
	for _, list := range lists[1:] {
		result = intersect(result, list)
		if len(result) == 0 {
			break
		}
	}
	return result
}

// Search returns the IDs of products containing every token of query, in
// catalog order.
func (s *SearchIndex) Search(query string) []string {
	return s.resolve(s.SearchPositions(query))
}

// Postings returns the IDs of products containing token, which must already
// be normalised.
func (s *SearchIndex) Postings(token string) []string {
	return s.resolve(s.postings[token])
}

// Snapshot lists every term with its postings, sorted by term. Two indices
// built from the same products produce equal snapshots.
func (s *SearchIndex) Snapshot() []TermEntry {
	entries := make([]TermEntry, 0, len(s.postings))
	for term, list := range s.postings {
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: s.resolve(list),
		})
	}
	slices.SortFunc(entries, func(a, b TermEntry) int {
		return strings.Compare(a.Term, b.Term)
	})
	return entries
}

// Terms returns the number of distinct terms.
func (s *SearchIndex) Terms() int {
	return len(s.postings)
}

// DocCount returns the number of products indexed.
func (s *SearchIndex) DocCount() int {
	return len(s.ids)
}

func (s *SearchIndex) resolve(list PostingList) []string {
	ids := make([]string, len(list))
	for i, pos := range list {
		ids[i] = s.ids[pos]
	}
	return ids
}
