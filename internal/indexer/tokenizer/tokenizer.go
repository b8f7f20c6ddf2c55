// Package tokenizer provides the text normalisation shared by the search
// index, the query path and facet value matching. It lower-cases input and
// splits on every rune that is not a letter, number, combining mark or
// pictographic symbol, so non-Latin scripts and emoji survive as tokens.
package tokenizer

import (
	"strings"
	"unicode"
)

// zeroWidthJoiner glues multi-rune emoji sequences together.
const zeroWidthJoiner = '\u200d'

// Fitzpatrick skin-tone modifiers are Sk, not So, but belong to the emoji
// they follow.
const (
	emojiModifierFirst = '\U0001F3FB'
	emojiModifierLast  = '\U0001F3FF'
)

// Tokens breaks text into lower-cased tokens in first-seen order with
// duplicates removed. Empty or separator-only input yields nil.
func Tokens(text string) []string {
	words := split(text)
	if len(words) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(words))
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		tokens = append(tokens, word)
	}
	return tokens
}

// Normalize returns the token set of text.
func Normalize(text string) map[string]struct{} {
	words := split(text)
	set := make(map[string]struct{}, len(words))
	for _, word := range words {
		set[word] = struct{}{}
	}
	return set
}

// NormalizeKey returns the normalised form of text as a single string with
// tokens joined by one space. It is the comparison key for exact-match
// filters such as category and brand.
func NormalizeKey(text string) string {
	return strings.Join(split(text), " ")
}

func split(text string) []string {
	if text == "" {
		return nil
	}
	return strings.FieldsFunc(strings.ToLower(text), isSeparator)
}

func isSeparator(r rune) bool {
	switch {
	case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
		return false
	case unicode.Is(unicode.So, r):
		return false
	case r == zeroWidthJoiner:
		return false
	case r >= emojiModifierFirst && r <= emojiModifierLast:
		return false
	}
	return true
}
