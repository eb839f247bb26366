// Package hanzi decomposes composite text into atomic content units:
// individual Han characters. Whitespace, punctuation, Latin letters and
// every other non-Han rune are excluded, so "你好, Alex!" yields 你 and
// 好 only. Extraction is deterministic and locale-independent.
package hanzi

import "unicode"

// IsHan reports whether the rune belongs to the Han script.
func IsHan(r rune) bool {
	return unicode.Is(unicode.Han, r)
}

// Extract returns the ordered Han characters in text, duplicates
// included.
func Extract(text string) []string {
	var tokens []string
	for _, r := range text {
		if IsHan(r) {
			tokens = append(tokens, string(r))
		}
	}
	return tokens
}

// Unique returns the distinct Han characters in text, in order of first
// appearance. Uniqueness is what drives the comprehension denominator.
func Unique(text string) []string {
	seen := make(map[string]struct{})
	var unique []string
	for _, token := range Extract(text) {
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}
	return unique
}

// Frequency returns how often each distinct Han character appears in
// text. Duplicates are counted here even though uniqueness drives the
// comprehension math, so callers can weight by occurrence when ranking.
func Frequency(text string) map[string]int {
	freq := make(map[string]int)
	for _, token := range Extract(text) {
		freq[token]++
	}
	return freq
}
