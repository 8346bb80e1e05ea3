// Package lexical provides term normalisation and keyword scoring for
// hybrid retrieval.
package lexical

import (
	"regexp"
	"strings"
)

var termPattern = regexp.MustCompile(`[\p{L}\p{N}_]+(?:['’]\p{L}+)*`)

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "but", "by", "for", "from", "has", "have",
		"if", "in", "into", "is", "it", "its", "of", "on", "or", "so", "than", "that", "the",
		"their", "then", "there", "these", "this", "to", "was", "were", "will", "with",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

// Terms lowercases text and returns its terms in order, without stopwords.
func Terms(text string) []string {
	raw := termPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, stop := stopwords[t]; stop {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Frequencies counts terms and returns the counts with the total.
func Frequencies(terms []string) (map[string]int, int) {
	freqs := make(map[string]int, len(terms))
	for _, t := range terms {
		freqs[t]++
	}
	return freqs, len(terms)
}

// Distinct returns the terms with duplicates removed, keeping first occurrence order.
func Distinct(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
