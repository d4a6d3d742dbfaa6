// Package lexical scores the surface overlap between two pieces of text. It is
// deliberately small: a term-frequency cosine and a token-set Jaccard, both
// over the same normalised tokens, with no stemming, stop words, or vectors.
package lexical

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinTokenLen is the shortest token, in runes, that takes part in scoring.
const MinTokenLen = 2

var separators = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokens lowercases s, splits it on runs of anything that is not a letter or
// a digit, and drops tokens shorter than MinTokenLen runes.
func Tokens(s string) []string {
	fields := strings.Fields(separators.ReplaceAllString(strings.ToLower(s), " "))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTokenLen {
			out = append(out, f)
		}
	}
	return out
}

// TokenSet is the distinct tokens of a text.
type TokenSet map[string]struct{}

// NewTokenSet returns the distinct Tokens of s.
func NewTokenSet(s string) TokenSet {
	set := make(TokenSet)
	for _, t := range Tokens(s) {
		set[t] = struct{}{}
	}
	return set
}

// Similarity is the cosine of the term-frequency vectors of a and b, in
// [0,1]. It is 0 when either side has no tokens.
func Similarity(a, b string) float64 {
	ta, tb := termFreq(a), termFreq(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for tok, ca := range ta {
		normA += ca * ca
		if cb, ok := tb[tok]; ok {
			dot += ca * cb
		}
	}
	for _, cb := range tb {
		normB += cb * cb
	}

	// Counts are small integers, so sqrt(normA*normB) is exact for a == b
	// and identical texts score exactly 1.
	return clamp01(dot / math.Sqrt(normA*normB))
}

// Jaccard is |a∩b| / |a∪b|, and 0 when both sets are empty.
func Jaccard(a, b TokenSet) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func termFreq(s string) map[string]float64 {
	tf := make(map[string]float64)
	for _, t := range Tokens(s) {
		tf[t]++
	}
	return tf
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
