// Package similarity provides keyword-overlap text similarity used across
// the engines: consensus grouping, triage sub-clustering, and ADR topic
// matching all score closeness of short natural-language claims.
//
// The measure is deliberately simple — lowercase tokenization, stop-word
// filtering, Jaccard overlap on the resulting vocabulary sets. It is not a
// semantic index; the retrieval-grade vector lookup lives outside this
// module entirely.
package similarity

import "strings"

// stopWords are filtered out of every vocabulary before comparison.
// Function words contribute no signal to claim similarity and inflate
// overlap between unrelated findings.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "but": true, "by": true, "for": true, "from": true,
	"has": true, "have": true, "in": true, "into": true, "is": true,
	"it": true, "its": true, "of": true, "on": true, "or": true,
	"should": true, "that": true, "the": true, "this": true, "to": true,
	"was": true, "we": true, "were": true, "which": true, "will": true,
	"with": true, "would": true,
}

// Tokenize splits text into a lowercase keyword set, dropping stop words
// and tokens shorter than two characters. Punctuation is treated as a
// separator so "race-condition" and "race condition" tokenize alike.
func Tokenize(text string) map[string]bool {
	tokens := map[string]bool{}
	var b strings.Builder
	flush := func() {
		if b.Len() < 2 {
			b.Reset()
			return
		}
		word := b.String()
		b.Reset()
		if !stopWords[word] {
			tokens[word] = true
		}
	}
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		flush()
	}
	flush()
	return tokens
}

// Jaccard returns |a ∩ b| / |a ∪ b| for two keyword sets.
// Two empty sets are defined as similarity 0, not 1 — an empty claim
// matches nothing.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	common := 0
	for w := range a {
		if b[w] {
			common++
		}
	}
	union := len(a) + len(b) - common
	return float64(common) / float64(union)
}

// Score is a convenience wrapper: tokenize both texts and return their
// Jaccard overlap.
func Score(a, b string) float64 {
	return Jaccard(Tokenize(a), Tokenize(b))
}
