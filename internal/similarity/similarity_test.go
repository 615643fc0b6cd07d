package similarity

import "testing"

// --- Tokenize ---

func TestTokenize_DropsStopWordsAndShortTokens(t *testing.T) {
	got := Tokenize("The cache should be invalidated on a write")
	for _, banned := range []string{"the", "should", "be", "on", "a"} {
		if got[banned] {
			t.Errorf("Tokenize kept stop word %q", banned)
		}
	}
	for _, want := range []string{"cache", "invalidated", "write"} {
		if !got[want] {
			t.Errorf("Tokenize missing keyword %q", want)
		}
	}
}

func TestTokenize_PunctuationSeparates(t *testing.T) {
	hyphenated := Tokenize("race-condition in startup")
	spaced := Tokenize("race condition in startup")
	if len(hyphenated) != len(spaced) {
		t.Fatalf("hyphenated = %v, spaced = %v, want identical token sets", hyphenated, spaced)
	}
	for w := range spaced {
		if !hyphenated[w] {
			t.Errorf("token %q missing from hyphenated form", w)
		}
	}
}

func TestTokenize_Empty(t *testing.T) {
	if got := Tokenize(""); len(got) != 0 {
		t.Errorf("Tokenize(\"\") = %v, want empty", got)
	}
}

// --- Jaccard ---

func TestJaccard_Identical(t *testing.T) {
	a := Tokenize("retry logic misses backoff")
	if got := Jaccard(a, a); got != 1.0 {
		t.Errorf("Jaccard(a, a) = %v, want 1.0", got)
	}
}

func TestJaccard_Disjoint(t *testing.T) {
	a := Tokenize("database connection pooling")
	b := Tokenize("markdown renderer crash")
	if got := Jaccard(a, b); got != 0 {
		t.Errorf("Jaccard disjoint = %v, want 0", got)
	}
}

func TestJaccard_EmptySetsScoreZero(t *testing.T) {
	if got := Jaccard(map[string]bool{}, map[string]bool{}); got != 0 {
		t.Errorf("Jaccard(empty, empty) = %v, want 0", got)
	}
}

func TestJaccard_PartialOverlap(t *testing.T) {
	a := Tokenize("timeout handling missing retries")
	b := Tokenize("timeout handling needs jitter")
	got := Jaccard(a, b)
	// 2 common (timeout, handling) over 6 total distinct words.
	want := 2.0 / 6.0
	if got != want {
		t.Errorf("Jaccard = %v, want %v", got, want)
	}
}

// --- Score ---

func TestScore_Symmetric(t *testing.T) {
	a := "add structured logging to worker pool"
	b := "worker pool lacks structured logging"
	if Score(a, b) != Score(b, a) {
		t.Error("Score is not symmetric")
	}
}
