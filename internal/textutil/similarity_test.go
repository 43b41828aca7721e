package textutil_test

import (
	"math"
	"testing"

	"clipdex/internal/textutil"
)

func TestCosineSimilarityIdenticalText(t *testing.T) {
	a := textutil.NewFingerprint("welcome everyone to the quarterly planning review")
	b := textutil.NewFingerprint("welcome everyone to the quarterly planning review")
	if got := textutil.CosineSimilarity(a, b); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical text similarity = %v", got)
	}
}

func TestCosineSimilarityDisjointText(t *testing.T) {
	a := textutil.NewFingerprint("kubernetes cluster networking deep dive")
	b := textutil.NewFingerprint("sourdough bread fermentation basics")
	if got := textutil.CosineSimilarity(a, b); got != 0 {
		t.Fatalf("disjoint text similarity = %v", got)
	}
}

func TestCosineSimilarityNilFingerprint(t *testing.T) {
	a := textutil.NewFingerprint("some transcript text here")
	if got := textutil.CosineSimilarity(a, nil); got != 0 {
		t.Fatalf("nil fingerprint similarity = %v", got)
	}
	if fp := textutil.NewFingerprint("a an to"); fp != nil {
		t.Fatal("short tokens should produce nil fingerprint")
	}
}

func TestTokenizeFiltersShortTokens(t *testing.T) {
	tokens := textutil.Tokenize("Go is a fun programming language")
	for _, token := range tokens {
		if len(token) < 3 {
			t.Fatalf("short token survived: %q", token)
		}
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Quarterly Planning Review": "quarterly-planning-review",
		"  Weird__name!!  ":         "weird-name",
		"":                          "untitled",
	}
	for input, want := range cases {
		if got := textutil.Slug(input); got != want {
			t.Fatalf("Slug(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	if got := textutil.SanitizeFileName(`a/b:c*d?.mp4`); got != "a-b-c-d.mp4" {
		t.Fatalf("SanitizeFileName = %q", got)
	}
}
