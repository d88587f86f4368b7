package textutil

import (
	"strings"
	"testing"
)

func TestCosineSimilarityIdenticalText(t *testing.T) {
	a := NewFingerprint("the speaker described three funnel experiments")
	b := NewFingerprint("the speaker described three funnel experiments")
	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Fatalf("expected ~1.0 for identical text, got %f", sim)
	}
}

func TestCosineSimilarityDisjointText(t *testing.T) {
	a := NewFingerprint("quarterly revenue grew sharply")
	b := NewFingerprint("penguins huddle against antarctic wind")
	if sim := CosineSimilarity(a, b); sim != 0 {
		t.Fatalf("expected 0 for disjoint text, got %f", sim)
	}
}

func TestCosineSimilarityNilSafe(t *testing.T) {
	if sim := CosineSimilarity(nil, NewFingerprint("text here")); sim != 0 {
		t.Fatalf("expected 0 for nil fingerprint, got %f", sim)
	}
	if NewFingerprint("a b c") != nil {
		t.Fatal("expected nil fingerprint for tokens shorter than 3 chars")
	}
}

func TestNearestSentenceEndPrefersClosestBoundary(t *testing.T) {
	text := "First sentence ends here. Second sentence is much longer than the first! Third."
	dot := strings.Index(text, ".") + 1
	got := NearestSentenceEnd(text, dot+5, 20)
	if got != dot {
		t.Fatalf("expected boundary at %d, got %d", dot, got)
	}
}

func TestNearestSentenceEndSkipsDecimals(t *testing.T) {
	text := "Revenue grew 3.5 times during the webinar period and then stabilized"
	pos := strings.Index(text, "3.5") + 2
	got := NearestSentenceEnd(text, pos, 5)
	if got != pos {
		t.Fatalf("decimal point treated as sentence end: got %d want %d", got, pos)
	}
}

func TestNearestSentenceEndOutOfRadius(t *testing.T) {
	text := strings.Repeat("x", 500) + ". tail"
	if got := NearestSentenceEnd(text, 100, 50); got != 100 {
		t.Fatalf("expected unchanged position, got %d", got)
	}
}

func TestNearestSentenceEndClampsBounds(t *testing.T) {
	if got := NearestSentenceEnd("short.", -5, 10); got != 0 {
		t.Fatalf("expected 0 for negative pos, got %d", got)
	}
	if got := NearestSentenceEnd("short.", 99, 10); got != 6 {
		t.Fatalf("expected len(text) for oversized pos, got %d", got)
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("One here. Two there! Three?  Trailing fragment")
	want := []string{"One here.", "Two there!", "Three?", "Trailing fragment"}
	if len(got) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sentence %d: got %q want %q", i, got[i], want[i])
		}
	}
}
