package categorytree

import (
	"errors"
	"math"
	"testing"

	"catcluster/internal/core"
)

func buildAB(t *testing.T, opts ...Option) *Trie {
	t.Helper()
	trie := New(opts...)
	for _, p := range []core.CategoryPath{{"A", "B"}, {"A", "C"}} {
		if err := trie.Insert(p); err != nil {
			t.Fatalf("Insert(%v) failed: %v", p, err)
		}
	}
	return trie
}

func TestInsertCreatesNodesOnce(t *testing.T) {
	trie := buildAB(t)

	if got := trie.NodeCount(); got != 3 {
		t.Fatalf("Expected 3 non-root nodes, got %d", got)
	}
	if n, _ := trie.BusinessCount(core.CategoryPath{"A", "B"}); n != 1 {
		t.Errorf("Expected B business count 1, got %d", n)
	}

	if err := trie.Insert(core.CategoryPath{"A", "B"}); err != nil {
		t.Fatalf("re-insert failed: %v", err)
	}
	if got := trie.NodeCount(); got != 3 {
		t.Errorf("Re-insert changed node count to %d", got)
	}
	if n, _ := trie.BusinessCount(core.CategoryPath{"A", "B"}); n != 2 {
		t.Errorf("Expected B business count 2 after re-insert, got %d", n)
	}
	if n, _ := trie.BusinessCount(core.CategoryPath{"A"}); n != 0 {
		t.Errorf("Expected A business count 0, got %d", n)
	}
}

func TestInsertRejectsInvalidPaths(t *testing.T) {
	trie := New()
	if err := trie.Insert(nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Expected ErrValidation for nil path, got %v", err)
	}
	if err := trie.Insert(core.CategoryPath{"A", ""}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Expected ErrValidation for empty label, got %v", err)
	}
	if trie.NodeCount() != 0 {
		t.Errorf("Failed insert must not create nodes, got %d", trie.NodeCount())
	}
}

func TestInsertAfterFreeze(t *testing.T) {
	trie := buildAB(t)
	trie.Freeze()
	if err := trie.Insert(core.CategoryPath{"A", "D"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Expected ErrValidation inserting into frozen trie, got %v", err)
	}
}

func TestScoreExactPath(t *testing.T) {
	trie := buildAB(t)

	// A has two children and no own businesses, B has one business
	got, err := trie.Score([]core.CategoryPath{{"A", "B"}})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(got-0.5) > 1e-12 {
		t.Errorf("Expected 0.5, got %f", got)
	}
}

func TestScoreSumsPaths(t *testing.T) {
	trie := buildAB(t)
	if err := trie.Insert(core.CategoryPath{"A", "C"}); err != nil {
		t.Fatal(err)
	}

	// B: 1/2 * 1/1, C: 1/2 * 1/2
	got, err := trie.Score([]core.CategoryPath{{"A", "B"}, {"A", "C"}})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Expected 0.75, got %f", got)
	}
}

func TestScoreOwnBusinessShare(t *testing.T) {
	trie := buildAB(t)
	if err := trie.Insert(core.CategoryPath{"A"}); err != nil {
		t.Fatal(err)
	}

	// A now has its own business: 1/(2+1) * 1/1
	got, _ := trie.Score([]core.CategoryPath{{"A", "B"}})
	if math.Abs(got-1.0/3.0) > 1e-12 {
		t.Errorf("Expected 1/3, got %f", got)
	}

	// single-label path only divides by the terminal count
	got, _ = trie.Score([]core.CategoryPath{{"A"}})
	if math.Abs(got-1.0) > 1e-12 {
		t.Errorf("Expected 1, got %f", got)
	}
}

func TestScoreUnmatchedAndZeroCount(t *testing.T) {
	trie := buildAB(t)

	got, err := trie.Score([]core.CategoryPath{{"X", "Y"}})
	if err != nil || got != 0 {
		t.Errorf("Expected 0 for disjoint path, got %f (%v)", got, err)
	}

	got, _ = trie.Score([]core.CategoryPath{{"A", "B", "Z"}})
	if got != 0 {
		t.Errorf("Expected 0 for path leaving the trie, got %f", got)
	}

	// A exists but carries no businesses
	got, _ = trie.Score([]core.CategoryPath{{"A"}})
	if got != 0 {
		t.Errorf("Expected 0 for zero-count terminal, got %f", got)
	}

	got, _ = trie.Score(nil)
	if got != 0 {
		t.Errorf("Expected 0 for empty path set, got %f", got)
	}
}

func TestScoreRejectsInvalidPath(t *testing.T) {
	trie := buildAB(t)
	if _, err := trie.Score([]core.CategoryPath{{"A", "B"}, {}}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Expected ErrValidation, got %v", err)
	}
}

// The historical routine discarded every matched contribution. The default
// trie accumulates them; the legacy option keeps the old numbers reproducible.
func TestScoreLegacyMatchDiscard(t *testing.T) {
	trie := buildAB(t, WithLegacyMatchDiscard())

	got, err := trie.Score([]core.CategoryPath{{"A", "B"}, {"A", "C"}})
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if got != 0 {
		t.Errorf("Legacy scoring should discard matched paths, got %f", got)
	}
}

func TestLabelAndDepth(t *testing.T) {
	trie := buildAB(t)
	if got := trie.Label(); got != "A" {
		t.Errorf("Expected label A, got %q", got)
	}
	if got := trie.Depth(); got != 2 {
		t.Errorf("Expected depth 2, got %d", got)
	}
	if err := trie.Insert(core.CategoryPath{"Z"}); err != nil {
		t.Fatal(err)
	}
	if got := trie.Label(); got != "" {
		t.Errorf("Expected empty label for multi-root trie, got %q", got)
	}
}
