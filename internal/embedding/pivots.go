// Package embedding turns a user's category memberships into a fixed-length
// feature vector, one dimension per top-level category ("pivot").
package embedding

import (
	"sort"

	"catcluster/internal/categorytree"
	"catcluster/internal/core"
)

// Pivot is one top-level category and the trie of every path under it.
type Pivot struct {
	Label string
	Tree  *categorytree.Trie
}

// PivotEnsemble is the ordered, read-only set of pivot tries.
type PivotEnsemble struct {
	pivots []Pivot
}

// BuildPivots groups every path by its first label and inserts it into that
// group's trie. Pivots are ordered by label so the same input multiset always
// yields the same ensemble.
func BuildPivots(paths []core.CategoryPath, opts ...categorytree.Option) (*PivotEnsemble, error) {
	groups := make(map[string]*categorytree.Trie)
	for _, path := range paths {
		if err := path.Validate(); err != nil {
			return nil, err
		}
		tree, ok := groups[path.Root()]
		if !ok {
			tree = categorytree.New(opts...)
			groups[path.Root()] = tree
		}
		if err := tree.Insert(path); err != nil {
			return nil, err
		}
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	ensemble := &PivotEnsemble{pivots: make([]Pivot, 0, len(labels))}
	for _, label := range labels {
		tree := groups[label]
		tree.Freeze()
		ensemble.pivots = append(ensemble.pivots, Pivot{Label: label, Tree: tree})
	}
	return ensemble, nil
}

// NewPivotEnsemble wraps already-built tries. Building tries by hand is mostly
// useful in tests; BuildPivots is the normal entry point.
func NewPivotEnsemble(pivots ...Pivot) *PivotEnsemble {
	cp := make([]Pivot, len(pivots))
	copy(cp, pivots)
	for _, p := range cp {
		if p.Tree != nil {
			p.Tree.Freeze()
		}
	}
	return &PivotEnsemble{pivots: cp}
}

// Len returns the number of pivots, which is the embedding dimension.
func (e *PivotEnsemble) Len() int {
	if e == nil {
		return 0
	}
	return len(e.pivots)
}

// Pivots returns the pivots in ensemble order.
func (e *PivotEnsemble) Pivots() []Pivot {
	if e == nil {
		return nil
	}
	cp := make([]Pivot, len(e.pivots))
	copy(cp, e.pivots)
	return cp
}

// Labels returns the top-level label of every pivot in ensemble order.
func (e *PivotEnsemble) Labels() []string {
	labels := make([]string, e.Len())
	for i, p := range e.Pivots() {
		labels[i] = p.Label
	}
	return labels
}

func (e *PivotEnsemble) validate() error {
	if e.Len() == 0 {
		return core.Validationf("pivot ensemble is empty")
	}
	for i, p := range e.pivots {
		if p.Tree == nil {
			return core.Validationf("pivot %d (%q) has no category trie", i, p.Label)
		}
	}
	return nil
}
