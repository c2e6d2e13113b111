// Package categorytree implements the category prefix tree that accumulates
// business counts and scores a user's category paths against them.
package categorytree

import (
	"catcluster/internal/core"
)

const rootIndex = 0

// node lives in the trie's arena. Children and parent are arena indices;
// ownership runs strictly from the root downward.
type node struct {
	label         string
	parent        int // -1 for the root
	businessCount int
	children      map[string]int
}

// Trie is a prefix tree over category paths. It is mutable until Freeze is
// called and query-only afterwards.
type Trie struct {
	nodes         []node
	frozen        bool
	legacyDiscard bool
}

// Option configures a Trie.
type Option func(*Trie)

// WithLegacyMatchDiscard reproduces the historical scoring routine, whose
// "matched" flag was never set, so every fully matched path contributed zero.
// Only useful for reproducing old experiment logs.
func WithLegacyMatchDiscard() Option {
	return func(t *Trie) {
		t.legacyDiscard = true
	}
}

// New creates an empty trie holding only the root node.
func New(opts ...Option) *Trie {
	t := &Trie{
		nodes: []node{{label: "", parent: -1, children: make(map[string]int)}},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert walks the path from the root, creating missing nodes, and increments
// the business count of the node the path ends at.
func (t *Trie) Insert(path core.CategoryPath) error {
	if t.frozen {
		return core.Validationf("cannot insert %v into a frozen trie", path)
	}
	if err := path.Validate(); err != nil {
		return err
	}

	current := rootIndex
	for _, label := range path {
		next, ok := t.nodes[current].children[label]
		if !ok {
			next = len(t.nodes)
			t.nodes = append(t.nodes, node{
				label:    label,
				parent:   current,
				children: make(map[string]int),
			})
			t.nodes[current].children[label] = next
		}
		current = next
	}
	t.nodes[current].businessCount++
	return nil
}

// Freeze ends the build phase.
func (t *Trie) Freeze() {
	t.frozen = true
}

// Frozen reports whether the trie is read-only.
func (t *Trie) Frozen() bool {
	return t.frozen
}

// Score sums the similarity of every path in the set against the trie.
//
// For each path the walk starts below the root. Every visited node except the
// terminal one multiplies the running weight by 1/(children + hasOwnBusinesses);
// the terminal node divides it by its business count. A path that leaves the
// trie, or ends at a node without businesses, contributes zero.
func (t *Trie) Score(paths []core.CategoryPath) (float64, error) {
	for _, path := range paths {
		if err := path.Validate(); err != nil {
			return 0, err
		}
	}

	var sum float64
	for _, path := range paths {
		weight, matched := t.pathWeight(path)
		if !matched || t.legacyDiscard {
			continue
		}
		sum += weight
	}
	return sum, nil
}

func (t *Trie) pathWeight(path core.CategoryPath) (float64, bool) {
	weight := 1.0
	current := rootIndex
	last := len(path) - 1

	for i, label := range path {
		next, ok := t.nodes[current].children[label]
		if !ok {
			return 0, false
		}
		n := &t.nodes[next]

		if i < last {
			ownShare := 0
			if n.businessCount != 0 {
				ownShare = 1
			}
			// a non-terminal node always has the next label as a child
			weight *= 1.0 / float64(len(n.children)+ownShare)
		} else {
			if n.businessCount == 0 {
				return 0, false
			}
			weight *= 1.0 / float64(n.businessCount)
		}
		current = next
	}
	return weight, true
}

// Label returns the label of the trie's single top-level node, or "" when the
// trie has zero or several top-level labels.
func (t *Trie) Label() string {
	root := t.nodes[rootIndex]
	if len(root.children) != 1 {
		return ""
	}
	for label := range root.children {
		return label
	}
	return ""
}

// NodeCount returns the number of non-root nodes.
func (t *Trie) NodeCount() int {
	return len(t.nodes) - 1
}

// BusinessCount returns the business count of the node at the end of path.
func (t *Trie) BusinessCount(path core.CategoryPath) (int, bool) {
	current := rootIndex
	for _, label := range path {
		next, ok := t.nodes[current].children[label]
		if !ok {
			return 0, false
		}
		current = next
	}
	if current == rootIndex {
		return 0, false
	}
	return t.nodes[current].businessCount, true
}

// Depth returns the length of the longest root-to-node path.
func (t *Trie) Depth() int {
	depth := 0
	for i := 1; i < len(t.nodes); i++ {
		d := 0
		for p := i; p != rootIndex; p = t.nodes[p].parent {
			d++
		}
		if d > depth {
			depth = d
		}
	}
	return depth
}
