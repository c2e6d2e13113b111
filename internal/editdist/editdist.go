// Package editdist is the alternate distance source: a unit-cost edit
// distance between two users' category trees.
package editdist

import (
	"catcluster/internal/core"
)

// Tree is the set of category nodes a user touches, each node identified by
// its root-to-node path. Every prefix of a member path is also a member.
type Tree map[string]struct{}

// BuildTree collects every node on every category path of the profile.
func BuildTree(profile core.UserProfile) Tree {
	tree := make(Tree)
	for _, path := range profile.PathUnion() {
		for i := 1; i <= len(path); i++ {
			tree[path[:i].Key()] = struct{}{}
		}
	}
	return tree
}

// Size returns the number of nodes, the implicit root excluded.
func (t Tree) Size() int {
	return len(t)
}

// TreeDistance returns the cost of turning a into b with unit-cost node
// insertions and deletions: |a| + |b| - 2|a ∩ b|. Both trees are closed
// under prefixes, so the intersection is their largest common top-down
// subtree and the value is a metric.
func TreeDistance(a, b Tree) float64 {
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	common := 0
	for key := range small {
		if _, ok := large[key]; ok {
			common++
		}
	}
	return float64(len(a) + len(b) - 2*common)
}

// BuildTrees builds one tree per profile, preserving order.
func BuildTrees(profiles []core.UserProfile) []Tree {
	trees := make([]Tree, len(profiles))
	for i, profile := range profiles {
		trees[i] = BuildTree(profile)
	}
	return trees
}

// Metric is TreeDistance shaped as a distance.Func, for filling a matrix
// from trees built once per user.
func Metric(a, b Tree) (float64, error) {
	return TreeDistance(a, b), nil
}
