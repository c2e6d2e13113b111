package clustering

import (
	"context"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
)

// maxCoverLevels bounds how many times the cover radius is halved below the
// top level.
const maxCoverLevels = 64

// CoverTree is density-based hierarchical clustering over a cover tree.
//
// Level L of the tree is a 2^L-net of the data: every point lies within 2^L
// of some center and centers are more than 2^L apart. Centers of a level are
// kept at every level below it. Descending from Params.TopLevel, the first
// level with at least K centers is cut; its K densest centers become the
// cluster seeds and every other center joins its nearest seed.
type CoverTree struct {
	log zerolog.Logger
}

// NewCoverTree creates a cover tree backend
func NewCoverTree(log zerolog.Logger) *CoverTree {
	return &CoverTree{log: log}
}

// Name implements Backend
func (c *CoverTree) Name() core.Algorithm { return core.AlgCoverTree }

// coverLevel is one cut of the tree.
type coverLevel struct {
	level   int
	centers []int // point indices
	owner   []int // point -> position in centers
	density []int // position in centers -> owned points
}

// Fit implements Backend
func (c *CoverTree) Fit(ctx context.Context, in Input) (core.ClusterLabeling, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	k, err := requireK(in)
	if err != nil {
		return nil, err
	}
	dist, err := pairwise(ctx, in)
	if err != nil {
		return nil, err
	}

	cut, err := c.cut(ctx, dist, in.Params.TopLevel, k)
	if err != nil {
		return nil, err
	}

	// seeds: the k densest centers, earlier centers win ties
	order := make([]int, len(cut.centers))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return cut.density[order[a]] > cut.density[order[b]]
	})
	if len(order) > k {
		order = order[:k]
	}

	centerLabel := make([]int, len(cut.centers))
	for i := range centerLabel {
		centerLabel[i] = -1
	}
	for label, pos := range order {
		centerLabel[pos] = label
	}
	for pos, center := range cut.centers {
		if centerLabel[pos] >= 0 {
			continue
		}
		best, bestDist := 0, math.Inf(1)
		for label, seedPos := range order {
			if d := dist.At(center, cut.centers[seedPos]); d < bestDist {
				best, bestDist = label, d
			}
		}
		centerLabel[pos] = best
	}

	labels := make(core.ClusterLabeling, len(cut.owner))
	for p, pos := range cut.owner {
		labels[p] = centerLabel[pos]
	}

	c.log.Debug().
		Int("k", k).
		Int("level", cut.level).
		Int("centers", len(cut.centers)).
		Msg("cover tree clustering finished")
	return labels, nil
}

// cut descends from topLevel until a level has at least k centers, every
// point is a center, or the depth bound is reached.
func (c *CoverTree) cut(ctx context.Context, dist mat.Symmetric, topLevel, k int) (*coverLevel, error) {
	n := dist.SymmetricDim()
	centers := []int{0}
	isCenter := make([]bool, n)
	isCenter[0] = true

	level := topLevel
	for depth := 0; ; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		radius := math.Ldexp(1, level)
		for p := 0; p < n; p++ {
			if isCenter[p] {
				continue
			}
			covered := false
			for _, center := range centers {
				if dist.At(p, center) <= radius {
					covered = true
					break
				}
			}
			if !covered {
				centers = append(centers, p)
				isCenter[p] = true
			}
		}

		if len(centers) >= k || len(centers) == n || depth >= maxCoverLevels {
			break
		}
		level--
	}

	cut := &coverLevel{
		level:   level,
		centers: centers,
		owner:   make([]int, n),
		density: make([]int, len(centers)),
	}
	for p := 0; p < n; p++ {
		best, bestDist := 0, math.Inf(1)
		for pos, center := range centers {
			if d := dist.At(p, center); d < bestDist {
				best, bestDist = pos, d
			}
		}
		cut.owner[p] = best
		cut.density[best]++
	}
	return cut, nil
}
