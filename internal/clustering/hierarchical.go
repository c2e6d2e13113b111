package clustering

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"catcluster/internal/core"
)

// Hierarchical is agglomerative clustering with average linkage. Clusters are
// merged until K remain.
type Hierarchical struct {
	log zerolog.Logger
}

// NewHierarchical creates an agglomerative backend
func NewHierarchical(log zerolog.Logger) *Hierarchical {
	return &Hierarchical{log: log}
}

// Name implements Backend
func (h *Hierarchical) Name() core.Algorithm { return core.AlgHierarchical }

// Merge records one level of the dendrogram.
type Merge struct {
	Left, Right int
	Distance    float64
}

// Fit implements Backend
func (h *Hierarchical) Fit(ctx context.Context, in Input) (core.ClusterLabeling, error) {
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

	n := dist.SymmetricDim()
	// working copy of inter-cluster distances, updated with Lance-Williams
	d := make([][]float64, n)
	for i := range d {
		d[i] = make([]float64, n)
		for j := range d[i] {
			d[i][j] = dist.At(i, j)
		}
	}
	size := make([]int, n)
	parent := make([]int, n)
	active := make([]bool, n)
	for i := range size {
		size[i] = 1
		parent[i] = i
		active[i] = true
	}

	var merges []Merge
	for remaining := n; remaining > k; remaining-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Find the two closest clusters.
		bi, bj, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d[i][j] < best {
					bi, bj, best = i, j, d[i][j]
				}
			}
		}
		if bi < 0 {
			// only infinite or NaN distances left
			break
		}

		// Merge cluster bj into cluster bi.
		for m := 0; m < n; m++ {
			if !active[m] || m == bi || m == bj {
				continue
			}
			avg := (float64(size[bi])*d[bi][m] + float64(size[bj])*d[bj][m]) / float64(size[bi]+size[bj])
			d[bi][m], d[m][bi] = avg, avg
		}
		size[bi] += size[bj]
		active[bj] = false
		parent[bj] = bi
		merges = append(merges, Merge{Left: bi, Right: bj, Distance: best})
	}

	labels := make(core.ClusterLabeling, n)
	ids := make(map[int]int)
	for i := 0; i < n; i++ {
		root := i
		for parent[root] != root {
			root = parent[root]
		}
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}

	h.log.Debug().Int("k", k).Int("merges", len(merges)).Msg("agglomerative clustering finished")
	return labels, nil
}
