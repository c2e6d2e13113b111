package clustering

import (
	"context"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
)

// DBSCAN is the density-based backend. It works on either representation;
// feature input is turned into euclidean distances first.
type DBSCAN struct {
	log zerolog.Logger
}

// NewDBSCAN creates a DBSCAN backend
func NewDBSCAN(log zerolog.Logger) *DBSCAN {
	return &DBSCAN{log: log}
}

// Name implements Backend
func (d *DBSCAN) Name() core.Algorithm { return core.AlgDBSCAN }

// Fit implements Backend. Labels start at 0; -1 is noise.
func (d *DBSCAN) Fit(ctx context.Context, in Input) (core.ClusterLabeling, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	eps, minSamples := in.Params.Eps, in.Params.MinSamples
	if !(eps > 0) {
		return nil, core.Configurationf("dbscan requires eps > 0, got %v", eps)
	}
	if minSamples <= 0 {
		return nil, core.Configurationf("dbscan requires min-samples > 0, got %d", minSamples)
	}

	dist, err := pairwise(ctx, in)
	if err != nil {
		return nil, err
	}
	labels := dbscan(dist, eps, minSamples)
	d.log.Debug().
		Int("clusters", labels.NumClusters()).
		Int("points", len(labels)).
		Msg("dbscan finished")
	return labels, nil
}

func dbscan(dist mat.Symmetric, eps float64, minSamples int) core.ClusterLabeling {
	n := dist.SymmetricDim()

	const undefined = -2

	labels := make(core.ClusterLabeling, n)
	for i := range labels {
		labels[i] = undefined
	}
	clusterID := -1

	for i := 0; i < n; i++ {
		if labels[i] != undefined {
			continue
		}

		neighbors := rangeQuery(dist, i, eps)
		if len(neighbors) < minSamples {
			labels[i] = core.NoiseLabel
			continue
		}

		// Start a new cluster.
		clusterID++
		labels[i] = clusterID

		seed := make([]int, 0, len(neighbors))
		for _, j := range neighbors {
			if j != i {
				seed = append(seed, j)
			}
		}

		for len(seed) > 0 {
			q := seed[0]
			seed = seed[1:]

			if labels[q] == core.NoiseLabel {
				// border point
				labels[q] = clusterID
			}
			if labels[q] != undefined {
				continue
			}
			labels[q] = clusterID

			qNeighbors := rangeQuery(dist, q, eps)
			if len(qNeighbors) >= minSamples {
				seed = append(seed, qNeighbors...)
			}
		}
	}
	return labels
}

// rangeQuery returns the indices within eps of point i, i included.
func rangeQuery(dist mat.Symmetric, i int, eps float64) []int {
	var neighbors []int
	for j := 0; j < dist.SymmetricDim(); j++ {
		if dist.At(i, j) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
