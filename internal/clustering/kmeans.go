package clustering

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"catcluster/internal/core"
	"catcluster/internal/distance"
)

// KMeansConfig holds configuration for K-means clustering
type KMeansConfig struct {
	MaxIterations int     // Maximum number of iterations
	Tolerance     float64 // Stop once no centroid moves farther than this
}

// DefaultKMeansConfig returns sensible defaults for K-means clustering
func DefaultKMeansConfig() KMeansConfig {
	return KMeansConfig{
		MaxIterations: 300,
		Tolerance:     1e-6,
	}
}

// KMeans is the K-means backend. It needs coordinates and cannot run on a
// precomputed distance matrix.
type KMeans struct {
	config KMeansConfig
	log    zerolog.Logger
}

// NewKMeans creates a K-means backend
func NewKMeans(config KMeansConfig, log zerolog.Logger) *KMeans {
	return &KMeans{config: config, log: log}
}

// Name implements Backend
func (km *KMeans) Name() core.Algorithm { return core.AlgKMeans }

// Fit implements Backend
func (km *KMeans) Fit(ctx context.Context, in Input) (core.ClusterLabeling, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.Kind != FeatureMatrix {
		return nil, core.Compatibilityf("kmeans requires a feature representation, got %s", in.Kind)
	}
	k, err := requireK(in)
	if err != nil {
		return nil, err
	}

	config := km.config
	if in.Params.MaxIterations > 0 {
		config.MaxIterations = in.Params.MaxIterations
	}
	rng := rand.New(rand.NewSource(in.Params.Seed))

	assignments, _, err := runKMeans(ctx, distance.ToRows(in.Matrix), k, config, rng)
	if err != nil {
		return nil, err
	}
	km.log.Debug().Int("k", k).Int("points", len(assignments)).Msg("kmeans finished")
	return assignments, nil
}

// runKMeans executes Lloyd's algorithm from K-means++ seeds. It returns the
// label of every row and the final centroids.
func runKMeans(
	ctx context.Context,
	rows [][]float64,
	k int,
	config KMeansConfig,
	rng *rand.Rand,
) ([]int, [][]float64, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no rows to cluster")
	}
	if k <= 0 || k > len(rows) {
		return nil, nil, fmt.Errorf("invalid k: %d (must be 1-%d)", k, len(rows))
	}

	centroids := seedPlusPlus(rows, k, rng)
	labels := make([]int, len(rows))
	for i := range labels {
		labels[i] = -1
	}

	for iteration := 0; iteration < config.MaxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		if !assign(rows, centroids, labels) {
			break
		}

		next := recenter(rows, labels, centroids)
		shift := 0.0
		for c := range next {
			shift = math.Max(shift, floats.Distance(next[c], centroids[c], 2))
		}
		centroids = next
		if shift <= config.Tolerance {
			assign(rows, centroids, labels)
			break
		}
	}

	return labels, centroids, nil
}

// seedPlusPlus picks k initial centroids, each drawn with probability
// proportional to its squared distance from the centroids already chosen.
func seedPlusPlus(rows [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneRow(rows[rng.Intn(len(rows))]))

	// squared distance from every row to its closest chosen centroid
	closest := make([]float64, len(rows))
	for i, row := range rows {
		closest[i] = squaredEuclidean(row, centroids[0])
	}

	for len(centroids) < k {
		total := floats.Sum(closest)
		pick := len(rows) - 1
		if total == 0 {
			// every row sits on a centroid already
			pick = rng.Intn(len(rows))
		} else {
			target := rng.Float64() * total
			for i, d := range closest {
				target -= d
				if target <= 0 {
					pick = i
					break
				}
			}
		}

		chosen := cloneRow(rows[pick])
		centroids = append(centroids, chosen)
		for i, row := range rows {
			closest[i] = math.Min(closest[i], squaredEuclidean(row, chosen))
		}
	}
	return centroids
}

// assign moves every row to its nearest centroid and reports whether any
// label changed.
func assign(rows, centroids [][]float64, labels []int) bool {
	changed := false
	for i, row := range rows {
		best, bestDist := 0, math.Inf(1)
		for c, centroid := range centroids {
			if d := squaredEuclidean(row, centroid); d < bestDist {
				best, bestDist = c, d
			}
		}
		if labels[i] != best {
			labels[i] = best
			changed = true
		}
	}
	return changed
}

// recenter returns the mean of each cluster. A cluster left without rows
// keeps its previous centroid.
func recenter(rows [][]float64, labels []int, previous [][]float64) [][]float64 {
	dim := len(rows[0])
	sums := make([][]float64, len(previous))
	counts := make([]int, len(previous))
	for c := range sums {
		sums[c] = make([]float64, dim)
	}
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}
	for c := range sums {
		if counts[c] == 0 {
			copy(sums[c], previous[c])
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
	}
	return sums
}

func cloneRow(row []float64) []float64 {
	out := make([]float64, len(row))
	copy(out, row)
	return out
}

func squaredEuclidean(a, b []float64) float64 {
	d := floats.Distance(a, b, 2)
	return d * d
}
