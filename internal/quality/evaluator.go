// Package quality scores a clustering of a dataset with the
// meanIntraClusterDistance, silhouette and adjustedRand indices.
package quality

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/clustering"
	"catcluster/internal/core"
	"catcluster/internal/distance"
	"catcluster/internal/editdist"
)

// Evaluator computes quality indices
type Evaluator struct {
	workers int
	log     zerolog.Logger
}

// NewEvaluator creates an evaluator; workers bounds the parallelism of
// pairwise matrix construction (0 means GOMAXPROCS).
func NewEvaluator(workers int, log zerolog.Logger) *Evaluator {
	return &Evaluator{workers: workers, log: log}
}

// pairDistance measures two data points by index.
type pairDistance func(i, j int) (float64, error)

// Evaluate computes one index. kind selects the distance that feeds it:
// euclidean over the dataset's vectors for vec, tree edit distance over the
// profiles for edit. truth is required only for adjustedRand.
func (e *Evaluator) Evaluate(
	ctx context.Context,
	dataset core.Dataset,
	labels core.ClusterLabeling,
	metric core.Metric,
	kind core.DistanceKind,
	truth []int,
) (float64, error) {
	if len(labels) != dataset.Len() {
		return 0, core.Validationf("%d labels for %d data points", len(labels), dataset.Len())
	}

	switch metric {
	case core.MetricAdjustedRand:
		if truth == nil {
			return 0, core.Validationf("adjustedRand requires ground truth labels")
		}
		return clustering.AdjustedRand(truth, labels)

	case core.MetricMeanIntraClusterDistance:
		dist, err := distanceFor(dataset, kind)
		if err != nil {
			return 0, err
		}
		return meanIntraClusterDistance(ctx, labels, dist)

	case core.MetricSilhouette:
		m, err := e.silhouetteDistances(ctx, dataset, kind)
		if err != nil {
			return 0, err
		}
		return clustering.Silhouette(labels, m)

	default:
		return 0, core.Validationf("metric %q not supported", metric)
	}
}

// EvaluateAll computes every index it can. Indices that fail are left nil
// and the failure is recorded as an issue; adjustedRand is left nil
// without an issue when truth is nil.
func (e *Evaluator) EvaluateAll(
	ctx context.Context,
	dataset core.Dataset,
	labels core.ClusterLabeling,
	kind core.DistanceKind,
	truth []int,
) (*ClusteringQualityMetrics, error) {
	if len(labels) != dataset.Len() {
		return nil, core.Validationf("%d labels for %d data points", len(labels), dataset.Len())
	}

	metrics := &ClusteringQualityMetrics{
		NumPoints:   len(labels),
		NumClusters: labels.NumClusters(),
		Sizes:       labels.Sizes(),
	}
	for _, label := range labels {
		if label == core.NoiseLabel {
			metrics.NoisePoints++
		}
	}

	for _, metric := range core.Metrics {
		if metric == core.MetricAdjustedRand && truth == nil {
			continue
		}
		var v float64
		var err error
		if metric == core.MetricSilhouette {
			v, metrics.ClusterSilhouettes, err = e.silhouettes(ctx, dataset, labels, kind)
		} else {
			v, err = e.Evaluate(ctx, dataset, labels, metric, kind, truth)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			metrics.Issues = append(metrics.Issues, fmt.Sprintf("%s: %v", metric, err))
			e.log.Warn().Err(err).Str("metric", string(metric)).Msg("quality index unavailable")
			continue
		}
		metrics.set(metric, v)
	}
	return metrics, nil
}

// silhouettes returns the overall and per-label silhouette from one matrix.
func (e *Evaluator) silhouettes(ctx context.Context, dataset core.Dataset, labels core.ClusterLabeling, kind core.DistanceKind) (float64, map[int]float64, error) {
	m, err := e.silhouetteDistances(ctx, dataset, kind)
	if err != nil {
		return 0, nil, err
	}
	overall, err := clustering.Silhouette(labels, m)
	if err != nil {
		return 0, nil, err
	}
	perLabel, err := clustering.ClusterSilhouettes(labels, m)
	if err != nil {
		return 0, nil, err
	}
	return overall, perLabel, nil
}

func (e *Evaluator) silhouetteDistances(ctx context.Context, dataset core.Dataset, kind core.DistanceKind) (*mat.SymDense, error) {
	dist, err := distanceFor(dataset, kind)
	if err != nil {
		return nil, err
	}
	return e.pairwise(ctx, dataset.Len(), dist)
}

func (e *Evaluator) pairwise(ctx context.Context, n int, dist pairDistance) (*mat.SymDense, error) {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return distance.FormatPrecomputed(ctx, indices, distance.Func[int](dist), nil, distance.Options{Workers: e.workers})
}

func distanceFor(dataset core.Dataset, kind core.DistanceKind) (pairDistance, error) {
	switch kind {
	case core.DistanceVec:
		vectors := dataset.Vectors
		if len(vectors) != dataset.Len() {
			return nil, core.Validationf("vec distance needs %d feature vectors, dataset has %d", dataset.Len(), len(vectors))
		}
		return func(i, j int) (float64, error) {
			return distance.EuclideanDistance(vectors[i], vectors[j])
		}, nil
	case core.DistanceEdit:
		trees := editdist.BuildTrees(dataset.Profiles)
		return func(i, j int) (float64, error) {
			return editdist.Metric(trees[i], trees[j])
		}, nil
	default:
		return nil, core.Validationf("distance kind %q not supported", kind)
	}
}

// meanIntraClusterDistance sums, for every non-noise cluster, the distance
// over all ordered pairs of its members (self-pairs included) divided by the
// cluster size. Each unordered pair is counted twice and the normalization is
// by size, not size squared; results are comparable only with each other.
func meanIntraClusterDistance(ctx context.Context, labels core.ClusterLabeling, dist pairDistance) (float64, error) {
	members := make(map[int][]int)
	for i, label := range labels {
		if label != core.NoiseLabel {
			members[label] = append(members[label], i)
		}
	}

	order := make([]int, 0, len(members))
	for label := range members {
		order = append(order, label)
	}
	sort.Ints(order)

	var total float64
	for _, label := range order {
		cluster := members[label]
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		var sum float64
		for _, i := range cluster {
			for _, j := range cluster {
				d, err := dist(i, j)
				if err != nil {
					return 0, err
				}
				sum += d
			}
		}
		total += sum / float64(len(cluster))
	}
	return total, nil
}
