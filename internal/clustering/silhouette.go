package clustering

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
)

// Silhouette returns the mean silhouette coefficient over all points.
//
// The noise label is treated as an ordinary cluster. A point alone in its
// cluster scores 0. The labeling must use at least 2 and at most n-1
// distinct labels.
func Silhouette(labels core.ClusterLabeling, distances mat.Symmetric) (float64, error) {
	n := len(labels)
	if distances == nil {
		return 0, core.Validationf("silhouette needs a distance matrix")
	}
	if dim := distances.SymmetricDim(); dim != n {
		return 0, core.Validationf("distance matrix is %dx%d but there are %d labels", dim, dim, n)
	}

	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	if len(counts) < 2 || len(counts) > n-1 {
		return 0, core.Validationf("silhouette needs 2 to %d distinct labels, got %d", n-1, len(counts))
	}

	var total float64
	for i := range labels {
		total += silhouetteScore(i, labels, counts, distances)
	}
	return total / float64(n), nil
}

// ClusterSilhouettes returns the mean silhouette coefficient per label.
func ClusterSilhouettes(labels core.ClusterLabeling, distances mat.Symmetric) (map[int]float64, error) {
	if _, err := Silhouette(labels, distances); err != nil {
		return nil, err
	}

	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	sums := make(map[int]float64)
	for i, label := range labels {
		sums[label] += silhouetteScore(i, labels, counts, distances)
	}
	means := make(map[int]float64, len(sums))
	for label, sum := range sums {
		means[label] = sum / float64(counts[label])
	}
	return means, nil
}

// silhouetteScore calculates the silhouette score for a single data point
// Returns a score between -1 and 1:
//
//	-1: Point likely in wrong cluster
//	 0: Point on the border between clusters
//	+1: Point well matched to its cluster
func silhouetteScore(pointIdx int, labels core.ClusterLabeling, counts map[int]int, distances mat.Symmetric) float64 {
	current := labels[pointIdx]
	if counts[current] == 1 {
		return 0
	}

	a := meanIntraClusterDistance(pointIdx, current, labels, distances)
	b := minInterClusterDistance(pointIdx, current, labels, distances)

	if d := math.Max(a, b); d > 0 {
		return (b - a) / d
	}
	return 0
}

// meanIntraClusterDistance calculates mean distance to other points in same cluster
func meanIntraClusterDistance(pointIdx, clusterLabel int, labels core.ClusterLabeling, distances mat.Symmetric) float64 {
	sum := 0.0
	count := 0
	for i, label := range labels {
		if i == pointIdx || label != clusterLabel {
			continue
		}
		sum += distances.At(pointIdx, i)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// minInterClusterDistance finds minimum mean distance to points in other clusters
func minInterClusterDistance(pointIdx, currentCluster int, labels core.ClusterLabeling, distances mat.Symmetric) float64 {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for i, label := range labels {
		if label == currentCluster {
			continue
		}
		sums[label] += distances.At(pointIdx, i)
		counts[label]++
	}

	minDistance := math.Inf(1)
	for label, sum := range sums {
		if mean := sum / float64(counts[label]); mean < minDistance {
			minDistance = mean
		}
	}
	return minDistance
}
