package quality

import (
	"catcluster/internal/core"
)

// ClusteringQualityMetrics holds every quality index of one labeling. An
// index that could not be computed is nil and its reason is listed in Issues.
type ClusteringQualityMetrics struct {
	NumPoints   int                `json:"num_points"`
	NumClusters int                `json:"num_clusters"` // noise excluded
	NoisePoints int                `json:"noise_points"`
	Sizes       []core.ClusterSize `json:"sizes"`

	// Silhouette over the full pairwise matrix (range: -1 to 1, higher is better)
	Silhouette *float64 `json:"silhouette"`
	// Mean silhouette per label, noise included; nil when Silhouette is
	ClusterSilhouettes map[int]float64 `json:"cluster_silhouettes,omitempty"`
	// Summed per-cluster ordered-pair distance over cluster size (lower is tighter)
	MeanIntraClusterDistance *float64 `json:"mean_intra_cluster_distance"`
	// Agreement with ground truth (1 is identical, around 0 is chance)
	AdjustedRand *float64 `json:"adjusted_rand"`

	Issues []string `json:"issues,omitempty"`
}

// Value returns the index named by metric.
func (m *ClusteringQualityMetrics) Value(metric core.Metric) *float64 {
	switch metric {
	case core.MetricSilhouette:
		return m.Silhouette
	case core.MetricMeanIntraClusterDistance:
		return m.MeanIntraClusterDistance
	case core.MetricAdjustedRand:
		return m.AdjustedRand
	}
	return nil
}

func (m *ClusteringQualityMetrics) set(metric core.Metric, v float64) {
	switch metric {
	case core.MetricSilhouette:
		m.Silhouette = &v
	case core.MetricMeanIntraClusterDistance:
		m.MeanIntraClusterDistance = &v
	case core.MetricAdjustedRand:
		m.AdjustedRand = &v
	}
}
