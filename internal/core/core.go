package core

import (
	"fmt"
	"sort"
	"strings"
)

// CategoryPath is an ordered root-to-leaf sequence of category labels.
type CategoryPath []string

// Validate reports whether the path is a non-empty sequence of non-empty labels.
func (p CategoryPath) Validate() error {
	if len(p) == 0 {
		return Validationf("category path must not be empty")
	}
	for i, label := range p {
		if label == "" {
			return Validationf("category path %v has an empty label at position %d", []string(p), i)
		}
	}
	return nil
}

// Key returns a string that uniquely identifies the path.
func (p CategoryPath) Key() string {
	return strings.Join(p, "\x1f")
}

// String renders the path as "A > B > C".
func (p CategoryPath) String() string {
	return strings.Join(p, " > ")
}

// Root returns the top-level label of the path.
func (p CategoryPath) Root() string {
	if len(p) == 0 {
		return ""
	}
	return p[0]
}

// UserProfile holds a user's business memberships.
type UserProfile struct {
	ID         string                    `json:"id"`         // User identifier
	Businesses map[string][]CategoryPath `json:"businesses"` // Business id -> every category path of that business
}

// PathUnion returns the distinct category paths across all of the user's
// businesses, in business id order.
func (u UserProfile) PathUnion() []CategoryPath {
	ids := make([]string, 0, len(u.Businesses))
	for id := range u.Businesses {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[string]bool)
	var union []CategoryPath
	for _, id := range ids {
		for _, path := range u.Businesses[id] {
			key := path.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			union = append(union, path)
		}
	}
	return union
}

// FeatureVector is a fixed-length embedding, one entry per pivot.
type FeatureVector []float64

// NoiseLabel marks a data point that no cluster claimed.
const NoiseLabel = -1

// ClusterLabeling maps dataset index to cluster id.
type ClusterLabeling []int

// Sizes returns the member count of every label, noise included, ordered by label.
func (l ClusterLabeling) Sizes() []ClusterSize {
	counts := make(map[int]int)
	for _, label := range l {
		counts[label]++
	}
	sizes := make([]ClusterSize, 0, len(counts))
	for label, n := range counts {
		sizes = append(sizes, ClusterSize{Label: label, Size: n})
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i].Label < sizes[j].Label })
	return sizes
}

// NumClusters counts distinct labels excluding noise.
func (l ClusterLabeling) NumClusters() int {
	seen := make(map[int]bool)
	for _, label := range l {
		if label != NoiseLabel {
			seen[label] = true
		}
	}
	return len(seen)
}

// ClusterSize is the population of one cluster label.
type ClusterSize struct {
	Label int `json:"label"`
	Size  int `json:"size"`
}

// DistanceKind selects the representation the pipeline builds.
type DistanceKind string

const (
	DistanceVec  DistanceKind = "vec"
	DistanceEdit DistanceKind = "edit"
)

// DistanceKinds lists every supported distance kind.
var DistanceKinds = []DistanceKind{DistanceVec, DistanceEdit}

// ParseDistanceKind validates a distance kind name.
func ParseDistanceKind(name string) (DistanceKind, error) {
	for _, kind := range DistanceKinds {
		if string(kind) == name {
			return kind, nil
		}
	}
	return "", Validationf("distance kind %q not supported (want one of %v)", name, DistanceKinds)
}

// Algorithm names a clustering backend.
type Algorithm string

const (
	AlgCoverTree    Algorithm = "covertree"
	AlgHierarchical Algorithm = "hierarchical"
	AlgDBSCAN       Algorithm = "dbscan"
	AlgKMeans       Algorithm = "kmeans"
	AlgSpectral     Algorithm = "spectral"
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{AlgCoverTree, AlgHierarchical, AlgDBSCAN, AlgKMeans, AlgSpectral}

// ParseAlgorithm validates an algorithm name.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, alg := range Algorithms {
		if string(alg) == name {
			return alg, nil
		}
	}
	return "", Validationf("algorithm %q not supported (want one of %v)", name, Algorithms)
}

// Metric names a quality index.
type Metric string

const (
	MetricMeanIntraClusterDistance Metric = "meanIntraClusterDistance"
	MetricSilhouette               Metric = "silhouette"
	MetricAdjustedRand             Metric = "adjustedRand"
)

// Metrics lists every supported quality index.
var Metrics = []Metric{MetricSilhouette, MetricMeanIntraClusterDistance, MetricAdjustedRand}

// ParseMetric validates a metric name. The short names of the historical
// harness (sc, mae, rand) are accepted as aliases.
func ParseMetric(name string) (Metric, error) {
	switch name {
	case "sc":
		return MetricSilhouette, nil
	case "mae":
		return MetricMeanIntraClusterDistance, nil
	case "rand":
		return MetricAdjustedRand, nil
	}
	for _, m := range Metrics {
		if string(m) == name {
			return m, nil
		}
	}
	return "", Validationf("metric %q not supported (want one of %v)", name, Metrics)
}

// Dataset is the ordered collection of data points a run was built from.
// Profiles is always populated; Vectors only for the vec representation.
type Dataset struct {
	Kind     DistanceKind    `json:"kind"`
	Profiles []UserProfile   `json:"profiles"`
	Vectors  []FeatureVector `json:"vectors,omitempty"`
}

// Len returns the number of data points.
func (d Dataset) Len() int {
	return len(d.Profiles)
}

// UserIDs returns the ids of every data point in order.
func (d Dataset) UserIDs() []string {
	ids := make([]string, len(d.Profiles))
	for i, p := range d.Profiles {
		ids[i] = p.ID
	}
	return ids
}

func (d Dataset) String() string {
	return fmt.Sprintf("Dataset{kind=%s, n=%d}", d.Kind, d.Len())
}
