package clustering

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
	"catcluster/internal/distance"
)

// MatrixKind tags what the rows of an Input matrix mean.
type MatrixKind int

const (
	// FeatureMatrix holds one feature vector per row
	FeatureMatrix MatrixKind = iota
	// PrecomputedMatrix holds pairwise distances (or kernel values) between rows
	PrecomputedMatrix
)

func (k MatrixKind) String() string {
	switch k {
	case FeatureMatrix:
		return "features"
	case PrecomputedMatrix:
		return "precomputed"
	default:
		return fmt.Sprintf("MatrixKind(%d)", int(k))
	}
}

// Metric labels passed alongside the matrix
const (
	MetricEuclidean   = "euclidean"
	MetricPrecomputed = "precomputed"
)

// Params carries algorithm hyperparameters. Each backend reads only the
// fields it needs.
type Params struct {
	K             int     // Number of clusters
	Eps           float64 // DBSCAN neighborhood radius
	MinSamples    int     // DBSCAN core point threshold (self included)
	TopLevel      int     // Cover tree top level, radius 2^TopLevel
	RBFSigma      float64 // Spectral affinity width for feature input
	MaxIterations int     // K-means iteration cap
	Seed          int64   // Seed for randomized initialization
}

// Input is the uniform call contract for every backend.
type Input struct {
	Matrix mat.Matrix
	Kind   MatrixKind
	Metric string
	Params Params
}

// Backend clusters an Input into one label per row; -1 marks noise.
type Backend interface {
	Name() core.Algorithm
	Fit(ctx context.Context, in Input) (core.ClusterLabeling, error)
}

// Validate checks the matrix against its kind and metric label.
func (in Input) Validate() error {
	if in.Matrix == nil {
		return core.Validationf("input matrix is nil")
	}
	r, c := in.Matrix.Dims()
	if r == 0 || c == 0 {
		return core.Validationf("input matrix is empty")
	}
	switch in.Kind {
	case FeatureMatrix:
		if in.Metric != MetricEuclidean {
			return core.Validationf("feature input requires metric %q, got %q", MetricEuclidean, in.Metric)
		}
	case PrecomputedMatrix:
		if r != c {
			return core.Validationf("precomputed input must be square, got %dx%d", r, c)
		}
		if in.Metric != MetricPrecomputed {
			return core.Validationf("precomputed input requires metric %q, got %q", MetricPrecomputed, in.Metric)
		}
	default:
		return core.Validationf("unknown matrix kind %v", in.Kind)
	}
	return nil
}

// Len returns the number of data points in the input.
func (in Input) Len() int {
	r, _ := in.Matrix.Dims()
	return r
}

func requireK(in Input) (int, error) {
	k := in.Params.K
	if k <= 0 {
		return 0, core.Configurationf("k must be positive, got %d", k)
	}
	if n := in.Len(); k > n {
		return 0, core.Validationf("k=%d exceeds the number of data points (%d)", k, n)
	}
	return k, nil
}

// pairwise returns the distance between every pair of rows. Precomputed
// input is returned as-is.
func pairwise(ctx context.Context, in Input) (*mat.SymDense, error) {
	if in.Kind == PrecomputedMatrix {
		n := in.Len()
		m := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				m.SetSym(i, j, in.Matrix.At(i, j))
			}
		}
		return m, nil
	}

	rows := distance.ToRows(in.Matrix)
	vectors := make([]core.FeatureVector, len(rows))
	for i, row := range rows {
		vectors[i] = row
	}
	return distance.FormatPrecomputed(ctx, vectors, distance.EuclideanDistance, nil, distance.Options{})
}

// Registry resolves algorithm names to backends.
type Registry struct {
	backends map[core.Algorithm]Backend
}

// NewRegistry registers the given backends under their names.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[core.Algorithm]Backend, len(backends))}
	for _, b := range backends {
		r.backends[b.Name()] = b
	}
	return r
}

// NewDefaultRegistry registers every built-in backend.
func NewDefaultRegistry(kmeans KMeansConfig, log zerolog.Logger) *Registry {
	return NewRegistry(
		NewCoverTree(log),
		NewHierarchical(log),
		NewDBSCAN(log),
		NewKMeans(kmeans, log),
		NewSpectral(kmeans, log),
	)
}

// Get returns the backend registered for alg.
func (r *Registry) Get(alg core.Algorithm) (Backend, error) {
	b, ok := r.backends[alg]
	if !ok {
		return nil, core.Validationf("no backend registered for %q", alg)
	}
	return b, nil
}
