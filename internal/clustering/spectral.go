package clustering

import (
	"context"
	"math"
	"math/rand"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
	"catcluster/internal/distance"
)

// Spectral clusters the top-K eigenvectors of the normalized affinity matrix.
//
// Feature input is turned into an RBF affinity with Params.RBFSigma.
// Precomputed input is used as the affinity directly, so callers must pass
// kernel values (higher is more similar), not raw distances.
type Spectral struct {
	kmeans KMeansConfig
	log    zerolog.Logger
}

// NewSpectral creates a spectral backend; kmeans configures the final
// assignment step in the embedded space.
func NewSpectral(kmeans KMeansConfig, log zerolog.Logger) *Spectral {
	return &Spectral{kmeans: kmeans, log: log}
}

// Name implements Backend
func (s *Spectral) Name() core.Algorithm { return core.AlgSpectral }

// Fit implements Backend
func (s *Spectral) Fit(ctx context.Context, in Input) (core.ClusterLabeling, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	k, err := requireK(in)
	if err != nil {
		return nil, err
	}

	affinity, err := s.affinity(ctx, in)
	if err != nil {
		return nil, err
	}
	n := affinity.SymmetricDim()

	// L = D^-1/2 A D^-1/2
	invSqrtDeg := make([]float64, n)
	for i := 0; i < n; i++ {
		var deg float64
		for j := 0; j < n; j++ {
			deg += affinity.At(i, j)
		}
		if deg > 0 {
			invSqrtDeg[i] = 1 / math.Sqrt(deg)
		}
	}
	laplacian := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			laplacian.SetSym(i, j, invSqrtDeg[i]*affinity.At(i, j)*invSqrtDeg[j])
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(laplacian, true); !ok {
		return nil, core.Validationf("eigen-decomposition of the affinity matrix failed")
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Eigenvalues come back ascending; keep the k largest.
	embedded := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, k)
		var norm float64
		for c := 0; c < k; c++ {
			row[c] = vectors.At(i, n-1-c)
			norm += row[c] * row[c]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for c := range row {
				row[c] /= norm
			}
		}
		embedded[i] = row
	}

	config := s.kmeans
	if in.Params.MaxIterations > 0 {
		config.MaxIterations = in.Params.MaxIterations
	}
	assignments, _, err := runKMeans(ctx, embedded, k, config, rand.New(rand.NewSource(in.Params.Seed)))
	if err != nil {
		return nil, err
	}
	s.log.Debug().Int("k", k).Int("points", n).Msg("spectral clustering finished")
	return assignments, nil
}

func (s *Spectral) affinity(ctx context.Context, in Input) (mat.Symmetric, error) {
	if in.Kind == PrecomputedMatrix {
		return pairwise(ctx, in)
	}

	kernel, err := distance.NewRBFKernel(in.Params.RBFSigma)
	if err != nil {
		return nil, core.Configurationf("spectral clustering on features needs a valid rbf sigma: %v", err)
	}
	rows := distance.ToRows(in.Matrix)
	vectors := make([]core.FeatureVector, len(rows))
	for i, row := range rows {
		vectors[i] = row
	}
	return distance.FormatPrecomputed(ctx, vectors, distance.EuclideanDistance, kernel, distance.Options{})
}
