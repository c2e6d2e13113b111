// Package distance builds the matrices the clustering backends consume: a
// feature matrix (one row per data point) or a fully materialized symmetric
// pairwise distance/kernel matrix.
package distance

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"catcluster/internal/core"
)

// Func computes the distance between two data points. It must be pure.
type Func[T any] func(a, b T) (float64, error)

// Kernel maps a distance onto the value stored in the matrix. It must be pure.
type Kernel func(distance float64) float64

// Identity is the default kernel.
func Identity(distance float64) float64 {
	return distance
}

// FormatFeatures stacks feature vectors into a matrix, one row per data
// point, preserving input order.
func FormatFeatures(vectors []core.FeatureVector) (*mat.Dense, error) {
	if len(vectors) == 0 {
		return nil, core.Validationf("cannot format an empty dataset")
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, core.Validationf("feature vectors must not be empty")
	}

	data := make([]float64, 0, len(vectors)*dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, core.Validationf("feature vector %d has length %d, want %d", i, len(v), dim)
		}
		data = append(data, v...)
	}
	return mat.NewDense(len(vectors), dim, data), nil
}

// Options tune FormatPrecomputed.
type Options struct {
	// Workers bounds the number of rows computed concurrently. Zero means GOMAXPROCS.
	Workers int
}

// FormatPrecomputed computes kernel(distanceFn(data[i], data[j])) for every
// unordered pair i<j and kernel(0) on the diagonal. The result is a SymDense,
// so M[i][j] == M[j][i] holds by construction whatever the parallelism. A nil
// kernel means Identity.
func FormatPrecomputed[T any](ctx context.Context, data []T, distanceFn Func[T], kernel Kernel, opts Options) (*mat.SymDense, error) {
	if distanceFn == nil {
		return nil, core.Validationf("a callable distance function is required")
	}
	if kernel == nil {
		kernel = Identity
	}
	n := len(data)
	if n == 0 {
		return nil, core.Validationf("cannot format an empty dataset")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	m := mat.NewSymDense(n, nil)
	diagonal := kernel(0)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			// each row writes only its own upper-triangle cells
			m.SetSym(i, i, diagonal)
			for j := i + 1; j < n; j++ {
				d, err := distanceFn(data[i], data[j])
				if err != nil {
					return err
				}
				m.SetSym(i, j, kernel(d))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return m, nil
}

// ToRows copies a matrix into a row-major slice of slices.
func ToRows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = make([]float64, c)
		for j := range rows[i] {
			rows[i][j] = m.At(i, j)
		}
	}
	return rows
}
