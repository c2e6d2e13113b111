package distance

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"catcluster/internal/core"
)

// EuclideanDistance returns sqrt(sum((v1-v2)^2)).
func EuclideanDistance(v1, v2 core.FeatureVector) (float64, error) {
	if len(v1) != len(v2) {
		return 0, core.Validationf("vector shapes differ: %d vs %d", len(v1), len(v2))
	}
	if len(v1) == 0 {
		return 0, nil
	}
	return floats.Distance(v1, v2, 2), nil
}

// RBFKernel returns exp(-distance^2 / (2*sigma^2)).
func RBFKernel(distance, sigma float64) (float64, error) {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return 0, core.Validationf("rbf sigma must be a positive finite real, got %v", sigma)
	}
	return math.Exp(-(distance * distance) / (2 * sigma * sigma)), nil
}

// NewRBFKernel validates sigma once and returns the kernel as a Kernel.
func NewRBFKernel(sigma float64) (Kernel, error) {
	if _, err := RBFKernel(0, sigma); err != nil {
		return nil, err
	}
	denom := 2 * sigma * sigma
	return func(distance float64) float64 {
		return math.Exp(-(distance * distance) / denom)
	}, nil
}
