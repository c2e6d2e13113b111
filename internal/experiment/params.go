package experiment

import (
	"catcluster/internal/clustering"
	"catcluster/internal/config"
	"catcluster/internal/core"
)

// The structs below name every option a combination needs. Each one is
// validated once, before any data is loaded or any backend is called.

type clusterCountParams struct {
	K int `mapstructure:"k" validate:"required,gt=0"`
}

type embeddingParams struct {
	Sigma *float64 `mapstructure:"embedding.sigma" validate:"required,gt=0"`
}

type kernelParams struct {
	RBFSigma *float64 `mapstructure:"kernel.rbf_sigma" validate:"required,gt=0"`
}

type dbscanParams struct {
	Eps        *float64 `mapstructure:"dbscan.eps" validate:"required,gt=0"`
	MinSamples *int     `mapstructure:"dbscan.min_samples" validate:"required,gt=0"`
}

type vecCoverTreeParams struct {
	TopLevel *int `mapstructure:"covertree.vec_top_level" validate:"required"`
}

type editCoverTreeParams struct {
	TopLevel *int `mapstructure:"covertree.edit_top_level" validate:"required"`
}

// Plan is a validated algorithm/distance combination, ready to run.
type Plan struct {
	Algorithm core.Algorithm
	Distance  core.DistanceKind
	Params    clustering.Params
	Sigma     float64 // embedding sigma, vec only
	RBFSigma  float64 // kernel applied to edit distances, spectral only
}

// NewPlan checks names, then compatibility, then the options the pair needs.
func NewPlan(alg, dist string, k int, cfg *config.Config) (Plan, error) {
	if cfg == nil {
		return Plan{}, core.Configurationf("no configuration loaded")
	}
	algorithm, err := core.ParseAlgorithm(alg)
	if err != nil {
		return Plan{}, err
	}
	kind, err := core.ParseDistanceKind(dist)
	if err != nil {
		return Plan{}, err
	}
	if algorithm == core.AlgKMeans && kind == core.DistanceEdit {
		return Plan{}, core.Compatibilityf("edit distance is not supported by kmeans, which needs feature vectors")
	}

	checks := []any{clusterCountParams{K: k}}
	if kind == core.DistanceVec {
		checks = append(checks, embeddingParams{Sigma: cfg.Embedding.Sigma})
	}
	switch algorithm {
	case core.AlgDBSCAN:
		checks = append(checks, dbscanParams{Eps: cfg.DBSCAN.Eps, MinSamples: cfg.DBSCAN.MinSamples})
	case core.AlgSpectral:
		checks = append(checks, kernelParams{RBFSigma: cfg.Kernel.RBFSigma})
	case core.AlgCoverTree:
		if kind == core.DistanceVec {
			checks = append(checks, vecCoverTreeParams{TopLevel: cfg.CoverTree.VecTopLevel})
		} else {
			checks = append(checks, editCoverTreeParams{TopLevel: cfg.CoverTree.EditTopLevel})
		}
	}
	for _, params := range checks {
		if err := config.ValidateStruct(params); err != nil {
			return Plan{}, err
		}
	}

	plan := Plan{
		Algorithm: algorithm,
		Distance:  kind,
		Params: clustering.Params{
			K:             k,
			MaxIterations: cfg.KMeans.MaxIterations,
			Seed:          cfg.KMeans.Seed,
		},
	}
	plan.Sigma, _ = config.Float(cfg.Embedding.Sigma)
	plan.Params.Eps, _ = config.Float(cfg.DBSCAN.Eps)
	plan.Params.MinSamples, _ = config.Int(cfg.DBSCAN.MinSamples)
	if algorithm == core.AlgSpectral {
		plan.RBFSigma, _ = config.Float(cfg.Kernel.RBFSigma)
		if kind == core.DistanceVec {
			plan.Params.RBFSigma = plan.RBFSigma
		}
	}
	if kind == core.DistanceVec {
		plan.Params.TopLevel, _ = config.Int(cfg.CoverTree.VecTopLevel)
	} else {
		plan.Params.TopLevel, _ = config.Int(cfg.CoverTree.EditTopLevel)
	}
	return plan, nil
}
