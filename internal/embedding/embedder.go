package embedding

import (
	"math"

	"github.com/rs/zerolog"

	"catcluster/internal/core"
)

// Embedder converts user profiles into feature vectors against a fixed
// pivot ensemble.
type Embedder struct {
	pivots *PivotEnsemble
	sigma  float64
	log    zerolog.Logger
}

// NewEmbedder validates the ensemble and sigma once so EmbedAll can run
// without re-checking them per user.
func NewEmbedder(pivots *PivotEnsemble, sigma float64, log zerolog.Logger) (*Embedder, error) {
	if err := validateSigma(sigma); err != nil {
		return nil, err
	}
	if err := pivots.validate(); err != nil {
		return nil, err
	}
	return &Embedder{pivots: pivots, sigma: sigma, log: log}, nil
}

// Dimension returns the length of every vector the embedder produces.
func (e *Embedder) Dimension() int {
	return e.pivots.Len()
}

// Embed embeds one profile.
func (e *Embedder) Embed(profile core.UserProfile) (core.FeatureVector, error) {
	return Embed(profile, e.pivots, e.sigma)
}

// EmbedAll embeds every profile, preserving order.
func (e *Embedder) EmbedAll(profiles []core.UserProfile) ([]core.FeatureVector, error) {
	vectors := make([]core.FeatureVector, len(profiles))
	for i, profile := range profiles {
		v, err := e.Embed(profile)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	e.log.Debug().
		Int("users", len(profiles)).
		Int("dimension", e.Dimension()).
		Msg("embedded user profiles")
	return vectors, nil
}

// Embed sets entry d of the vector to exp(-score(pivot_d, union)/(2*sigma^2)),
// where union is every distinct category path across the profile's businesses.
func Embed(profile core.UserProfile, pivots *PivotEnsemble, sigma float64) (core.FeatureVector, error) {
	if err := validateSigma(sigma); err != nil {
		return nil, err
	}
	if err := pivots.validate(); err != nil {
		return nil, err
	}

	union := profile.PathUnion()
	denom := 2 * sigma * sigma
	vector := make(core.FeatureVector, pivots.Len())
	for d, p := range pivots.pivots {
		score, err := p.Tree.Score(union)
		if err != nil {
			return nil, err
		}
		vector[d] = math.Exp(-score / denom)
	}
	return vector, nil
}

func validateSigma(sigma float64) error {
	if !(sigma > 0) || math.IsInf(sigma, 0) {
		return core.Validationf("sigma must be a positive finite real, got %v", sigma)
	}
	return nil
}
