// Package experiment runs one algorithm/distance combination end to end:
// select users, build the representation, call the backend, time it.
package experiment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"catcluster/internal/categorytree"
	"catcluster/internal/clustering"
	"catcluster/internal/config"
	"catcluster/internal/core"
	"catcluster/internal/distance"
	"catcluster/internal/editdist"
	"catcluster/internal/embedding"
)

// DataSource supplies the corpus a run draws from.
type DataSource interface {
	// AllPaths returns the category path of every business, used to build pivots
	AllPaths() ([]core.CategoryPath, error)
	// Profiles selects users by id list and caps the count when dataSize > 0
	Profiles(validUIDs []string, dataSize int) ([]core.UserProfile, error)
	// NumUsers is the number of users Profiles can draw from
	NumUsers() int
}

// Options select the users and cluster count of one run.
type Options struct {
	K         int      // Number of clusters; required for every algorithm
	ValidUIDs []string // Restrict to these users, in order; nil means all
	DataSize  int      // Cap on the number of users; 0 means no cap
}

// Result is the outcome of one run.
type Result struct {
	Plan    Plan
	Dataset core.Dataset
	Labels  core.ClusterLabeling
	Elapsed time.Duration // user selection, representation and backend call
}

// Orchestrator wires a data source to the clustering backends. The pivot
// ensemble is built on first use and shared read-only afterwards. It is
// obtained before a run's clock starts, so every run times the same work.
type Orchestrator struct {
	source   DataSource
	registry *clustering.Registry
	cfg      *config.Config
	log      zerolog.Logger
	now      func() time.Time

	pivotsOnce sync.Once
	pivots     *embedding.PivotEnsemble
	pivotsErr  error
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(source DataSource, registry *clustering.Registry, cfg *config.Config, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		source:   source,
		registry: registry,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// NumUsers returns the size of the user population runs draw from.
func (o *Orchestrator) NumUsers() int {
	return o.source.NumUsers()
}

// Pivots returns the pivot ensemble built from every business's paths.
func (o *Orchestrator) Pivots() (*embedding.PivotEnsemble, error) {
	o.pivotsOnce.Do(func() {
		paths, err := o.source.AllPaths()
		if err != nil {
			o.pivotsErr = fmt.Errorf("loading category paths: %w", err)
			return
		}
		var opts []categorytree.Option
		if o.cfg != nil && o.cfg.Embedding.LegacyMatchDiscard {
			opts = append(opts, categorytree.WithLegacyMatchDiscard())
		}
		o.pivots, o.pivotsErr = embedding.BuildPivots(paths, opts...)
		if o.pivotsErr == nil {
			o.log.Debug().
				Int("pivots", o.pivots.Len()).
				Int("paths", len(paths)).
				Bool("legacy_match_discard", len(opts) > 0).
				Msg("built pivot ensemble")
		}
	})
	return o.pivots, o.pivotsErr
}

// RunAlgorithm clusters the selected users with alg over the dist
// representation.
func (o *Orchestrator) RunAlgorithm(ctx context.Context, alg, dist string, opts Options) (*Result, error) {
	plan, err := NewPlan(alg, dist, opts.K, o.cfg)
	if err != nil {
		return nil, err
	}
	backend, err := o.registry.Get(plan.Algorithm)
	if err != nil {
		return nil, err
	}

	var pivots *embedding.PivotEnsemble
	if plan.Distance == core.DistanceVec {
		if pivots, err = o.Pivots(); err != nil {
			return nil, err
		}
	}

	start := o.now()

	profiles, err := o.source.Profiles(opts.ValidUIDs, opts.DataSize)
	if err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	if len(profiles) == 0 {
		return nil, core.Validationf("no users selected")
	}
	dataset := core.Dataset{Kind: plan.Distance, Profiles: profiles}

	in, err := o.buildInput(ctx, plan, pivots, &dataset)
	if err != nil {
		return nil, err
	}

	labels, err := backend.Fit(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", plan.Algorithm, plan.Distance, err)
	}
	if len(labels) != dataset.Len() {
		return nil, fmt.Errorf("%s returned %d labels for %d users", plan.Algorithm, len(labels), dataset.Len())
	}
	elapsed := o.now().Sub(start)

	o.log.Debug().
		Str("alg", string(plan.Algorithm)).
		Str("distance_type", string(plan.Distance)).
		Int("users", dataset.Len()).
		Int("clusters", labels.NumClusters()).
		Dur("elapsed", elapsed).
		Msg("run finished")

	return &Result{Plan: plan, Dataset: dataset, Labels: labels, Elapsed: elapsed}, nil
}

// buildInput fills dataset.Vectors for vec and returns the backend input.
func (o *Orchestrator) buildInput(ctx context.Context, plan Plan, pivots *embedding.PivotEnsemble, dataset *core.Dataset) (clustering.Input, error) {
	in := clustering.Input{Params: plan.Params}

	switch plan.Distance {
	case core.DistanceVec:
		embedder, err := embedding.NewEmbedder(pivots, plan.Sigma, o.log)
		if err != nil {
			return in, err
		}
		vectors, err := embedder.EmbedAll(dataset.Profiles)
		if err != nil {
			return in, err
		}
		m, err := distance.FormatFeatures(vectors)
		if err != nil {
			return in, err
		}
		dataset.Vectors = vectors
		in.Matrix, in.Kind, in.Metric = m, clustering.FeatureMatrix, clustering.MetricEuclidean

	case core.DistanceEdit:
		var kernel distance.Kernel = distance.Identity
		if plan.Algorithm == core.AlgSpectral {
			rbf, err := distance.NewRBFKernel(plan.RBFSigma)
			if err != nil {
				return in, err
			}
			kernel = rbf
		}
		trees := editdist.BuildTrees(dataset.Profiles)
		m, err := distance.FormatPrecomputed(ctx, trees, editdist.Metric, kernel, distance.Options{Workers: o.cfg.Fabric.Workers})
		if err != nil {
			return in, err
		}
		in.Matrix, in.Kind, in.Metric = m, clustering.PrecomputedMatrix, clustering.MetricPrecomputed
	}
	return in, nil
}
