package experiment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcluster/internal/clustering"
	"catcluster/internal/config"
	"catcluster/internal/core"
)

// fakeBackend records the input it receives and labels every row 0.
type fakeBackend struct {
	name  core.Algorithm
	calls int
	last  clustering.Input
}

func (f *fakeBackend) Name() core.Algorithm { return f.name }

func (f *fakeBackend) Fit(_ context.Context, in clustering.Input) (core.ClusterLabeling, error) {
	f.calls++
	f.last = in
	return make(core.ClusterLabeling, in.Len()), nil
}

type fakeSource struct {
	profiles     []core.UserProfile
	profileCalls int
	pathCalls    int
	onAllPaths   func()
}

func (s *fakeSource) AllPaths() ([]core.CategoryPath, error) {
	s.pathCalls++
	if s.onAllPaths != nil {
		s.onAllPaths()
	}
	var paths []core.CategoryPath
	for _, p := range s.profiles {
		paths = append(paths, p.PathUnion()...)
	}
	return paths, nil
}

func (s *fakeSource) Profiles(validUIDs []string, dataSize int) ([]core.UserProfile, error) {
	s.profileCalls++
	out := s.profiles
	if dataSize > 0 && dataSize < len(out) {
		out = out[:dataSize]
	}
	return out, nil
}

func (s *fakeSource) NumUsers() int { return len(s.profiles) }

func user(id string, paths ...core.CategoryPath) core.UserProfile {
	return core.UserProfile{ID: id, Businesses: map[string][]core.CategoryPath{"b-" + id: paths}}
}

func newSource() *fakeSource {
	return &fakeSource{profiles: []core.UserProfile{
		user("u1", core.CategoryPath{"Food", "Pizza"}),
		user("u2", core.CategoryPath{"Food", "Sushi"}),
		user("u3", core.CategoryPath{"Shopping", "Books"}),
	}}
}

func ptr[T any](v T) *T { return &v }

func fullConfig() *config.Config {
	cfg := config.Default()
	cfg.Embedding.Sigma = ptr(1.0)
	cfg.Kernel.RBFSigma = ptr(2.0)
	cfg.DBSCAN.Eps = ptr(0.5)
	cfg.DBSCAN.MinSamples = ptr(2)
	cfg.CoverTree.VecTopLevel = ptr(1)
	cfg.CoverTree.EditTopLevel = ptr(3)
	return cfg
}

func newFakes() (map[core.Algorithm]*fakeBackend, *clustering.Registry) {
	fakes := make(map[core.Algorithm]*fakeBackend)
	var backends []clustering.Backend
	for _, alg := range core.Algorithms {
		f := &fakeBackend{name: alg}
		fakes[alg] = f
		backends = append(backends, f)
	}
	return fakes, clustering.NewRegistry(backends...)
}

func TestRunAlgorithmRejectsUnknownNames(t *testing.T) {
	fakes, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	_, err := o.RunAlgorithm(context.Background(), "affinity", "vec", Options{K: 2})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = o.RunAlgorithm(context.Background(), "kmeans", "cosine", Options{K: 2})
	assert.ErrorIs(t, err, core.ErrValidation)

	for _, f := range fakes {
		assert.Zero(t, f.calls)
	}
}

func TestRunAlgorithmKMeansEditIncompatible(t *testing.T) {
	fakes, registry := newFakes()
	source := newSource()
	o := NewOrchestrator(source, registry, fullConfig(), zerolog.Nop())

	_, err := o.RunAlgorithm(context.Background(), "kmeans", "edit", Options{K: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrCompatibility), "got %v", err)
	assert.Zero(t, fakes[core.AlgKMeans].calls)
	assert.Zero(t, source.profileCalls, "data must not be loaded for a rejected pair")
}

func TestRunAlgorithmMissingKIsConfigurationError(t *testing.T) {
	fakes, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	for _, alg := range core.Algorithms {
		_, err := o.RunAlgorithm(context.Background(), string(alg), "vec", Options{})
		assert.ErrorIs(t, err, core.ErrConfiguration, "alg %s", alg)
		assert.Zero(t, fakes[alg].calls, "alg %s", alg)
	}
}

func TestRunAlgorithmMissingOptions(t *testing.T) {
	tests := []struct {
		name   string
		alg    string
		dist   string
		mutate func(*config.Config)
	}{
		{"vec without sigma", "kmeans", "vec", func(c *config.Config) { c.Embedding.Sigma = nil }},
		{"dbscan without eps", "dbscan", "edit", func(c *config.Config) { c.DBSCAN.Eps = nil }},
		{"dbscan without min samples", "dbscan", "vec", func(c *config.Config) { c.DBSCAN.MinSamples = nil }},
		{"spectral without rbf sigma", "spectral", "edit", func(c *config.Config) { c.Kernel.RBFSigma = nil }},
		{"covertree vec without top level", "covertree", "vec", func(c *config.Config) { c.CoverTree.VecTopLevel = nil }},
		{"covertree edit without top level", "covertree", "edit", func(c *config.Config) { c.CoverTree.EditTopLevel = nil }},
		{"non-positive sigma", "hierarchical", "vec", func(c *config.Config) { c.Embedding.Sigma = ptr(0.0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fullConfig()
			tt.mutate(cfg)
			fakes, registry := newFakes()
			o := NewOrchestrator(newSource(), registry, cfg, zerolog.Nop())

			_, err := o.RunAlgorithm(context.Background(), tt.alg, tt.dist, Options{K: 2})
			assert.ErrorIs(t, err, core.ErrConfiguration)
			for _, f := range fakes {
				assert.Zero(t, f.calls)
			}
		})
	}
}

func TestRunAlgorithmOptionsOnlyForSelectedPair(t *testing.T) {
	cfg := config.Default()
	cfg.Embedding.Sigma = ptr(1.0)
	_, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, cfg, zerolog.Nop())

	// hierarchical on edit needs nothing beyond k
	_, err := o.RunAlgorithm(context.Background(), "hierarchical", "edit", Options{K: 2})
	assert.NoError(t, err)
	_, err = o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
	assert.NoError(t, err)
}

func TestRunAlgorithmVecInput(t *testing.T) {
	fakes, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	result, err := o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
	require.NoError(t, err)

	in := fakes[core.AlgKMeans].last
	assert.Equal(t, clustering.FeatureMatrix, in.Kind)
	assert.Equal(t, clustering.MetricEuclidean, in.Metric)
	assert.Equal(t, 2, in.Params.K)
	rows, cols := in.Matrix.Dims()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 2, cols, "one column per pivot (Food, Shopping)")

	assert.Equal(t, core.DistanceVec, result.Dataset.Kind)
	assert.Len(t, result.Dataset.Vectors, 3)
	assert.Len(t, result.Labels, 3)
	assert.Positive(t, int64(result.Elapsed))
}

func TestRunAlgorithmEditInput(t *testing.T) {
	fakes, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	_, err := o.RunAlgorithm(context.Background(), "hierarchical", "edit", Options{K: 2})
	require.NoError(t, err)
	in := fakes[core.AlgHierarchical].last
	assert.Equal(t, clustering.PrecomputedMatrix, in.Kind)
	assert.Equal(t, clustering.MetricPrecomputed, in.Metric)
	// u1 and u2 share Food and differ on one leaf each
	assert.Equal(t, 2.0, in.Matrix.At(0, 1))
	assert.Equal(t, 0.0, in.Matrix.At(1, 1))
	assert.Equal(t, in.Matrix.At(0, 2), in.Matrix.At(2, 0))

	_, err = o.RunAlgorithm(context.Background(), "spectral", "edit", Options{K: 2})
	require.NoError(t, err)
	in = fakes[core.AlgSpectral].last
	// rbf with sigma 2: exp(-4/8)
	assert.InDelta(t, 0.6065306597, in.Matrix.At(0, 1), 1e-9)
	assert.Equal(t, 1.0, in.Matrix.At(2, 2), "diagonal is kernel(0)")
}

func TestRunAlgorithmDataSize(t *testing.T) {
	_, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	result, err := o.RunAlgorithm(context.Background(), "hierarchical", "edit", Options{K: 1, DataSize: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Dataset.Len())
}

func TestRunAlgorithmWithRealBackends(t *testing.T) {
	registry := clustering.NewDefaultRegistry(clustering.DefaultKMeansConfig(), zerolog.Nop())
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	result, err := o.RunAlgorithm(context.Background(), "hierarchical", "edit", Options{K: 2})
	require.NoError(t, err)
	// u1 and u2 are closer to each other than to u3
	assert.Equal(t, result.Labels[0], result.Labels[1])
	assert.NotEqual(t, result.Labels[0], result.Labels[2])
}

func TestPivotsBuiltOnce(t *testing.T) {
	_, registry := newFakes()
	orch := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())

	first, err := orch.Pivots()
	require.NoError(t, err)
	assert.Equal(t, []string{"Food", "Shopping"}, first.Labels())

	second, err := orch.Pivots()
	require.NoError(t, err)
	assert.Same(t, first, second)
}

// fakeClock advances by tick on every reading.
type fakeClock struct {
	t    time.Time
	tick time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.tick)
	return c.t
}

func TestRunAlgorithmTimesSameWorkEveryRun(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0), tick: time.Millisecond}
	source := newSource()
	// building the ensemble takes an hour on the fake clock
	source.onAllPaths = func() { clock.t = clock.t.Add(time.Hour) }

	_, registry := newFakes()
	o := NewOrchestrator(source, registry, fullConfig(), zerolog.Nop())
	o.now = clock.now

	for i := 0; i < 3; i++ {
		result, err := o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
		require.NoError(t, err)
		assert.Equal(t, time.Millisecond, result.Elapsed, "run %d", i)
	}
	assert.Equal(t, 1, source.pathCalls)
}

func TestRunAlgorithmLegacyMatchDiscard(t *testing.T) {
	cfg := fullConfig()
	cfg.Embedding.LegacyMatchDiscard = true
	_, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, cfg, zerolog.Nop())

	result, err := o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
	require.NoError(t, err)
	// every score is discarded, so every entry is exp(0)
	for _, vec := range result.Dataset.Vectors {
		for _, v := range vec {
			assert.Equal(t, 1.0, v)
		}
	}

	o = NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())
	result, err = o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
	require.NoError(t, err)
	assert.Less(t, result.Dataset.Vectors[0][0], 1.0, "matched paths count by default")
}

func TestRunAlgorithmWithoutConfig(t *testing.T) {
	_, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, nil, zerolog.Nop())

	_, err := o.RunAlgorithm(context.Background(), "kmeans", "vec", Options{K: 2})
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestNumUsers(t *testing.T) {
	_, registry := newFakes()
	o := NewOrchestrator(newSource(), registry, fullConfig(), zerolog.Nop())
	assert.Equal(t, 3, o.NumUsers())
}
