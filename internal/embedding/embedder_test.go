package embedding

import (
	"errors"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catcluster/internal/categorytree"
	"catcluster/internal/core"
)

func corpusPaths() []core.CategoryPath {
	return []core.CategoryPath{
		{"Food", "Pizza"},
		{"Food", "Sushi"},
		{"Food", "Pizza"},
		{"Shopping", "Books"},
	}
}

func TestBuildPivotsGroupsByRoot(t *testing.T) {
	pivots, err := BuildPivots(corpusPaths())
	require.NoError(t, err)

	assert.Equal(t, []string{"Food", "Shopping"}, pivots.Labels())
	food := pivots.Pivots()[0].Tree
	assert.Equal(t, 3, food.NodeCount())
	n, ok := food.BusinessCount(core.CategoryPath{"Food", "Pizza"})
	assert.True(t, ok)
	assert.Equal(t, 2, n)
	assert.True(t, food.Frozen())
}

func TestBuildPivotsIdempotent(t *testing.T) {
	a, err := BuildPivots(corpusPaths())
	require.NoError(t, err)
	b, err := BuildPivots(corpusPaths())
	require.NoError(t, err)

	profile := core.UserProfile{ID: "u", Businesses: map[string][]core.CategoryPath{
		"b1": {{"Food", "Sushi"}},
	}}
	va, err := Embed(profile, a, 1.0)
	require.NoError(t, err)
	vb, err := Embed(profile, b, 1.0)
	require.NoError(t, err)
	assert.Equal(t, va, vb)
}

func TestEmbedValues(t *testing.T) {
	pivots, err := BuildPivots(corpusPaths())
	require.NoError(t, err)

	profile := core.UserProfile{ID: "u1", Businesses: map[string][]core.CategoryPath{
		"b1": {{"Food", "Sushi"}},
		"b2": {{"Food", "Sushi"}},
	}}

	sigma := 0.5
	v, err := Embed(profile, pivots, sigma)
	require.NoError(t, err)
	require.Len(t, v, 2)

	// Food: 1/2 (two children) * 1/1 (one sushi business); union counts the path once
	assert.InDelta(t, math.Exp(-0.5/(2*sigma*sigma)), v[0], 1e-12)
	// no Shopping paths, score 0
	assert.InDelta(t, 1.0, v[1], 1e-12)
}

func TestEmbedRejectsBadInput(t *testing.T) {
	pivots, err := BuildPivots(corpusPaths())
	require.NoError(t, err)
	profile := core.UserProfile{ID: "u"}

	for _, sigma := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Embed(profile, pivots, sigma)
		assert.True(t, errors.Is(err, core.ErrValidation), "sigma %v", sigma)
	}

	_, err = Embed(profile, &PivotEnsemble{}, 1)
	assert.True(t, errors.Is(err, core.ErrValidation))

	_, err = Embed(profile, nil, 1)
	assert.True(t, errors.Is(err, core.ErrValidation))

	broken := NewPivotEnsemble(Pivot{Label: "Food", Tree: categorytree.New()}, Pivot{Label: "X"})
	_, err = Embed(profile, broken, 1)
	assert.True(t, errors.Is(err, core.ErrValidation))
}

func TestEmbedderEmbedAll(t *testing.T) {
	pivots, err := BuildPivots(corpusPaths())
	require.NoError(t, err)

	e, err := NewEmbedder(pivots, 1.0, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, e.Dimension())

	profiles := []core.UserProfile{
		{ID: "a", Businesses: map[string][]core.CategoryPath{"b": {{"Shopping", "Books"}}}},
		{ID: "b", Businesses: map[string][]core.CategoryPath{"b": {{"Food", "Pizza"}}}},
	}
	vectors, err := e.EmbedAll(profiles)
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.InDelta(t, 1.0, vectors[0][0], 1e-12)
	assert.InDelta(t, math.Exp(-0.5), vectors[0][1], 1e-12)

	_, err = NewEmbedder(pivots, 0, zerolog.Nop())
	assert.True(t, errors.Is(err, core.ErrValidation))
}
