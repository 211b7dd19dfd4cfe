package anomaly

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFeaturesSparseCorpus(t *testing.T) {
	m := BuildFeatures([]string{"only one note"}, DefaultMaxFeatures)
	assert.Equal(t, 1, m.Cols)
	assert.Equal(t, FallbackSparseCorpus, m.Fallback)
	assert.Equal(t, [][]float64{{0}}, m.Rows)
	assert.True(t, m.Degenerate())

	empty := BuildFeatures(nil, DefaultMaxFeatures)
	assert.Equal(t, 1, empty.Cols)
	assert.Empty(t, empty.Rows)
}

func TestBuildFeaturesEmptyVocabularyFallsBackToOnes(t *testing.T) {
	m := BuildFeatures([]string{"", "!!!", "the and of"}, DefaultMaxFeatures)
	assert.Equal(t, FallbackEmptyVocabulary, m.Fallback)
	assert.Equal(t, [][]float64{{1}, {1}, {1}}, m.Rows)
}

func TestBuildFeaturesExcludesUbiquitousTerms(t *testing.T) {
	m := BuildFeatures([]string{"alpha beta", "alpha gamma", "alpha delta"}, DefaultMaxFeatures)
	require.Equal(t, FallbackNone, m.Fallback)
	assert.NotContains(t, m.Vocabulary, "alpha")
	assert.Contains(t, m.Vocabulary, "beta")
	assert.Contains(t, m.Vocabulary, "alpha beta")
	assert.Len(t, m.Rows, 3)
	for _, row := range m.Rows {
		assert.Len(t, row, m.Cols)
	}
}

func TestBuildFeaturesCapsVocabularyDeterministically(t *testing.T) {
	texts := []string{"alpha beta", "alpha gamma", "alpha delta"}
	m := BuildFeatures(texts, 2)
	assert.Equal(t, []string{"alpha beta", "alpha delta"}, m.Vocabulary)

	again := BuildFeatures(texts, 2)
	if diff := cmp.Diff(m, again); diff != "" {
		t.Fatalf("feature matrix not deterministic (-first +second):\n%s", diff)
	}
}

func TestBuildFeaturesRowsAreUnitLength(t *testing.T) {
	m := BuildFeatures([]string{
		"sleep improved appetite returning",
		"sleep poor appetite reduced",
		"group therapy engagement strong",
	}, DefaultMaxFeatures)
	require.Greater(t, m.Cols, 1)
	for _, row := range m.Rows {
		assert.InDelta(t, 1.0, magnitude(row), 1e-9)
	}
}
