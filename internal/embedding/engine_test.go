package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"atelier/internal/config"
)

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{1, 0, 0}
	c := []float32{0, 1, 0}

	sim, err := CosineSimilarity(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = CosineSimilarity(a, c)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)
}

func TestCosineSimilarityDimensionMismatch(t *testing.T) {
	_, err := CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarityZeroVector(t *testing.T) {
	sim, err := CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)
}

func TestFindTopK(t *testing.T) {
	query := []float32{1, 0}
	corpus := [][]float32{
		{0, 1},       // orthogonal
		{1, 0},       // identical
		{0.7, 0.7},   // diagonal
		{1, 2, 3, 4}, // wrong dimension, skipped
	}

	results := FindTopK(query, corpus, 2)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Index)
	assert.Equal(t, 2, results[1].Index)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestNewEngineEmptyProviderIsNil(t *testing.T) {
	engine, err := NewEngine(config.EmbeddingConfig{})
	require.NoError(t, err)
	assert.Nil(t, engine)
}

func TestNewEngineUnknownProvider(t *testing.T) {
	_, err := NewEngine(config.EmbeddingConfig{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestNewEngineOllamaDefaults(t *testing.T) {
	engine, err := NewEngine(config.EmbeddingConfig{Provider: "ollama"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:embeddinggemma", engine.Name())
	assert.Equal(t, 768, engine.Dimensions())
}
