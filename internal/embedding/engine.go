// Package embedding provides vector embedding generation for semantic
// similarity. Supports two backends: Ollama (local) and Google GenAI (cloud).
// The linkography engine and the knowledge collection both consume the same
// scalar-similarity contract, so either backend (or none) can serve them.
package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"

	"atelier/internal/config"
	"atelier/internal/logging"
)

// Engine generates vector embeddings for text.
type Engine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality of embeddings.
	Dimensions() int

	// Name returns the engine name.
	Name() string
}

// NewEngine creates an embedding engine based on configuration.
// An empty provider returns (nil, nil): callers fall back to lexical
// similarity.
func NewEngine(cfg config.EmbeddingConfig) (Engine, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "ollama":
		logging.Embedding("Initializing Ollama embedding engine: endpoint=%s model=%s", cfg.OllamaEndpoint, cfg.OllamaModel)
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel)
	case "genai":
		logging.Embedding("Initializing GenAI embedding engine: model=%s", cfg.GenAIModel)
		return NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}
}

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same length: %d != %d", len(a), len(b))
	}

	var dot, aMag, bMag float64
	for i := 0; i < len(a); i++ {
		dot += float64(a[i] * b[i])
		aMag += float64(a[i] * a[i])
		bMag += float64(b[i] * b[i])
	}

	if aMag == 0 || bMag == 0 {
		return 0, nil
	}

	return dot / (math.Sqrt(aMag) * math.Sqrt(bMag)), nil
}

// SimilarityResult represents a similarity search result.
type SimilarityResult struct {
	Index      int
	Similarity float64
}

// FindTopK returns the indices of the top K most similar vectors to the query,
// by cosine similarity. Vectors with mismatched dimensions are skipped.
func FindTopK(query []float32, corpus [][]float32, k int) []SimilarityResult {
	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}
