// Package embed provides embedding providers: an offline hash-based
// embedder, an Ollama HTTP client, and an LRU cache decorator.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the number of texts sent per provider call.
	DefaultBatchSize = 100

	// MaxBatchSize caps provider batches.
	MaxBatchSize = 512

	// DefaultTimeout bounds one provider HTTP call.
	DefaultTimeout = 60 * time.Second

	// StaticDimensions is the static embedder's vector length.
	StaticDimensions = 256
)

// Embedder turns text into fixed-length vectors. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates one embedding per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding length.
	Dimensions() int

	// ModelName identifies the model, recorded alongside the index.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector returns v scaled to unit length. Zero vectors are returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
