// Package search answers a free-text query with the single most relevant
// document. Dense and sparse retrieval run concurrently, their candidate
// sets are unioned without weighting, and a pairwise reranker decides the
// final order.
package search

import (
	"context"
	"time"

	"github.com/Aman-CERP/docsift/internal/store"
)

// Default and maximum number of candidates requested from each retriever.
const (
	DefaultTopK = 10
	MaxTopK     = 50
)

// DenseRetriever embeds a query and returns its nearest documents.
type DenseRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]store.VectorHit, error)

	// Bodies returns body text for ids found only by the sparse side.
	Bodies(ctx context.Context, ids []string) (map[string]string, error)
}

// SparseRetriever scores a query against the lexical model and returns
// document IDs, best first.
type SparseRetriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// QueryLogger records the outcome of one search call.
type QueryLogger interface {
	Log(query string, responseTime time.Duration, found bool, confidence float64) error
}

// Source says which retriever produced a candidate first.
type Source string

const (
	SourceDense  Source = "dense"
	SourceSparse Source = "sparse"
)

// Candidate is one fused document with its reranker score.
type Candidate struct {
	DocumentID string  `json:"document_id"`
	Score      float64 `json:"score"`
	Source     Source  `json:"source"`
	// InBoth is set when both retrievers returned the document.
	InBoth bool `json:"in_both"`
}

// Result is the outcome of a search that found at least one candidate.
// Confidence is the top reranker score reported verbatim; it is
// provider-defined and not guaranteed to lie in [0,1].
type Result struct {
	DocumentID string      `json:"document_id"`
	Confidence float64     `json:"confidence"`
	Candidates []Candidate `json:"candidates"`
}

// EngineConfig bounds top_k.
type EngineConfig struct {
	DefaultTopK int
	MaxTopK     int
}

// DefaultEngineConfig returns the default top_k bounds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		DefaultTopK: DefaultTopK,
		MaxTopK:     MaxTopK,
	}
}
