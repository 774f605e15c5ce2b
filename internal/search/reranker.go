package search

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

// RerankResult is the relevance score of documents[Index].
type RerankResult struct {
	Index int
	Score float64
}

// Reranker scores (query, document) pairs.
type Reranker interface {
	// Rerank returns one result per document, best first. topK > 0 truncates
	// the returned slice.
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Name identifies the provider in logs and errors.
	Name() string

	Close() error
}

// bigramWeight is the share of the lexical score given to adjacent query
// term pairs found in the document.
const bigramWeight = 0.2

// LexicalReranker is an offline reranker. A document scores the fraction of
// distinct query terms it contains, blended with the fraction of query
// bigrams it contains as adjacent terms. Scores lie in [0,1].
type LexicalReranker struct {
	mu     sync.RWMutex
	closed bool
}

var _ Reranker = (*LexicalReranker)(nil)

// NewLexicalReranker creates a LexicalReranker.
func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{}
}

// Rerank scores each document against query.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	r.mu.RLock()
	closed := r.closed
	r.mu.RUnlock()
	if closed {
		return nil, dserrors.New(dserrors.ErrCodeProviderFailed, "reranker is closed", nil)
	}

	qTerms := terms(query)
	qSet := uniq(qTerms)
	qBigrams := bigrams(qTerms)

	results := make([]RerankResult, len(documents))
	for i, doc := range documents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = RerankResult{Index: i, Score: lexicalScore(qSet, qBigrams, terms(doc))}
	}

	return sortResults(results, topK), nil
}

func lexicalScore(qSet map[string]struct{}, qBigrams map[string]struct{}, docTerms []string) float64 {
	if len(qSet) == 0 || len(docTerms) == 0 {
		return 0
	}

	docSet := uniq(docTerms)
	hits := 0
	for t := range qSet {
		if _, ok := docSet[t]; ok {
			hits++
		}
	}
	termScore := float64(hits) / float64(len(qSet))
	if len(qBigrams) == 0 {
		return termScore
	}

	docBigrams := bigrams(docTerms)
	bHits := 0
	for bg := range qBigrams {
		if _, ok := docBigrams[bg]; ok {
			bHits++
		}
	}
	bigramScore := float64(bHits) / float64(len(qBigrams))
	return (1-bigramWeight)*termScore + bigramWeight*bigramScore
}

// terms lowercases text and splits it on anything that is not a letter or
// digit.
func terms(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniq(ts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}

func bigrams(ts []string) map[string]struct{} {
	set := make(map[string]struct{})
	for i := 0; i+1 < len(ts); i++ {
		set[ts[i]+" "+ts[i+1]] = struct{}{}
	}
	return set
}

// sortResults orders by score descending, keeping input order on ties, and
// truncates to topK when positive.
func sortResults(results []RerankResult, topK int) []RerankResult {
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].Score > results[b].Score
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results
}

// Available is false once closed.
func (r *LexicalReranker) Available(_ context.Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.closed
}

// Name returns "lexical".
func (r *LexicalReranker) Name() string { return "lexical" }

// Close marks the reranker unusable.
func (r *LexicalReranker) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
