package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// Engine runs hybrid queries: dense and sparse retrieval in parallel, a
// plain set-union of their candidates, then a pairwise rerank.
type Engine struct {
	dense    DenseRetriever
	sparse   SparseRetriever
	reranker Reranker
	logger   QueryLogger
	config   EngineConfig
	now      func() time.Time
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithQueryLogger records every call's outcome. Without one, outcomes are
// only written to slog.
func WithQueryLogger(l QueryLogger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithClock replaces time.Now for response time measurement.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates an engine. All three collaborators are required.
func NewEngine(
	dense DenseRetriever,
	sparse SparseRetriever,
	reranker Reranker,
	config EngineConfig,
	opts ...EngineOption,
) (*Engine, error) {
	if dense == nil {
		return nil, fmt.Errorf("%w: dense retriever is required", ErrNilDependency)
	}
	if sparse == nil {
		return nil, fmt.Errorf("%w: sparse retriever is required", ErrNilDependency)
	}
	if reranker == nil {
		return nil, fmt.Errorf("%w: reranker is required", ErrNilDependency)
	}
	if config.DefaultTopK <= 0 {
		config.DefaultTopK = DefaultTopK
	}
	if config.MaxTopK <= 0 {
		config.MaxTopK = MaxTopK
	}

	e := &Engine{
		dense:    dense,
		sparse:   sparse,
		reranker: reranker,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ClampTopK maps 0 to the default and clamps everything else to
// [1, MaxTopK].
func (e *Engine) ClampTopK(topK int) int {
	if topK == 0 {
		topK = e.config.DefaultTopK
	}
	if topK < 1 {
		return 1
	}
	if topK > e.config.MaxTopK {
		return e.config.MaxTopK
	}
	return topK
}

// Search returns the best document for query, or nil when neither retriever
// produced a candidate. Every call is logged exactly once, including calls
// that fail.
func (e *Engine) Search(ctx context.Context, query string, topK int) (res *Result, err error) {
	start := e.now()
	defer func() {
		e.logOutcome(query, e.now().Sub(start), res, err)
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, dserrors.New(dserrors.ErrCodeQueryEmpty, "query must not be empty", nil).
			WithSuggestion("Pass a non-empty search query")
	}
	topK = e.ClampTopK(topK)

	denseHits, sparseIDs, err := e.parallelRetrieve(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	fused := fuse(denseHits, sparseIDs)
	if len(fused) == 0 {
		return nil, nil
	}

	fused, err = e.fillBodies(ctx, fused)
	if err != nil {
		return nil, err
	}
	if len(fused) == 0 {
		return nil, nil
	}

	candidates, err := e.rerank(ctx, query, fused)
	if err != nil {
		return nil, err
	}

	return &Result{
		DocumentID: candidates[0].DocumentID,
		Confidence: candidates[0].Score,
		Candidates: candidates,
	}, nil
}

// parallelRetrieve runs both retrievers concurrently. Either failing fails
// the query.
func (e *Engine) parallelRetrieve(ctx context.Context, query string, k int) ([]store.VectorHit, []string, error) {
	g, gctx := errgroup.WithContext(ctx)

	var denseHits []store.VectorHit
	var sparseIDs []string

	g.Go(func() error {
		hits, err := e.dense.Retrieve(gctx, query, k)
		if err != nil {
			return classify("dense retrieval failed", err)
		}
		denseHits = hits
		return nil
	})

	g.Go(func() error {
		ids, err := e.sparse.Retrieve(gctx, query, k)
		if err != nil {
			return classify("sparse retrieval failed", err)
		}
		sparseIDs = ids
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return denseHits, sparseIDs, nil
}

// classify keeps coded errors and context errors as they are and tags
// anything else as a search failure.
func classify(msg string, err error) error {
	if dserrors.GetCode(err) != "" || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return dserrors.New(dserrors.ErrCodeSearchFailed, msg, err)
}

type fusedCandidate struct {
	id      string
	body    string
	hasBody bool
	source  Source
	inBoth  bool
}

// fuse unions dense then sparse results by ID in first-seen order. There is
// no weighting; reranking alone decides the final order.
func fuse(dense []store.VectorHit, sparse []string) []*fusedCandidate {
	byID := make(map[string]*fusedCandidate, len(dense)+len(sparse))
	out := make([]*fusedCandidate, 0, len(dense)+len(sparse))

	for _, h := range dense {
		if _, ok := byID[h.ID]; ok {
			continue
		}
		c := &fusedCandidate{id: h.ID, body: h.Body, hasBody: true, source: SourceDense}
		byID[h.ID] = c
		out = append(out, c)
	}
	for _, id := range sparse {
		if c, ok := byID[id]; ok {
			if c.source == SourceDense {
				c.inBoth = true
			}
			continue
		}
		c := &fusedCandidate{id: id, source: SourceSparse}
		byID[id] = c
		out = append(out, c)
	}
	return out
}

// fillBodies loads text for candidates only the sparse side returned and
// drops those the document store no longer holds.
func (e *Engine) fillBodies(ctx context.Context, fused []*fusedCandidate) ([]*fusedCandidate, error) {
	var missing []string
	for _, c := range fused {
		if !c.hasBody {
			missing = append(missing, c.id)
		}
	}
	if len(missing) == 0 {
		return fused, nil
	}

	bodies, err := e.dense.Bodies(ctx, missing)
	if err != nil {
		return nil, classify("failed to load candidate bodies", err)
	}
	kept := fused[:0]
	for _, c := range fused {
		if !c.hasBody {
			body, ok := bodies[c.id]
			if !ok {
				slog.Debug("candidate_body_missing", slog.String("doc_id", c.id))
				continue
			}
			c.body = body
			c.hasBody = true
		}
		kept = append(kept, c)
	}
	return kept, nil
}

// rerank scores every candidate and stable-sorts by score, descending, so
// ties keep fusion order.
func (e *Engine) rerank(ctx context.Context, query string, fused []*fusedCandidate) ([]Candidate, error) {
	docs := make([]string, len(fused))
	for i, c := range fused {
		docs[i] = c.body
	}

	start := time.Now()
	results, err := e.reranker.Rerank(ctx, query, docs, 0)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, dserrors.ProviderError(e.reranker.Name(), err)
	}
	if len(results) != len(fused) {
		return nil, dserrors.ProviderError(e.reranker.Name(),
			fmt.Errorf("scored %d of %d candidates", len(results), len(fused)))
	}

	scores := make([]float64, len(fused))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(fused) {
			return nil, dserrors.ProviderError(e.reranker.Name(),
				fmt.Errorf("result index %d out of range", r.Index))
		}
		scores[r.Index] = r.Score
	}

	candidates := make([]Candidate, len(fused))
	for i, c := range fused {
		candidates[i] = Candidate{
			DocumentID: c.id,
			Score:      scores[i],
			Source:     c.source,
			InBoth:     c.inBoth,
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Score > candidates[b].Score
	})

	slog.Debug("rerank_complete",
		slog.String("reranker", e.reranker.Name()),
		slog.Int("candidates", len(candidates)),
		slog.Duration("duration", time.Since(start)))

	return candidates, nil
}

// logOutcome writes the call to slog and the query logger. A logger failure
// is reported but never replaces the search error.
func (e *Engine) logOutcome(query string, elapsed time.Duration, res *Result, err error) {
	found := res != nil
	confidence := 0.0
	if found {
		confidence = res.Confidence
	}

	attrs := []any{
		slog.String("query", truncateQuery(query, 100)),
		slog.Bool("result_found", found),
		slog.Float64("confidence", confidence),
		slog.Float64("response_time_ms", float64(elapsed.Microseconds())/1000),
	}
	if found {
		attrs = append(attrs, slog.String("document_id", res.DocumentID))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		slog.Warn("search_failed", attrs...)
	} else {
		slog.Info("search_complete", attrs...)
	}

	if e.logger == nil {
		return
	}
	if logErr := e.logger.Log(query, elapsed, found, confidence); logErr != nil {
		slog.Warn("query_log_failed", slog.String("error", logErr.Error()))
	}
}
