package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/embed"
	"github.com/Aman-CERP/docsift/internal/store"
)

// ErrNilDependency is returned when a required dependency is missing.
var ErrNilDependency = errors.New("required dependency is nil")

// DenseIndex embeds documents and queries and stores them in a VectorStore.
type DenseIndex struct {
	embedder  embed.Embedder
	store     store.VectorStore
	batchSize int
}

// NewDenseIndex creates a dense index. batchSize <= 0 selects
// embed.DefaultBatchSize.
func NewDenseIndex(embedder embed.Embedder, vectors store.VectorStore, batchSize int) (*DenseIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder", ErrNilDependency)
	}
	if vectors == nil {
		return nil, fmt.Errorf("%w: vector store", ErrNilDependency)
	}
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	if batchSize > embed.MaxBatchSize {
		batchSize = embed.MaxBatchSize
	}
	return &DenseIndex{embedder: embedder, store: vectors, batchSize: batchSize}, nil
}

// Upsert embeds records in provider batches and writes them in one store
// call. Records with an existing ID are overwritten.
func (d *DenseIndex) Upsert(ctx context.Context, records []store.DocumentRecord) error {
	if len(records) == 0 {
		return nil
	}

	vectors := make([]store.VectorRecord, 0, len(records))
	for start := 0; start < len(records); start += d.batchSize {
		if err := ctx.Err(); err != nil {
			slog.Info("index_interrupted",
				slog.Int("embedded", len(vectors)),
				slog.Int("total", len(records)))
			return err
		}

		end := min(start+d.batchSize, len(records))
		batch := records[start:end]

		texts := make([]string, len(batch))
		for i, r := range batch {
			if err := store.ValidateExtra(r.Metadata.Extra); err != nil {
				return fmt.Errorf("document %s: %w", r.ID, err)
			}
			texts[i] = r.Body
		}

		embeddings, err := d.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return d.providerError(err)
		}
		if len(embeddings) != len(batch) {
			return d.providerError(fmt.Errorf("got %d embeddings for %d documents", len(embeddings), len(batch)))
		}

		for i, r := range batch {
			vectors = append(vectors, store.VectorRecord{
				ID:       r.ID,
				Vector:   embeddings[i],
				Body:     r.Body,
				Metadata: r.Metadata,
			})
		}

		slog.Debug("embedding_batch_complete",
			slog.Int("batch_start", start),
			slog.Int("batch_size", len(batch)))
	}

	if err := d.store.Upsert(ctx, vectors); err != nil {
		return fmt.Errorf("upsert vectors: %w", err)
	}
	return nil
}

// Query returns up to k documents most similar to text. k is capped at
// the number of stored documents; k <= 0 or an empty store yields an
// empty slice.
func (d *DenseIndex) Query(ctx context.Context, text string, k int) ([]store.VectorHit, error) {
	if k <= 0 {
		return []store.VectorHit{}, nil
	}
	count, err := d.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count vectors: %w", err)
	}
	if count == 0 {
		return []store.VectorHit{}, nil
	}
	k = min(k, count)

	vec, err := d.embedder.Embed(ctx, text)
	if err != nil {
		return nil, d.providerError(err)
	}
	hits, err := d.store.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	return hits, nil
}

// Retrieve implements search.DenseRetriever.
func (d *DenseIndex) Retrieve(ctx context.Context, query string, k int) ([]store.VectorHit, error) {
	return d.Query(ctx, query, k)
}

// Bodies returns the stored body of each known id.
func (d *DenseIndex) Bodies(ctx context.Context, ids []string) (map[string]string, error) {
	return d.store.Bodies(ctx, ids)
}

// IDs returns every stored document ID.
func (d *DenseIndex) IDs(ctx context.Context) ([]string, error) {
	return d.store.IDs(ctx)
}

// Delete removes documents by ID.
func (d *DenseIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return d.store.Delete(ctx, ids)
}

// Reload refreshes any in-memory state the vector store caches from disk.
// Stores without such state are left alone.
func (d *DenseIndex) Reload(ctx context.Context) error {
	if r, ok := d.store.(store.Reloader); ok {
		return r.Reload(ctx)
	}
	return nil
}

// Count returns the number of stored documents.
func (d *DenseIndex) Count(ctx context.Context) (int, error) {
	return d.store.Count(ctx)
}

// Embedder returns the embedding provider.
func (d *DenseIndex) Embedder() embed.Embedder {
	return d.embedder
}

// providerError wraps embedder failures. Context errors pass through so
// callers can tell cancellation apart.
func (d *DenseIndex) providerError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if dserrors.IsProviderError(err) {
		return err
	}
	return dserrors.ProviderError(d.embedder.ModelName(), err)
}
