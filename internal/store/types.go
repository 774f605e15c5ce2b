// Package store holds docsift's persistence layer: the document data model,
// the BM25 sparse model, and the dense vector substrates (local hnsw+sqlite
// and qdrant).
package store

import (
	"context"
	"fmt"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

// SourceKind classifies an indexed file.
type SourceKind string

const (
	KindCode SourceKind = "code"
	KindPDF  SourceKind = "pdf"
	KindText SourceKind = "text"
)

// DocumentMetadata holds the well-known per-document fields plus a small
// extension map. Extra only accepts primitive values; see ValidateExtra.
type DocumentMetadata struct {
	Filename   string         `json:"filename"`
	FileType   SourceKind     `json:"file_type"`
	ChunkIndex int            `json:"chunk_index"`
	Page       int            `json:"page,omitempty"`
	SizeBytes  int64          `json:"size_bytes,omitempty"`
	Extra      map[string]any `json:"extra,omitempty"`
}

// ValidateExtra rejects non-primitive values in an Extra map.
func ValidateExtra(extra map[string]any) error {
	for k, v := range extra {
		switch v.(type) {
		case nil, string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
		default:
			return dserrors.New(dserrors.ErrCodeInvalidMetadata,
				fmt.Sprintf("metadata field %q has non-primitive type %T", k, v), nil)
		}
	}
	return nil
}

// DocumentRecord is one indexed source file.
type DocumentRecord struct {
	// ID is the absolute, cleaned source path.
	ID          string
	DisplayName string
	// Body is the indexed text including the FILE/PATH/CONTENT header.
	Body     string
	Kind     SourceKind
	Metadata DocumentMetadata
}

// VectorRecord pairs a document with its embedding for storage.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Body     string
	Metadata DocumentMetadata
}

// VectorHit is a dense retrieval result.
type VectorHit struct {
	ID    string
	Body  string
	Score float32
}

// VectorStore is the dense persistence substrate. Upsert overwrites records
// with the same ID. Query returns at most k hits, most similar first.
// Bodies omits unknown ids.
type VectorStore interface {
	Upsert(ctx context.Context, records []VectorRecord) error
	Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error)
	Bodies(ctx context.Context, ids []string) (map[string]string, error)
	Delete(ctx context.Context, ids []string) error
	IDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Reloader is implemented by stores that cache on-disk state in memory and
// can refresh it after another process rebuilds the index.
type Reloader interface {
	Reload(ctx context.Context) error
}

// VectorStoreConfig configures an HNSW graph.
type VectorStoreConfig struct {
	Dimensions int
	Metric     string // "cos" or "l2"
	M          int
	EfSearch   int
}

// DefaultVectorStoreConfig returns defaults for the given dimension.
func DefaultVectorStoreConfig(dimensions int) VectorStoreConfig {
	return VectorStoreConfig{
		Dimensions: dimensions,
		Metric:     "cos",
		M:          16,
		EfSearch:   64,
	}
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
