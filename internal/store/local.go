package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// File names inside the data directory.
const (
	VectorsFileName = "vectors.hnsw"
	DocsFileName    = "docs.db"
)

// LocalVectorStore is the default dense substrate: an HNSW graph for
// neighbour search over a SQLite table holding bodies and embeddings.
type LocalVectorStore struct {
	mu        sync.RWMutex
	graphPath string
	docs      *SQLiteDocStore
	graph     *HNSWStore
}

var (
	_ VectorStore = (*LocalVectorStore)(nil)
	_ Reloader    = (*LocalVectorStore)(nil)
)

// OpenLocalVectorStore opens the store under dir for vectors of the given
// dimension. The graph is loaded from disk when it matches the document
// table, and rebuilt from stored embeddings otherwise.
func OpenLocalVectorStore(ctx context.Context, dir string, dimensions int) (*LocalVectorStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	docs, err := OpenSQLiteDocStore(filepath.Join(dir, DocsFileName))
	if err != nil {
		return nil, err
	}

	stored, err := docs.GetState(ctx, StateKeyDimensions)
	if err != nil {
		_ = docs.Close()
		return nil, err
	}
	if stored != "" {
		if n, _ := strconv.Atoi(stored); n != dimensions {
			_ = docs.Close()
			return nil, fmt.Errorf("vector store at %s: %w (reindex after changing embedders)",
				dir, ErrDimensionMismatch{Expected: n, Got: dimensions})
		}
	}

	graph, err := NewHNSWStore(DefaultVectorStoreConfig(dimensions))
	if err != nil {
		_ = docs.Close()
		return nil, err
	}

	s := &LocalVectorStore{
		graphPath: filepath.Join(dir, VectorsFileName),
		docs:      docs,
		graph:     graph,
	}
	if err := s.loadGraph(ctx); err != nil {
		_ = docs.Close()
		return nil, err
	}
	return s, nil
}

func (s *LocalVectorStore) loadGraph(ctx context.Context) error {
	count, err := s.docs.Count(ctx)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}

	if _, statErr := os.Stat(s.graphPath); statErr == nil {
		if err := s.graph.Load(s.graphPath); err == nil && s.graph.Count() == count {
			return nil
		} else if err != nil {
			slog.Warn("hnsw_graph_load_failed",
				slog.String("path", s.graphPath),
				slog.String("error", err.Error()))
		}
	}

	slog.Info("hnsw_graph_rebuild", slog.Int("documents", count))
	return s.rebuildLocked(ctx)
}

// Reload replaces the in-memory graph with the one on disk, picking up a
// build made by another process. The previous graph is kept on failure.
func (s *LocalVectorStore) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	graph, err := NewHNSWStore(DefaultVectorStoreConfig(s.graph.config.Dimensions))
	if err != nil {
		return err
	}
	old := s.graph
	s.graph = graph
	if err := s.loadGraph(ctx); err != nil {
		s.graph = old
		_ = graph.Close()
		return fmt.Errorf("reload hnsw graph: %w", err)
	}
	_ = old.Close()
	return nil
}

func (s *LocalVectorStore) rebuildLocked(ctx context.Context) error {
	ids, vectors, err := s.docs.Vectors(ctx)
	if err != nil {
		return err
	}
	if err := s.graph.Rebuild(ids, vectors); err != nil {
		return fmt.Errorf("rebuild hnsw graph: %w", err)
	}
	return s.graph.Save(s.graphPath)
}

// Upsert writes records to SQLite, then to the graph, then persists the graph.
func (s *LocalVectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, len(records))
	vectors := make([][]float32, len(records))
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		if len(r.Vector) != s.graph.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.graph.config.Dimensions, Got: len(r.Vector)}
		}
	}

	if err := s.docs.Put(ctx, records); err != nil {
		return err
	}
	if err := s.docs.SetState(ctx, StateKeyDimensions, strconv.Itoa(s.graph.config.Dimensions)); err != nil {
		return err
	}
	if err := s.graph.Add(ids, vectors); err != nil {
		return err
	}
	return s.persistLocked(ctx)
}

// persistLocked saves the graph, compacting first once orphans outnumber
// live nodes.
func (s *LocalVectorStore) persistLocked(ctx context.Context) error {
	if st := s.graph.Stats(); st.Orphans > st.ValidIDs {
		return s.rebuildLocked(ctx)
	}
	return s.graph.Save(s.graphPath)
}

// Query searches the graph and joins bodies from SQLite.
func (s *LocalVectorStore) Query(ctx context.Context, vector []float32, k int) ([]VectorHit, error) {
	s.mu.RLock()
	matches, err := s.graph.Search(vector, k)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return []VectorHit{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	bodies, err := s.docs.Bodies(ctx, ids)
	if err != nil {
		return nil, err
	}

	hits := make([]VectorHit, 0, len(matches))
	for _, m := range matches {
		body, ok := bodies[m.ID]
		if !ok {
			continue
		}
		hits = append(hits, VectorHit{ID: m.ID, Body: body, Score: m.Score})
	}
	return hits, nil
}

// Delete removes ids from both the table and the graph.
func (s *LocalVectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.docs.Delete(ctx, ids); err != nil {
		return err
	}
	s.graph.Delete(ids)
	return s.persistLocked(ctx)
}

// Bodies returns the stored body text for ids.
func (s *LocalVectorStore) Bodies(ctx context.Context, ids []string) (map[string]string, error) {
	return s.docs.Bodies(ctx, ids)
}

// IDs returns every stored document ID.
func (s *LocalVectorStore) IDs(ctx context.Context) ([]string, error) {
	return s.docs.IDs(ctx)
}

// Count returns the number of stored documents.
func (s *LocalVectorStore) Count(ctx context.Context) (int, error) {
	return s.docs.Count(ctx)
}

// Docs exposes the underlying document table.
func (s *LocalVectorStore) Docs() *SQLiteDocStore {
	return s.docs
}

// Close closes the graph and database.
func (s *LocalVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.graph.Close()
	return s.docs.Close()
}
