package index

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/Aman-CERP/docsift/internal/store"
)

// SparseFileName is the persisted BM25 model inside the data directory.
const SparseFileName = "sparse.json"

// SparseIndex owns the BM25 model and its on-disk copy. The persisted
// model is loaded lazily; a failed load is retried on the next call, so an
// index built later by another process is picked up.
type SparseIndex struct {
	path string

	mu     sync.RWMutex
	model  *store.BM25Model
	loaded bool
}

// NewSparseIndex creates a sparse index persisted under dataDir.
func NewSparseIndex(dataDir string) *SparseIndex {
	return &SparseIndex{
		path:  filepath.Join(dataDir, SparseFileName),
		model: store.NewBM25Model(store.DefaultBM25Config()),
	}
}

// Path returns the persisted model location.
func (s *SparseIndex) Path() string {
	return s.path
}

// Train replaces the in-memory model with one trained over corpus, where
// docMap[i] is the ID of corpus[i]. The previous model keeps serving
// queries until training finishes.
func (s *SparseIndex) Train(corpus [][]string, docMap []string) error {
	m := store.NewBM25Model(store.DefaultBM25Config())
	if err := m.Train(corpus, docMap); err != nil {
		return err
	}
	s.install(m)
	return nil
}

// Save atomically persists the current model.
func (s *SparseIndex) Save() error {
	return s.current().Save(s.path)
}

// Commit tags the current model with gen, persists it, and then records
// gen as the data directory's completed build.
func (s *SparseIndex) Commit(gen string) error {
	m := s.current()
	m.SetGeneration(gen)
	if err := m.Save(s.path); err != nil {
		return err
	}
	return writeGeneration(filepath.Dir(s.path), gen)
}

// Generation returns the build tag of the loaded model.
func (s *SparseIndex) Generation() string {
	return s.current().Generation()
}

// ReadModel loads the persisted model without installing it.
func (s *SparseIndex) ReadModel() (*store.BM25Model, error) {
	m := store.NewBM25Model(store.DefaultBM25Config())
	if err := m.Load(s.path); err != nil {
		return nil, err
	}
	return m, nil
}

// Install makes m the serving model.
func (s *SparseIndex) Install(m *store.BM25Model) {
	if m != nil {
		s.install(m)
	}
}

// Retrieve returns up to k document IDs by BM25 score, capped at the
// corpus size. Ties keep the lower ordinal first.
func (s *SparseIndex) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m := s.current()
	scores, err := m.Score(store.Tokenize(query))
	if err != nil {
		return nil, err
	}
	return m.Resolve(store.TopN(scores, min(k, m.Len()))), nil
}

// DocMap returns the ordinal to document ID map, loading the model if
// needed.
func (s *SparseIndex) DocMap() ([]string, error) {
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	return s.current().DocMap(), nil
}

// Len returns the corpus size of the current model.
func (s *SparseIndex) Len() int {
	return s.current().Len()
}

func (s *SparseIndex) current() *store.BM25Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

func (s *SparseIndex) install(m *store.BM25Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
	s.loaded = true
}

// ensureLoaded loads the persisted model unless one is already serving.
// Only a successful load is remembered.
func (s *SparseIndex) ensureLoaded() error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	m := store.NewBM25Model(store.DefaultBM25Config())
	if err := m.Load(s.path); err != nil {
		return err
	}
	s.model = m
	s.loaded = true
	return nil
}
