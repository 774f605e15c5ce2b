package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"
	"github.com/google/renameio"
)

// HNSWResult is a nearest-neighbour match from the graph.
type HNSWResult struct {
	ID    string
	Score float32
}

// HNSWStore is an in-memory approximate nearest-neighbour index over
// string IDs, backed by coder/hnsw.
//
// Replacing or deleting an ID only drops its mapping; the old node stays in
// the graph as an orphan until Rebuild. coder/hnsw misbehaves when the last
// node of a layer is deleted.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	closed bool
}

type hnswMetadata struct {
	Version int               `json:"version"`
	IDMap   map[string]uint64 `json:"id_map"`
	NextKey uint64            `json:"next_key"`
	Config  VectorStoreConfig `json:"config"`
}

// NewHNSWStore creates an empty graph.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("hnsw store needs positive dimensions, got %d", cfg.Dimensions)
	}
	if cfg.Metric == "" {
		cfg.Metric = "cos"
	}
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 64
	}

	return &HNSWStore{
		graph:  newGraph(cfg),
		config: cfg,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]string),
	}, nil
}

func newGraph(cfg VectorStoreConfig) *hnsw.Graph[uint64] {
	graph := hnsw.NewGraph[uint64]()
	if cfg.Metric == "l2" {
		graph.Distance = hnsw.EuclideanDistance
	} else {
		graph.Distance = hnsw.CosineDistance
	}
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = 0.25
	return graph
}

// Add inserts vectors, replacing any existing entry with the same ID.
func (s *HNSWStore) Add(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	for i, id := range ids {
		s.addLocked(id, vectors[i])
	}
	return nil
}

func (s *HNSWStore) addLocked(id string, vector []float32) {
	if old, ok := s.idMap[id]; ok {
		delete(s.keyMap, old)
	}

	key := s.nextKey
	s.nextKey++

	vec := make([]float32, len(vector))
	copy(vec, vector)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(vec)
	}
	s.graph.Add(hnsw.MakeNode(key, vec))

	s.idMap[id] = key
	s.keyMap[key] = id
}

// Search returns up to k live entries closest to query.
func (s *HNSWStore) Search(query []float32, k int) ([]HNSWResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}
	if k <= 0 || len(s.idMap) == 0 {
		return []HNSWResult{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	if s.config.Metric == "cos" {
		normalizeVectorInPlace(q)
	}

	// Over-fetch by the orphan count so lazily deleted nodes cannot crowd
	// out live ones.
	fetch := k + (s.graph.Len() - len(s.idMap))
	if fetch > s.graph.Len() {
		fetch = s.graph.Len()
	}

	nodes := s.graph.Search(q, fetch)
	results := make([]HNSWResult, 0, k)
	for _, node := range nodes {
		id, ok := s.keyMap[node.Key]
		if !ok {
			continue
		}
		dist := s.graph.Distance(q, node.Value)
		results = append(results, HNSWResult{ID: id, Score: distanceToScore(dist, s.config.Metric)})
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// Delete drops the mappings for ids.
func (s *HNSWStore) Delete(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if key, ok := s.idMap[id]; ok {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
}

// Contains checks if ID exists.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.idMap[id]
	return ok
}

// Count returns the number of live vectors.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idMap)
}

// HNSWStats reports live entries against total graph nodes.
type HNSWStats struct {
	ValidIDs   int
	GraphNodes int
	Orphans    int
}

// Stats returns graph occupancy, used to decide when to Rebuild.
func (s *HNSWStore) Stats() HNSWStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return HNSWStats{}
	}
	nodes := s.graph.Len()
	return HNSWStats{ValidIDs: len(s.idMap), GraphNodes: nodes, Orphans: nodes - len(s.idMap)}
}

// Rebuild replaces the graph with a fresh one containing exactly the given
// vectors, discarding orphans.
func (s *HNSWStore) Rebuild(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch: %d vs %d", len(ids), len(vectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	s.graph = newGraph(s.config)
	s.idMap = make(map[string]uint64, len(ids))
	s.keyMap = make(map[uint64]string, len(ids))
	s.nextKey = 0
	for i, id := range ids {
		s.addLocked(id, vectors[i])
	}
	return nil
}

// Save writes the graph to path and its ID mappings to path+".meta".
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	t, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}
	defer func() { _ = t.Cleanup() }()

	w := bufio.NewWriter(t)
	if err := s.graph.Export(w); err != nil {
		return fmt.Errorf("failed to export graph: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush graph: %w", err)
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to replace index file: %w", err)
	}

	meta, err := json.Marshal(hnswMetadata{
		Version: 1,
		IDMap:   s.idMap,
		NextKey: s.nextKey,
		Config:  s.config,
	})
	if err != nil {
		return fmt.Errorf("encode hnsw metadata: %w", err)
	}
	if err := renameio.WriteFile(path+".meta", meta, 0o644); err != nil {
		return fmt.Errorf("write hnsw metadata: %w", err)
	}
	return nil
}

// Load replaces the in-memory graph with the one saved at path.
func (s *HNSWStore) Load(path string) error {
	data, err := os.ReadFile(path + ".meta")
	if err != nil {
		return fmt.Errorf("read hnsw metadata: %w", err)
	}
	var meta hnswMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("decode hnsw metadata: %w", err)
	}
	if meta.Version != 1 {
		return fmt.Errorf("unsupported hnsw metadata version %d", meta.Version)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer file.Close()

	graph := newGraph(meta.Config)
	if err := graph.Import(bufio.NewReader(file)); err != nil {
		return fmt.Errorf("failed to import graph: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}
	if meta.Config.Dimensions != s.config.Dimensions {
		return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: meta.Config.Dimensions}
	}

	s.graph = graph
	s.config = meta.Config
	s.idMap = meta.IDMap
	if s.idMap == nil {
		s.idMap = make(map[string]uint64)
	}
	s.keyMap = make(map[uint64]string, len(s.idMap))
	for id, key := range s.idMap {
		s.keyMap[key] = id
	}
	s.nextKey = meta.NextKey
	return nil
}

// Close releases the graph.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.graph = nil
	return nil
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// distanceToScore maps cosine distance [0,2] or l2 distance [0,inf) to a
// similarity in [0,1].
func distanceToScore(distance float32, metric string) float32 {
	if metric == "l2" {
		return 1.0 / (1.0 + distance)
	}
	return 1.0 - distance/2.0
}
