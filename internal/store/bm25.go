package store

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/renameio"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

// SparseFormatVersion is the on-disk version of the BM25 model file.
const SparseFormatVersion = 1

// BM25 Okapi parameters.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// BM25Config holds the scoring parameters.
type BM25Config struct {
	K1      float64
	B       float64
	Epsilon float64
}

// DefaultBM25Config returns k1=1.5, b=0.75, epsilon=0.25.
func DefaultBM25Config() BM25Config {
	return BM25Config{K1: DefaultK1, B: DefaultB, Epsilon: DefaultEpsilon}
}

// BM25Model is an Okapi BM25 model over a tokenized corpus. Documents are
// addressed by ordinal (their position in the training corpus); the doc map
// translates ordinals back to document IDs.
//
// Negative IDF values (terms in more than half the corpus) are floored to
// epsilon times the average IDF.
type BM25Model struct {
	mu      sync.RWMutex
	config  BM25Config
	trained bool

	corpusSize int
	avgdl      float64
	docLen     []int
	docFreqs   []map[string]int
	idf        map[string]float64
	docMap     []string
	generation string
}

// NewBM25Model returns an untrained model.
func NewBM25Model(cfg BM25Config) *BM25Model {
	if cfg.K1 == 0 && cfg.B == 0 && cfg.Epsilon == 0 {
		cfg = DefaultBM25Config()
	}
	return &BM25Model{config: cfg}
}

// Train replaces any previous state with statistics computed over corpus.
// docMap[i] is the document ID of corpus[i]; pass nil to leave it empty.
func (m *BM25Model) Train(corpus [][]string, docMap []string) error {
	if docMap != nil && len(docMap) != len(corpus) {
		return fmt.Errorf("doc map length %d does not match corpus length %d", len(docMap), len(corpus))
	}

	docLen := make([]int, len(corpus))
	docFreqs := make([]map[string]int, len(corpus))
	nd := make(map[string]int)
	total := 0

	for i, doc := range corpus {
		docLen[i] = len(doc)
		total += len(doc)
		freqs := make(map[string]int, len(doc))
		for _, tok := range doc {
			freqs[tok]++
		}
		docFreqs[i] = freqs
		for tok := range freqs {
			nd[tok]++
		}
	}

	var avgdl float64
	if len(corpus) > 0 {
		avgdl = float64(total) / float64(len(corpus))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.corpusSize = len(corpus)
	m.avgdl = avgdl
	m.docLen = docLen
	m.docFreqs = docFreqs
	m.idf = computeIDF(nd, len(corpus), m.config.Epsilon)
	m.docMap = append([]string(nil), docMap...)
	m.trained = true
	return nil
}

func computeIDF(nd map[string]int, corpusSize int, epsilon float64) map[string]float64 {
	idf := make(map[string]float64, len(nd))
	if len(nd) == 0 {
		return idf
	}

	var sum float64
	var negative []string
	for tok, n := range nd {
		v := math.Log(float64(corpusSize-n)+0.5) - math.Log(float64(n)+0.5)
		idf[tok] = v
		sum += v
		if v < 0 {
			negative = append(negative, tok)
		}
	}

	floor := epsilon * (sum / float64(len(idf)))
	for _, tok := range negative {
		idf[tok] = floor
	}
	return idf
}

// Ready reports whether the model has been trained or loaded.
func (m *BM25Model) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trained
}

// Len returns the number of documents in the model.
func (m *BM25Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.corpusSize
}

// Score returns one BM25 score per corpus ordinal. Repeated query tokens
// contribute once per occurrence.
func (m *BM25Model) Score(query []string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.trained {
		return nil, dserrors.ErrNotReady
	}

	scores := make([]float64, m.corpusSize)
	k1, b := m.config.K1, m.config.B
	for _, q := range query {
		idf, ok := m.idf[q]
		if !ok {
			continue
		}
		for i, freqs := range m.docFreqs {
			tf := float64(freqs[q])
			if tf == 0 {
				continue
			}
			lenNorm := 0.0
			if m.avgdl > 0 {
				lenNorm = float64(m.docLen[i]) / m.avgdl
			}
			scores[i] += idf * (tf * (k1 + 1) / (tf + k1*(1-b+b*lenNorm)))
		}
	}
	return scores, nil
}

// TopN returns the ordinals of the n highest scores, descending. Ties are
// broken by lower ordinal first.
func TopN(scores []float64, n int) []int {
	if n <= 0 || len(scores) == 0 {
		return []int{}
	}
	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if n > len(order) {
		n = len(order)
	}
	return order[:n]
}

// Resolve maps ordinals to document IDs, dropping any outside the doc map.
func (m *BM25Model) Resolve(ordinals []int) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(ordinals))
	for _, o := range ordinals {
		if o >= 0 && o < len(m.docMap) {
			ids = append(ids, m.docMap[o])
		}
	}
	return ids
}

// DocMap returns a copy of the ordinal -> document ID map.
func (m *BM25Model) DocMap() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.docMap...)
}

// sparseFile is the persisted form of a BM25Model.
type sparseFile struct {
	Version    int                `json:"version"`
	K1         float64            `json:"k1"`
	B          float64            `json:"b"`
	Epsilon    float64            `json:"epsilon"`
	CorpusSize int                `json:"corpus_size"`
	AvgDL      float64            `json:"avgdl"`
	DocLen     []int              `json:"doc_len"`
	DocFreqs   []map[string]int   `json:"doc_freqs"`
	IDF        map[string]float64 `json:"idf"`
	DocMap     []string           `json:"doc_map"`
	Generation string             `json:"generation,omitempty"`
}

// Save atomically writes the model and doc map to path.
func (m *BM25Model) Save(path string) error {
	m.mu.RLock()
	if !m.trained {
		m.mu.RUnlock()
		return dserrors.ErrNotReady
	}
	data, err := json.Marshal(sparseFile{
		Version:    SparseFormatVersion,
		K1:         m.config.K1,
		B:          m.config.B,
		Epsilon:    m.config.Epsilon,
		CorpusSize: m.corpusSize,
		AvgDL:      m.avgdl,
		DocLen:     m.docLen,
		DocFreqs:   m.docFreqs,
		IDF:        m.idf,
		DocMap:     m.docMap,
		Generation: m.generation,
	})
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode sparse index: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sparse index dir: %w", err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write sparse index: %w", err)
	}
	return nil
}

// Load replaces the model with the one persisted at path. A missing file
// yields ErrNotReady; an unreadable or unknown-version file yields a
// corrupt-index error.
func (m *BM25Model) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return dserrors.New(dserrors.ErrCodeIndexNotReady, "sparse index not found at "+path, err)
		}
		return fmt.Errorf("read sparse index: %w", err)
	}

	var f sparseFile
	if err := json.Unmarshal(data, &f); err != nil {
		return dserrors.New(dserrors.ErrCodeCorruptIndex, "decode sparse index", err)
	}
	if f.Version != SparseFormatVersion {
		return dserrors.New(dserrors.ErrCodeCorruptIndex,
			fmt.Sprintf("unsupported sparse index version %d", f.Version), nil)
	}
	if len(f.DocLen) != f.CorpusSize || len(f.DocFreqs) != f.CorpusSize ||
		(len(f.DocMap) != 0 && len(f.DocMap) != f.CorpusSize) {
		return dserrors.New(dserrors.ErrCodeCorruptIndex, "sparse index arrays do not match corpus size", nil)
	}
	if f.IDF == nil {
		f.IDF = map[string]float64{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = BM25Config{K1: f.K1, B: f.B, Epsilon: f.Epsilon}
	m.corpusSize = f.CorpusSize
	m.avgdl = f.AvgDL
	m.docLen = f.DocLen
	m.docFreqs = f.DocFreqs
	m.idf = f.IDF
	m.docMap = f.DocMap
	m.generation = f.Generation
	m.trained = true
	return nil
}

// SetGeneration tags the model with the build that produced it. The tag is
// persisted by Save.
func (m *BM25Model) SetGeneration(gen string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation = gen
}

// Generation returns the build tag, or "" for an untagged model.
func (m *BM25Model) Generation() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}
