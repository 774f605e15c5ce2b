package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
)

func refundCorpus() ([][]string, []string) {
	return [][]string{
			{"refund", "policy", "details"},
			{"shipping", "timelines"},
			{"refund", "timelines", "and", "eligibility"},
		}, []string{
			"/corpus/a.txt",
			"/corpus/b.txt",
			"/corpus/c.txt",
		}
}

// =============================================================================
// Scoring
// =============================================================================

func TestBM25Model_Score_MatchesOkapi(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))

	scores, err := m.Score([]string{"refund", "eligibility"})

	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.InDelta(t, 0.054731316832070435, scores[0], 1e-12)
	assert.InDelta(t, 0.0, scores[1], 1e-12)
	assert.InDelta(t, 0.491788643998314, scores[2], 1e-12)
}

func TestBM25Model_Score_NegativeIDFIsFloored(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))

	// "refund" occurs in 2 of 3 documents, which gives a negative raw IDF.
	scores, err := m.Score([]string{"refund"})
	require.NoError(t, err)
	assert.Greater(t, scores[0], 0.0)
	assert.Greater(t, scores[2], 0.0)
}

func TestBM25Model_Score_RepeatedTokensAccumulate(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))

	once, err := m.Score([]string{"eligibility"})
	require.NoError(t, err)
	twice, err := m.Score([]string{"eligibility", "eligibility"})
	require.NoError(t, err)

	assert.InDelta(t, 2*once[2], twice[2], 1e-12)
}

func TestBM25Model_Score_UnknownTokens(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))

	scores, err := m.Score([]string{"zebra"})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, scores)
}

func TestBM25Model_Score_BeforeTrain(t *testing.T) {
	m := NewBM25Model(DefaultBM25Config())

	_, err := m.Score([]string{"refund"})

	assert.True(t, errors.Is(err, dserrors.ErrNotReady))
	assert.False(t, m.Ready())
}

func TestBM25Model_EmptyCorpus(t *testing.T) {
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(nil, nil))

	scores, err := m.Score([]string{"anything"})

	require.NoError(t, err)
	assert.Empty(t, scores)
	assert.Empty(t, TopN(scores, 10))
	assert.Equal(t, 0, m.Len())
}

func TestBM25Model_Train_ReplacesPreviousModel(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))
	require.NoError(t, m.Train([][]string{{"solo", "document"}}, []string{"/x"}))

	scores, err := m.Score([]string{"refund"})
	require.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.Equal(t, []string{"/x"}, m.DocMap())
}

func TestBM25Model_Train_DocMapLengthMismatch(t *testing.T) {
	m := NewBM25Model(DefaultBM25Config())
	err := m.Train([][]string{{"a"}, {"b"}}, []string{"/only-one"})
	assert.Error(t, err)
}

// =============================================================================
// TopN and Resolve
// =============================================================================

func TestTopN(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		n      int
		want   []int
	}{
		{"descending", []float64{0.1, 0.9, 0.5}, 3, []int{1, 2, 0}},
		{"ties keep lower ordinal first", []float64{0.5, 0.7, 0.5, 0.7}, 4, []int{1, 3, 0, 2}},
		{"truncates", []float64{0.1, 0.9, 0.5}, 1, []int{1}},
		{"n beyond length", []float64{0.2, 0.1}, 10, []int{0, 1}},
		{"zero n", []float64{0.2}, 0, []int{}},
		{"empty", nil, 5, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TopN(tt.scores, tt.n))
		})
	}
}

func TestBM25Model_Resolve(t *testing.T) {
	corpus, docMap := refundCorpus()
	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))

	assert.Equal(t, []string{"/corpus/c.txt", "/corpus/a.txt"}, m.Resolve([]int{2, 0, 7, -1}))
}

// =============================================================================
// Persistence
// =============================================================================

func TestBM25Model_SaveLoad_PreservesScores(t *testing.T) {
	corpus, docMap := refundCorpus()
	path := filepath.Join(t.TempDir(), "sparse.json")

	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))
	require.NoError(t, m.Save(path))

	loaded := NewBM25Model(DefaultBM25Config())
	require.NoError(t, loaded.Load(path))

	want, err := m.Score([]string{"refund", "eligibility"})
	require.NoError(t, err)
	got, err := loaded.Score([]string{"refund", "eligibility"})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, docMap, loaded.DocMap())
}

func TestBM25Model_SaveLoad_KeepsGeneration(t *testing.T) {
	corpus, docMap := refundCorpus()
	path := filepath.Join(t.TempDir(), "sparse.json")

	m := NewBM25Model(DefaultBM25Config())
	require.NoError(t, m.Train(corpus, docMap))
	m.SetGeneration("gen-2")
	require.NoError(t, m.Save(path))

	loaded := NewBM25Model(DefaultBM25Config())
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, "gen-2", loaded.Generation())
}

func TestBM25Model_Save_Untrained(t *testing.T) {
	m := NewBM25Model(DefaultBM25Config())
	err := m.Save(filepath.Join(t.TempDir(), "sparse.json"))
	assert.True(t, errors.Is(err, dserrors.ErrNotReady))
}

func TestBM25Model_Load_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file is not ready", func(t *testing.T) {
		err := NewBM25Model(DefaultBM25Config()).Load(filepath.Join(dir, "absent.json"))
		assert.True(t, errors.Is(err, dserrors.ErrNotReady))
	})

	t.Run("garbage is corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "garbage.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		err := NewBM25Model(DefaultBM25Config()).Load(path)
		assert.Equal(t, dserrors.ErrCodeCorruptIndex, dserrors.GetCode(err))
	})

	t.Run("unknown version is corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "future.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":99}`), 0o644))
		err := NewBM25Model(DefaultBM25Config()).Load(path)
		assert.Equal(t, dserrors.ErrCodeCorruptIndex, dserrors.GetCode(err))
	})

	t.Run("inconsistent arrays are corrupt", func(t *testing.T) {
		path := filepath.Join(dir, "short.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"version":1,"corpus_size":2,"doc_len":[1],"doc_freqs":[{"a":1}]}`), 0o644))
		err := NewBM25Model(DefaultBM25Config()).Load(path)
		assert.Equal(t, dserrors.ErrCodeCorruptIndex, dserrors.GetCode(err))
	})
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"refund", "policy:", "details"}, Tokenize("  Refund\tPOLICY:\n details "))
	assert.Empty(t, Tokenize("   "))
}
