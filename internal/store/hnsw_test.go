package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T) *HNSWStore {
	t.Helper()
	s, err := NewHNSWStore(DefaultVectorStoreConfig(3))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHNSWStore_SearchOrdersBySimilarity(t *testing.T) {
	s := newTestHNSW(t)
	require.NoError(t, s.Add(
		[]string{"x", "y", "z"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}},
	))

	results, err := s.Search([]float32{1, 0, 0}, 2)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, "z", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestHNSWStore_ReplaceKeepsSingleEntry(t *testing.T) {
	s := newTestHNSW(t)
	require.NoError(t, s.Add([]string{"x"}, [][]float32{{1, 0, 0}}))
	require.NoError(t, s.Add([]string{"x"}, [][]float32{{0, 1, 0}}))

	results, err := s.Search([]float32{0, 1, 0}, 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "x", results[0].ID)
	assert.Equal(t, 1, s.Count())
	assert.Equal(t, 1, s.Stats().Orphans)
}

func TestHNSWStore_DeleteAndRebuild(t *testing.T) {
	s := newTestHNSW(t)
	require.NoError(t, s.Add([]string{"x", "y"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	s.Delete([]string{"x"})

	assert.False(t, s.Contains("x"))
	assert.Equal(t, HNSWStats{ValidIDs: 1, GraphNodes: 2, Orphans: 1}, s.Stats())

	require.NoError(t, s.Rebuild([]string{"y"}, [][]float32{{0, 1, 0}}))
	assert.Equal(t, HNSWStats{ValidIDs: 1, GraphNodes: 1, Orphans: 0}, s.Stats())
}

func TestHNSWStore_DimensionMismatch(t *testing.T) {
	s := newTestHNSW(t)

	err := s.Add([]string{"x"}, [][]float32{{1, 0}})
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})

	_, err = s.Search([]float32{1}, 1)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestHNSWStore_EmptySearch(t *testing.T) {
	s := newTestHNSW(t)
	results, err := s.Search([]float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestHNSWStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), VectorsFileName)
	s := newTestHNSW(t)
	require.NoError(t, s.Add([]string{"x", "y"}, [][]float32{{1, 0, 0}, {0, 1, 0}}))
	require.NoError(t, s.Save(path))

	loaded := newTestHNSW(t)
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.Count())
	results, err := loaded.Search([]float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "y", results[0].ID)
}

func TestNewHNSWStore_RejectsZeroDimensions(t *testing.T) {
	_, err := NewHNSWStore(VectorStoreConfig{})
	assert.Error(t, err)
}
