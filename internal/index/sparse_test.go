package index

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/store"
)

func trainedSparse(t *testing.T, dir string) *SparseIndex {
	t.Helper()
	s := NewSparseIndex(dir)
	corpus := [][]string{
		store.Tokenize("shipping times and carriers"),
		store.Tokenize("refund policy refund window"),
		store.Tokenize("warranty claims"),
	}
	require.NoError(t, s.Train(corpus, []string{"/c/a.txt", "/c/b.txt", "/c/c.txt"}))
	return s
}

func TestSparseIndex_MissingFileIsNotReady(t *testing.T) {
	s := NewSparseIndex(t.TempDir())

	_, err := s.Retrieve(context.Background(), "refund", 5)

	assert.ErrorIs(t, err, dserrors.ErrNotReady)
}

func TestSparseIndex_RetrieveRanksAndCaps(t *testing.T) {
	s := trainedSparse(t, t.TempDir())

	ids, err := s.Retrieve(context.Background(), "Refund", 50)

	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, "/c/b.txt", ids[0])
	// zero-score documents keep ordinal order
	assert.Equal(t, []string{"/c/a.txt", "/c/c.txt"}, ids[1:])
}

func TestSparseIndex_SaveThenLazyLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, trainedSparse(t, dir).Save())

	// Given: a fresh process view of the same data dir
	reloaded := NewSparseIndex(dir)

	// When: querying
	ids, err := reloaded.Retrieve(context.Background(), "warranty", 1)

	// Then: the persisted model answers
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/c.txt"}, ids)
	assert.Equal(t, 3, reloaded.Len())
}

func TestSparseIndex_LoadsOnlyOnce(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, trainedSparse(t, dir).Save())
	s := NewSparseIndex(dir)

	_, err := s.Retrieve(context.Background(), "refund", 1)
	require.NoError(t, err)

	// Removing the file after the first load does not matter
	require.NoError(t, os.Remove(s.Path()))
	ids, err := s.Retrieve(context.Background(), "refund", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/b.txt"}, ids)
}

func TestSparseIndex_TrainedModelBeatsDisk(t *testing.T) {
	// Given: an older model on disk
	dir := t.TempDir()
	require.NoError(t, trainedSparse(t, dir).Save())

	// When: a fresher model is trained in memory before any load
	s := NewSparseIndex(dir)
	require.NoError(t, s.Train([][]string{{"invoice"}}, []string{"/c/new.txt"}))

	// Then: the in-memory model is used
	ids, err := s.Retrieve(context.Background(), "invoice", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/new.txt"}, ids)
}

func TestSparseIndex_TrainAfterFailedLoad(t *testing.T) {
	s := NewSparseIndex(t.TempDir())
	_, err := s.Retrieve(context.Background(), "x", 1)
	require.ErrorIs(t, err, dserrors.ErrNotReady)

	require.NoError(t, s.Train([][]string{{"x"}}, []string{"/c/x.txt"}))

	ids, err := s.Retrieve(context.Background(), "x", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/x.txt"}, ids)
}

func TestSparseIndex_RetriesLoadAfterMissingFile(t *testing.T) {
	// Given: a reader that found no persisted model
	dir := t.TempDir()
	reader := NewSparseIndex(dir)
	_, err := reader.Retrieve(context.Background(), "refund", 1)
	require.ErrorIs(t, err, dserrors.ErrNotReady)

	// When: another writer on the same data dir builds and saves
	require.NoError(t, trainedSparse(t, dir).Save())

	// Then: the reader loads it on the next call
	ids, err := reader.Retrieve(context.Background(), "refund", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/b.txt"}, ids)
}

func TestSparseIndex_CommitWritesGenerationLast(t *testing.T) {
	dir := t.TempDir()
	s := trainedSparse(t, dir)

	gen, err := ReadGeneration(dir)
	require.NoError(t, err)
	assert.Empty(t, gen)

	require.NoError(t, s.Commit("gen-1"))

	gen, err = ReadGeneration(dir)
	require.NoError(t, err)
	assert.Equal(t, "gen-1", gen)
	m, err := NewSparseIndex(dir).ReadModel()
	require.NoError(t, err)
	assert.Equal(t, "gen-1", m.Generation())
}

func TestSparseIndex_InstallReplacesLoadedModel(t *testing.T) {
	// Given: a reader serving an older model
	dir := t.TempDir()
	require.NoError(t, trainedSparse(t, dir).Commit("gen-1"))
	reader := NewSparseIndex(dir)
	_, err := reader.Retrieve(context.Background(), "refund", 1)
	require.NoError(t, err)

	// When: a newer build is committed and the reader reloads
	writer := NewSparseIndex(dir)
	require.NoError(t, writer.Train([][]string{{"invoice"}}, []string{"/c/new.txt"}))
	require.NoError(t, writer.Commit("gen-2"))
	m, err := reader.ReadModel()
	require.NoError(t, err)
	reader.Install(m)

	// Then: the newer model answers
	ids, err := reader.Retrieve(context.Background(), "invoice", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"/c/new.txt"}, ids)
	assert.Equal(t, "gen-2", reader.Generation())
}

func TestSparseIndex_EmptyCorpus(t *testing.T) {
	s := NewSparseIndex(t.TempDir())
	require.NoError(t, s.Train([][]string{}, []string{}))

	ids, err := s.Retrieve(context.Background(), "anything", 10)

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestSparseIndex_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	s := NewSparseIndex(dir)
	require.NoError(t, os.WriteFile(s.Path(), []byte(`{"version": 99}`), 0o644))

	_, err := s.Retrieve(context.Background(), "x", 1)

	assert.Equal(t, dserrors.ErrCodeCorruptIndex, dserrors.GetCode(err))
}
