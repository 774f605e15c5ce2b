package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(id string, vec ...float32) VectorRecord {
	return VectorRecord{
		ID:     id,
		Vector: vec,
		Body:   "body of " + id,
		Metadata: DocumentMetadata{
			Filename: id,
			FileType: KindText,
			Extra:    map[string]any{"lines": 3},
		},
	}
}

func TestLocalVectorStore_UpsertQuery(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalVectorStore(ctx, t.TempDir(), 3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert(ctx, []VectorRecord{
		record("a", 1, 0, 0),
		record("b", 0, 1, 0),
	}))

	hits, err := s.Query(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
	assert.Equal(t, "body of b", hits[0].Body)

	meta, err := s.Docs().Metadata(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, KindText, meta.FileType)
	assert.EqualValues(t, 3, meta.Extra["lines"])
}

func TestLocalVectorStore_BodiesSkipsUnknownIDs(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalVectorStore(ctx, t.TempDir(), 3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Upsert(ctx, []VectorRecord{record("a", 1, 0, 0)}))

	bodies, err := s.Bodies(ctx, []string{"a", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "body of a"}, bodies)
}

func TestLocalVectorStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalVectorStore(ctx, t.TempDir(), 3)
	require.NoError(t, err)
	defer s.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Upsert(ctx, []VectorRecord{record("a", 1, 0, 0), record("b", 0, 1, 0)}))
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := s.Query(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestLocalVectorStore_ReopenRestoresGraph(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLocalVectorStore(ctx, dir, 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []VectorRecord{record("a", 1, 0, 0), record("b", 0, 1, 0)}))
	require.NoError(t, s.Delete(ctx, []string{"a"}))
	require.NoError(t, s.Close())

	reopened, err := OpenLocalVectorStore(ctx, dir, 3)
	require.NoError(t, err)
	defer reopened.Close()

	ids, err := reopened.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids)

	hits, err := reopened.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

func TestLocalVectorStore_ReloadPicksUpOtherWriter(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	// Given: a reader opened over an indexed directory
	writer, err := OpenLocalVectorStore(ctx, dir, 3)
	require.NoError(t, err)
	defer writer.Close()
	require.NoError(t, writer.Upsert(ctx, []VectorRecord{record("a", 1, 0, 0), record("b", 0, 1, 0)}))

	reader, err := OpenLocalVectorStore(ctx, dir, 3)
	require.NoError(t, err)
	defer reader.Close()

	// When: the writer replaces a with c and the reader reloads
	require.NoError(t, writer.Upsert(ctx, []VectorRecord{record("c", 0, 0, 1)}))
	require.NoError(t, writer.Delete(ctx, []string{"a"}))
	require.NoError(t, reader.Reload(ctx))

	// Then: the reader's graph matches the new table
	hits, err := reader.Query(ctx, []float32{0, 0, 1}, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "c", hits[0].ID)
	for _, h := range hits {
		assert.NotEqual(t, "a", h.ID)
	}
}

func TestLocalVectorStore_RejectsDimensionChange(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenLocalVectorStore(ctx, dir, 3)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, []VectorRecord{record("a", 1, 0, 0)}))
	require.NoError(t, s.Close())

	_, err = OpenLocalVectorStore(ctx, dir, 4)
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

func TestLocalVectorStore_RejectsNonPrimitiveMetadata(t *testing.T) {
	ctx := context.Background()
	s, err := OpenLocalVectorStore(ctx, t.TempDir(), 3)
	require.NoError(t, err)
	defer s.Close()

	r := record("a", 1, 0, 0)
	r.Metadata.Extra = map[string]any{"nested": map[string]string{"k": "v"}}

	assert.Error(t, s.Upsert(ctx, []VectorRecord{r}))
}

func TestValidateExtra(t *testing.T) {
	assert.NoError(t, ValidateExtra(nil))
	assert.NoError(t, ValidateExtra(map[string]any{"s": "x", "b": true, "i": 1, "u": uint8(2), "f": 1.5, "n": nil}))
	assert.Error(t, ValidateExtra(map[string]any{"slice": []int{1}}))
}
