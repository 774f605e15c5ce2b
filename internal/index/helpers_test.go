package index

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/embed"
	"github.com/Aman-CERP/docsift/internal/store"
)

// mockEmbedder wraps the static embedder and counts provider calls.
type mockEmbedder struct {
	inner      *embed.StaticEmbedder
	embedCalls atomic.Int32
	batchCalls atomic.Int32
	batchTexts atomic.Int32
	err        error
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{inner: embed.NewStaticEmbedder(embed.StaticDimensions)}
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.embedCalls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.Embed(ctx, text)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.batchCalls.Add(1)
	m.batchTexts.Add(int32(len(texts)))
	if m.err != nil {
		return nil, m.err
	}
	return m.inner.EmbedBatch(ctx, texts)
}

func (m *mockEmbedder) Dimensions() int                  { return m.inner.Dimensions() }
func (m *mockEmbedder) ModelName() string                { return "mock" }
func (m *mockEmbedder) Available(_ context.Context) bool { return true }
func (m *mockEmbedder) Close() error                     { return nil }

// testIndices holds a dense and sparse index over one data directory.
type testIndices struct {
	dataDir  string
	embedder *mockEmbedder
	vectors  *store.LocalVectorStore
	dense    *DenseIndex
	sparse   *SparseIndex
}

func newTestIndices(t *testing.T, batchSize int) *testIndices {
	t.Helper()
	dataDir := t.TempDir()
	emb := newMockEmbedder()

	vectors, err := store.OpenLocalVectorStore(context.Background(), dataDir, emb.Dimensions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = vectors.Close() })

	dense, err := NewDenseIndex(emb, vectors, batchSize)
	require.NoError(t, err)

	return &testIndices{
		dataDir:  dataDir,
		embedder: emb,
		vectors:  vectors,
		dense:    dense,
		sparse:   NewSparseIndex(dataDir),
	}
}

func (ti *testIndices) builder(t *testing.T) *Builder {
	t.Helper()
	b, err := NewBuilder(ti.dense, ti.sparse, BuilderConfig{Extract: DefaultExtractConfig()})
	require.NoError(t, err)
	return b
}

func doc(id, body string) store.DocumentRecord {
	return store.DocumentRecord{
		ID:   id,
		Body: body,
		Kind: store.KindText,
		Metadata: store.DocumentMetadata{
			Filename: id,
			FileType: store.KindText,
		},
	}
}
