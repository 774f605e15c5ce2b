package embed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedEmbedder_EmbedHitsCache(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.Embed(ctx, "refund")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "refund")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), inner.embedCalls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	inner := &mockEmbedder{dims: 4}
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	_, err := c.Embed(ctx, "cached")
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(ctx, []string{"cached", "fresh-one", "fresh-two"})
	require.NoError(t, err)

	require.Len(t, vecs, 3)
	assert.Equal(t, float32(len("fresh-two")), vecs[2][0])
	assert.Equal(t, int32(1), inner.batchCalls.Load())
	assert.Equal(t, int32(2), inner.batchTexts.Load())

	_, err = c.EmbedBatch(ctx, []string{"fresh-one", "cached"})
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.batchCalls.Load())
}

func TestCachedEmbedder_ErrorsAreNotCached(t *testing.T) {
	inner := &mockEmbedder{dims: 4, err: errors.New("down")}
	c := NewCachedEmbedder(inner, 10)

	_, err := c.Embed(context.Background(), "q")
	assert.Error(t, err)
	assert.Equal(t, 0, c.Len())
}

func TestCachedEmbedder_EvictsLRU(t *testing.T) {
	inner := &mockEmbedder{dims: 2}
	c := NewCachedEmbedder(inner, 2)
	ctx := context.Background()

	for _, q := range []string{"a", "b", "c", "a"} {
		_, err := c.Embed(ctx, q)
		require.NoError(t, err)
	}

	assert.Equal(t, int32(4), inner.embedCalls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := &mockEmbedder{dims: 7}
	c := NewCachedEmbedder(inner, 0)

	assert.Equal(t, 7, c.Dimensions())
	assert.Equal(t, "mock", c.ModelName())
	assert.True(t, c.Available(context.Background()))
	assert.Same(t, inner, c.Inner())
}
