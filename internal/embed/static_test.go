package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestStaticEmbedder_Deterministic(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	a, err := e.Embed(ctx, "refund policy details")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "refund policy details")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, StaticDimensions)
}

func TestStaticEmbedder_UnitLength(t *testing.T) {
	e := NewStaticEmbedder(64)

	v, err := e.Embed(context.Background(), "Shipping timelines for international orders")
	require.NoError(t, err)

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-5)
}

func TestStaticEmbedder_EmptyTextIsZero(t *testing.T) {
	e := NewStaticEmbedder(16)
	v, err := e.Embed(context.Background(), "   ")
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v)
}

func TestStaticEmbedder_LexicalOverlapIsCloser(t *testing.T) {
	e := NewStaticEmbedder(0)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "refund eligibility")
	near, _ := e.Embed(ctx, "refund timelines and eligibility rules")
	far, _ := e.Embed(ctx, "shipping timelines for parcels")

	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestStaticEmbedder_Batch(t *testing.T) {
	e := NewStaticEmbedder(32)
	ctx := context.Background()

	vecs, err := e.EmbedBatch(ctx, []string{"one", "two"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)

	single, _ := e.Embed(ctx, "two")
	assert.Equal(t, single, vecs[1])
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder(8)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "x")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
	assert.Equal(t, "static-8", e.ModelName())
}
