package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/config"
)

func TestNewEmbedder_StaticWithCache(t *testing.T) {
	cfg := config.NewConfig().Embeddings

	e, err := NewEmbedder(context.Background(), cfg)

	require.NoError(t, err)
	cached, ok := e.(*CachedEmbedder)
	require.True(t, ok)
	assert.IsType(t, &StaticEmbedder{}, cached.Inner())
	assert.Equal(t, 256, e.Dimensions())
}

func TestNewEmbedder_NoCache(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.CacheSize = 0
	cfg.Dimensions = 32

	e, err := NewEmbedder(context.Background(), cfg)

	require.NoError(t, err)
	assert.IsType(t, &StaticEmbedder{}, e)
	assert.Equal(t, 32, e.Dimensions())
}

func TestNewEmbedder_UnknownProvider(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "word2vec"

	_, err := NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}

func TestNewEmbedder_OllamaUnreachable(t *testing.T) {
	cfg := config.NewConfig().Embeddings
	cfg.Provider = "ollama"
	cfg.OllamaHost = "http://127.0.0.1:1"

	_, err := NewEmbedder(context.Background(), cfg)
	assert.Error(t, err)
}
