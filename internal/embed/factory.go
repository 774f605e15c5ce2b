package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Aman-CERP/docsift/internal/config"
)

// NewEmbedder builds the configured embedding provider, wrapped in an LRU
// cache when embeddings.cache_size is positive.
func NewEmbedder(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var inner Embedder

	switch strings.ToLower(cfg.Provider) {
	case "", "static":
		inner = NewStaticEmbedder(cfg.Dimensions)
	case "ollama":
		e, err := NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: 0,
			BatchSize:  cfg.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		inner = e
	default:
		return nil, fmt.Errorf("unknown embeddings provider %q", cfg.Provider)
	}

	slog.Debug("embedder_ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	if cfg.CacheSize > 0 {
		return NewCachedEmbedder(inner, cfg.CacheSize), nil
	}
	return inner, nil
}
