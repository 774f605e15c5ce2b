package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Aman-CERP/docsift/internal/config"
)

// NewReranker builds the configured reranker provider.
func NewReranker(ctx context.Context, cfg config.RerankerConfig) (Reranker, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "lexical":
		return NewLexicalReranker(), nil
	case "http":
		timeout := DefaultRerankerTimeout
		if cfg.Timeout != "" {
			d, err := time.ParseDuration(cfg.Timeout)
			if err != nil {
				return nil, fmt.Errorf("reranker.timeout: %w", err)
			}
			timeout = d
		}
		return NewHTTPReranker(ctx, HTTPRerankerConfig{
			Endpoint: cfg.Endpoint,
			Model:    cfg.Model,
			Timeout:  timeout,
		})
	default:
		return nil, fmt.Errorf("unknown reranker provider %q", cfg.Provider)
	}
}
