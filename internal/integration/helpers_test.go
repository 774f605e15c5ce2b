// Package integration exercises docsift end to end: a real corpus on disk,
// the offline providers, both indices and the MCP surface.
package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docsift/internal/app"
	"github.com/Aman-CERP/docsift/internal/config"
)

const (
	policyText   = "Refund policy details: returned items are accepted in original packaging with the receipt attached."
	shippingText = "Shipping timelines: orders leave the warehouse within two business days and arrive within a week."
	eligibleText = "Refund timelines and eligibility: a refund is issued within ten business days once eligibility is confirmed by support."
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// offlineConfig uses the static embedder and lexical reranker.
func offlineConfig() *config.Config {
	cfg := config.NewConfig()
	cfg.Embeddings.Provider = "static"
	cfg.Reranker.Provider = "lexical"
	return cfg
}

func openApp(t *testing.T, root string, cfg *config.Config) *app.App {
	t.Helper()
	a, err := app.Open(context.Background(), root, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func buildApp(t *testing.T, root string, cfg *config.Config) *app.App {
	t.Helper()
	a := openApp(t, root, cfg)
	_, err := a.Build(context.Background())
	require.NoError(t, err)
	return a
}
