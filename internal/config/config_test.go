package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the user config lookup at an empty directory.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()

	require.NotNil(t, cfg)
	assert.Equal(t, 50, cfg.Index.MinTextChars)
	assert.Equal(t, 100, cfg.Index.MinPDFChars)
	assert.Equal(t, 5000, cfg.Index.MaxChars)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	assert.Equal(t, "local", cfg.Search.VectorBackend)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 100, cfg.Embeddings.BatchSize)
	assert.Equal(t, "lexical", cfg.Reranker.Provider)
	assert.Equal(t, 1000, cfg.Metrics.Retention)
	assert.Equal(t, "json", cfg.Metrics.Backend)
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
	assert.NoError(t, cfg.Validate())
}

func TestConfig_DataDir(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("/corpus", ".docsift"), cfg.DataDir("/corpus"))

	cfg.Paths.DataDir = "state"
	assert.Equal(t, filepath.Join("/corpus", "state"), cfg.DataDir("/corpus"))

	cfg.Paths.DataDir = "/var/lib/docsift"
	assert.Equal(t, "/var/lib/docsift", cfg.DataDir("/corpus"))
}

func TestConfig_Durations(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
	assert.Equal(t, 30*time.Second, cfg.RerankTimeout())

	cfg.Index.WatchDebounce = "garbage"
	cfg.Reranker.Timeout = "2s"
	assert.Equal(t, 500*time.Millisecond, cfg.WatchDebounce())
	assert.Equal(t, 2*time.Second, cfg.RerankTimeout())
}

// =============================================================================
// Layered loading
// =============================================================================

func TestLoad_NoFiles_UsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load(t.TempDir())

	require.NoError(t, err)
	assert.Equal(t, NewConfig().Search, cfg.Search)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	require.NoError(t, os.MkdirAll(filepath.Join(xdg, "docsift"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(xdg, "docsift", "config.yaml"),
		[]byte("search:\n  default_top_k: 5\nembeddings:\n  provider: ollama\n"), 0o644))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("search:\n  default_top_k: 7\npaths:\n  exclude: [\"**/*.log\"]\n"), 0o644))

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Search.DefaultTopK)
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Contains(t, cfg.Paths.Exclude, "**/*.log")
	assert.Contains(t, cfg.Paths.Exclude, "**/.git/**")
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName),
		[]byte("metrics:\n  backend: json\n"), 0o644))
	t.Setenv("DOCSIFT_METRICS_BACKEND", "sqlite")
	t.Setenv("DOCSIFT_QDRANT_PORT", "7000")

	cfg, err := Load(dir)

	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Metrics.Backend)
	assert.Equal(t, 7000, cfg.Qdrant.Port)
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("search: [unclosed"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"top_k above max", func(c *Config) { c.Search.DefaultTopK = 51 }},
		{"top_k zero", func(c *Config) { c.Search.DefaultTopK = 0 }},
		{"unknown backend", func(c *Config) { c.Search.VectorBackend = "faiss" }},
		{"unknown embedder", func(c *Config) { c.Embeddings.Provider = "llama" }},
		{"unknown reranker", func(c *Config) { c.Reranker.Provider = "cohere" }},
		{"unknown metrics backend", func(c *Config) { c.Metrics.Backend = "redis" }},
		{"zero retention", func(c *Config) { c.Metrics.Retention = 0 }},
		{"zero max chars", func(c *Config) { c.Index.MaxChars = 0 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "trace" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfg := NewConfig()
	cfg.Search.DefaultTopK = 3

	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Search.DefaultTopK)
}
