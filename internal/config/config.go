// Package config loads docsift configuration from defaults, the user
// config file, the corpus-level .docsift.yaml, and DOCSIFT_* env vars.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-corpus configuration file.
const ProjectConfigName = ".docsift.yaml"

// DataDirName is the default data directory created inside the corpus root.
const DataDirName = ".docsift"

// Config represents the complete docsift configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Reranker   RerankerConfig   `yaml:"reranker" json:"reranker"`
	Qdrant     QdrantConfig     `yaml:"qdrant" json:"qdrant"`
	Metrics    MetricsConfig    `yaml:"metrics" json:"metrics"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// PathsConfig controls where state lives and what the scanner skips.
type PathsConfig struct {
	// DataDir holds index and metrics files. Empty means <root>/.docsift.
	DataDir string   `yaml:"data_dir" json:"data_dir"`
	Exclude []string `yaml:"exclude" json:"exclude"`
}

// IndexConfig holds extraction thresholds.
type IndexConfig struct {
	// MinTextChars discards code/text extractions at or below this length.
	MinTextChars int `yaml:"min_text_chars" json:"min_text_chars"`
	// MinPDFChars discards PDF extractions at or below this length.
	MinPDFChars int `yaml:"min_pdf_chars" json:"min_pdf_chars"`
	// MaxChars truncates extracted text.
	MaxChars      int    `yaml:"max_chars" json:"max_chars"`
	MaxFileSizeMB int    `yaml:"max_file_size_mb" json:"max_file_size_mb"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k" json:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k" json:"max_top_k"`
	// VectorBackend selects the dense substrate: "local" (hnsw+sqlite) or "qdrant".
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider is "static" (offline hash embeddings) or "ollama".
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`
	// CacheSize bounds the query embedding LRU. Zero disables caching.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// RerankerConfig configures the pairwise relevance model.
type RerankerConfig struct {
	// Provider is "lexical" (offline) or "http".
	Provider string `yaml:"provider" json:"provider"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
	Model    string `yaml:"model" json:"model"`
	Timeout  string `yaml:"timeout" json:"timeout"`
}

// QdrantConfig configures the qdrant vector backend.
type QdrantConfig struct {
	Host       string `yaml:"host" json:"host"`
	Port       int    `yaml:"port" json:"port"`
	Collection string `yaml:"collection" json:"collection"`
	APIKey     string `yaml:"api_key" json:"-"`
	UseTLS     bool   `yaml:"use_tls" json:"use_tls"`
}

// MetricsConfig configures the query metrics log.
type MetricsConfig struct {
	// Backend is "json" (metrics.json) or "sqlite" (metrics.db).
	Backend   string `yaml:"backend" json:"backend"`
	Retention int    `yaml:"retention" json:"retention"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	LogLevel    string `yaml:"log_level" json:"log_level"`
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
}

// NewConfig returns a configuration populated with defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			Exclude: []string{
				"**/.git/**",
				"**/" + DataDirName + "/**",
				"**/node_modules/**",
				"**/__pycache__/**",
				"**/.venv/**",
			},
		},
		Index: IndexConfig{
			MinTextChars:  50,
			MinPDFChars:   100,
			MaxChars:      5000,
			MaxFileSizeMB: 50,
			WatchDebounce: "500ms",
		},
		Search: SearchConfig{
			DefaultTopK:   10,
			MaxTopK:       50,
			VectorBackend: "local",
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Model:      "nomic-embed-text",
			OllamaHost: "http://localhost:11434",
			Dimensions: 256,
			BatchSize:  100,
			CacheSize:  1000,
		},
		Reranker: RerankerConfig{
			Provider: "lexical",
			Endpoint: "http://localhost:9659",
			Model:    "cross-encoder/ms-marco-MiniLM-L-6-v2",
			Timeout:  "30s",
		},
		Qdrant: QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "documents",
		},
		Metrics: MetricsConfig{
			Backend:   "json",
			Retention: 1000,
		},
		Server: ServerConfig{
			LogLevel: "info",
		},
	}
}

// GetUserConfigPath returns the user configuration file path:
// $XDG_CONFIG_HOME/docsift/config.yaml or ~/.config/docsift/config.yaml.
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsift", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docsift", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsift", "config.yaml")
}

// Load loads configuration for the corpus rooted at dir. Precedence, lowest
// first: defaults, user config, dir/.docsift.yaml, DOCSIFT_* env vars.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if dir != "" {
		if projectPath := filepath.Join(dir, ProjectConfigName); fileExists(projectPath) {
			if err := cfg.loadYAML(projectPath); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DataDir resolves the data directory for a corpus root.
func (c *Config) DataDir(root string) string {
	if c.Paths.DataDir == "" {
		return filepath.Join(root, DataDirName)
	}
	if filepath.IsAbs(c.Paths.DataDir) {
		return c.Paths.DataDir
	}
	return filepath.Join(root, c.Paths.DataDir)
}

// WatchDebounce parses Index.WatchDebounce, defaulting to 500ms.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Index.WatchDebounce)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// RerankTimeout parses Reranker.Timeout, defaulting to 30s.
func (c *Config) RerankTimeout() time.Duration {
	d, err := time.ParseDuration(c.Reranker.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Paths.DataDir != "" {
		c.Paths.DataDir = other.Paths.DataDir
	}
	if len(other.Paths.Exclude) > 0 {
		c.Paths.Exclude = append(c.Paths.Exclude, other.Paths.Exclude...)
	}

	if other.Index.MinTextChars != 0 {
		c.Index.MinTextChars = other.Index.MinTextChars
	}
	if other.Index.MinPDFChars != 0 {
		c.Index.MinPDFChars = other.Index.MinPDFChars
	}
	if other.Index.MaxChars != 0 {
		c.Index.MaxChars = other.Index.MaxChars
	}
	if other.Index.MaxFileSizeMB != 0 {
		c.Index.MaxFileSizeMB = other.Index.MaxFileSizeMB
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}

	if other.Search.DefaultTopK != 0 {
		c.Search.DefaultTopK = other.Search.DefaultTopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}
	if other.Search.VectorBackend != "" {
		c.Search.VectorBackend = other.Search.VectorBackend
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Reranker.Provider != "" {
		c.Reranker.Provider = other.Reranker.Provider
	}
	if other.Reranker.Endpoint != "" {
		c.Reranker.Endpoint = other.Reranker.Endpoint
	}
	if other.Reranker.Model != "" {
		c.Reranker.Model = other.Reranker.Model
	}
	if other.Reranker.Timeout != "" {
		c.Reranker.Timeout = other.Reranker.Timeout
	}

	if other.Qdrant.Host != "" {
		c.Qdrant.Host = other.Qdrant.Host
	}
	if other.Qdrant.Port != 0 {
		c.Qdrant.Port = other.Qdrant.Port
	}
	if other.Qdrant.Collection != "" {
		c.Qdrant.Collection = other.Qdrant.Collection
	}
	if other.Qdrant.APIKey != "" {
		c.Qdrant.APIKey = other.Qdrant.APIKey
	}
	if other.Qdrant.UseTLS {
		c.Qdrant.UseTLS = true
	}

	if other.Metrics.Backend != "" {
		c.Metrics.Backend = other.Metrics.Backend
	}
	if other.Metrics.Retention != 0 {
		c.Metrics.Retention = other.Metrics.Retention
	}

	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.MetricsAddr != "" {
		c.Server.MetricsAddr = other.Server.MetricsAddr
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSIFT_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCSIFT_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCSIFT_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("DOCSIFT_RERANKER_PROVIDER"); v != "" {
		c.Reranker.Provider = v
	}
	if v := os.Getenv("DOCSIFT_RERANKER_ENDPOINT"); v != "" {
		c.Reranker.Endpoint = v
	}
	if v := os.Getenv("DOCSIFT_VECTOR_BACKEND"); v != "" {
		c.Search.VectorBackend = v
	}
	if v := os.Getenv("DOCSIFT_QDRANT_HOST"); v != "" {
		c.Qdrant.Host = v
	}
	if v := os.Getenv("DOCSIFT_QDRANT_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			c.Qdrant.Port = p
		}
	}
	if v := os.Getenv("DOCSIFT_QDRANT_API_KEY"); v != "" {
		c.Qdrant.APIKey = v
	}
	if v := os.Getenv("DOCSIFT_METRICS_BACKEND"); v != "" {
		c.Metrics.Backend = v
	}
	if v := os.Getenv("DOCSIFT_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
}

// Validate checks that configuration values are in range.
func (c *Config) Validate() error {
	if c.Index.MinTextChars < 0 || c.Index.MinPDFChars < 0 {
		return fmt.Errorf("index minimum lengths must be non-negative")
	}
	if c.Index.MaxChars <= 0 {
		return fmt.Errorf("index.max_chars must be positive, got %d", c.Index.MaxChars)
	}
	if c.Search.MaxTopK < 1 {
		return fmt.Errorf("search.max_top_k must be at least 1, got %d", c.Search.MaxTopK)
	}
	if c.Search.DefaultTopK < 1 || c.Search.DefaultTopK > c.Search.MaxTopK {
		return fmt.Errorf("search.default_top_k must be between 1 and %d, got %d", c.Search.MaxTopK, c.Search.DefaultTopK)
	}
	if !oneOf(c.Search.VectorBackend, "local", "qdrant") {
		return fmt.Errorf("search.vector_backend must be 'local' or 'qdrant', got %s", c.Search.VectorBackend)
	}
	if !oneOf(c.Embeddings.Provider, "static", "ollama") {
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize < 1 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if !oneOf(c.Reranker.Provider, "lexical", "http") {
		return fmt.Errorf("reranker.provider must be 'lexical' or 'http', got %s", c.Reranker.Provider)
	}
	if !oneOf(c.Metrics.Backend, "json", "sqlite") {
		return fmt.Errorf("metrics.backend must be 'json' or 'sqlite', got %s", c.Metrics.Backend)
	}
	if c.Metrics.Retention < 1 {
		return fmt.Errorf("metrics.retention must be at least 1, got %d", c.Metrics.Retention)
	}
	if !oneOf(c.Server.LogLevel, "debug", "info", "warn", "error") {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
