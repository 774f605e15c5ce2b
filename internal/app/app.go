// Package app constructs every docsift component once for a corpus root
// and exposes the operations the CLI and MCP server need. Components are
// passed explicitly; nothing is held in package-level state.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/embed"
	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/search"
	"github.com/Aman-CERP/docsift/internal/store"
	"github.com/Aman-CERP/docsift/internal/telemetry"
)

// App owns the indices, providers, and metrics tracker for one corpus.
// Builds take the write lock and queries the read lock, so a query never
// observes a half-finished rebuild. Builds made by other processes are
// picked up before the next query once their generation is committed.
type App struct {
	root    string
	dataDir string
	cfg     *config.Config

	buildMu    sync.Mutex
	mu         sync.RWMutex
	buildLock  *BuildLock
	lockWait   time.Duration
	generation string

	embedder embed.Embedder
	vectors  store.VectorStore
	dense    *index.DenseIndex
	sparse   *index.SparseIndex
	builder  *index.Builder
	reranker search.Reranker
	tracker  *telemetry.Tracker
	engine   *search.Engine
	registry *prometheus.Registry

	closers   []func() error
	closeOnce sync.Once
	closeErr  error
}

// Option customizes Open.
type Option func(*options)

type options struct {
	embedder embed.Embedder
	reranker search.Reranker
	registry *prometheus.Registry
	clock    func() time.Time
	progress index.ProgressFunc
	lockWait time.Duration
}

// WithEmbedder uses e instead of the configured embedding provider. The
// App takes ownership and closes it.
func WithEmbedder(e embed.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// WithReranker uses r instead of the configured reranker. The App takes
// ownership and closes it.
func WithReranker(r search.Reranker) Option {
	return func(o *options) { o.reranker = r }
}

// WithRegistry registers query metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock replaces time.Now for response times and log timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithProgress receives build progress updates.
func WithProgress(fn index.ProgressFunc) Option {
	return func(o *options) { o.progress = fn }
}

// WithBuildLockWait bounds how long Build waits for the cross-process lock.
func WithBuildLockWait(d time.Duration) Option {
	return func(o *options) { o.lockWait = d }
}

// Open wires the components for the corpus at root. A nil cfg loads the
// configuration for root.
func Open(ctx context.Context, root string, cfg *config.Config, opts ...Option) (a *App, err error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeInvalidPath, "cannot resolve corpus root", err)
	}
	if cfg == nil {
		if cfg, err = config.Load(absRoot); err != nil {
			return nil, dserrors.ConfigError("failed to load configuration", err)
		}
	}

	dataDir := cfg.DataDir(absRoot)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeFilePermission, "cannot create data directory", err).
			WithDetail("data_dir", dataDir)
	}

	a = &App{
		root:      absRoot,
		dataDir:   dataDir,
		cfg:       cfg,
		buildLock: NewBuildLock(dataDir),
		lockWait:  o.lockWait,
		registry:  o.registry,
	}
	if a.lockWait <= 0 {
		a.lockWait = DefaultBuildLockWait
	}
	if a.registry == nil {
		a.registry = prometheus.NewRegistry()
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.embedder = o.embedder
	if a.embedder == nil {
		if a.embedder, err = embed.NewEmbedder(ctx, cfg.Embeddings); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, a.embedder.Close)

	// Read before the graph loads; a build committed in between is
	// reloaded on the first query.
	if a.generation, err = index.ReadGeneration(dataDir); err != nil {
		return nil, dserrors.New(dserrors.ErrCodeCorruptIndex, "cannot read index generation", err)
	}

	if a.vectors, err = openVectorStore(ctx, cfg, dataDir, a.embedder.Dimensions()); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.vectors.Close)

	if a.dense, err = index.NewDenseIndex(a.embedder, a.vectors, cfg.Embeddings.BatchSize); err != nil {
		return nil, err
	}
	a.sparse = index.NewSparseIndex(dataDir)

	a.builder, err = index.NewBuilder(a.dense, a.sparse, index.BuilderConfig{
		Extract: index.ExtractConfig{
			MinTextChars: cfg.Index.MinTextChars,
			MinPDFChars:  cfg.Index.MinPDFChars,
			MaxChars:     cfg.Index.MaxChars,
		},
		ExcludePatterns: cfg.Paths.Exclude,
		MaxFileSize:     int64(cfg.Index.MaxFileSizeMB) << 20,
		OnProgress:      o.progress,
	})
	if err != nil {
		return nil, err
	}

	a.reranker = o.reranker
	if a.reranker == nil {
		if a.reranker, err = search.NewReranker(ctx, cfg.Reranker); err != nil {
			return nil, err
		}
	}
	a.closers = append(a.closers, a.reranker.Close)

	metricsStore, err := telemetry.OpenStore(cfg.Metrics.Backend, dataDir)
	if err != nil {
		return nil, dserrors.ConfigError("failed to open metrics store", err)
	}
	trackerOpts := []telemetry.TrackerOption{
		telemetry.WithRetention(cfg.Metrics.Retention),
		telemetry.WithRegisterer(a.registry),
	}
	engineOpts := []search.EngineOption{}
	if o.clock != nil {
		trackerOpts = append(trackerOpts, telemetry.WithClock(o.clock))
		engineOpts = append(engineOpts, search.WithClock(o.clock))
	}
	if a.tracker, err = telemetry.NewTracker(metricsStore, trackerOpts...); err != nil {
		_ = metricsStore.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.tracker.Close)

	engineOpts = append(engineOpts, search.WithQueryLogger(a.tracker))
	a.engine, err = search.NewEngine(a.dense, a.sparse, a.reranker, search.EngineConfig{
		DefaultTopK: cfg.Search.DefaultTopK,
		MaxTopK:     cfg.Search.MaxTopK,
	}, engineOpts...)
	if err != nil {
		return nil, err
	}

	slog.Debug("app_opened",
		slog.String("root", absRoot),
		slog.String("data_dir", dataDir),
		slog.String("embedder", a.embedder.ModelName()),
		slog.String("reranker", a.reranker.Name()),
		slog.String("vector_backend", cfg.Search.VectorBackend))
	return a, nil
}

func openVectorStore(ctx context.Context, cfg *config.Config, dataDir string, dims int) (store.VectorStore, error) {
	switch cfg.Search.VectorBackend {
	case "", "local":
		s, err := store.OpenLocalVectorStore(ctx, dataDir, dims)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "qdrant":
		s, err := store.NewQdrantStore(ctx, store.QdrantConfig{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			Collection: cfg.Qdrant.Collection,
			VectorSize: uint64(dims),
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
		})
		if err != nil {
			return nil, dserrors.New(dserrors.ErrCodeNetworkUnavailable, "cannot connect to qdrant", err).
				WithSuggestion("Check qdrant.host and qdrant.port, or set search.vector_backend to local")
		}
		return s, nil
	default:
		return nil, dserrors.ConfigError(fmt.Sprintf("unknown vector backend %q", cfg.Search.VectorBackend), nil)
	}
}

// Root returns the absolute corpus root.
func (a *App) Root() string { return a.root }

// DataDir returns the directory holding index and metrics files.
func (a *App) DataDir() string { return a.dataDir }

// Config returns the effective configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Registry returns the Prometheus registry carrying query metrics.
func (a *App) Registry() *prometheus.Registry { return a.registry }

// Embedder returns the embedding provider.
func (a *App) Embedder() embed.Embedder { return a.embedder }

// Reranker returns the relevance model.
func (a *App) Reranker() search.Reranker { return a.reranker }

// Build rebuilds both indices from the corpus root. It fails with
// ErrCodeIndexLocked when another process is building the same data
// directory.
func (a *App) Build(ctx context.Context) (*index.BuildReport, error) {
	a.buildMu.Lock()
	defer a.buildMu.Unlock()

	acquired, err := a.buildLock.TryLock(ctx, a.lockWait)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dserrors.New(dserrors.ErrCodeIndexLocked, "cannot acquire build lock", err)
	}
	if !acquired {
		return nil, dserrors.New(dserrors.ErrCodeIndexLocked, "another build is in progress", nil).
			WithDetail("lock", a.buildLock.Path()).
			WithSuggestion("Wait for the other docsift process to finish indexing")
	}
	defer func() {
		if err := a.buildLock.Unlock(); err != nil {
			slog.Warn("build_unlock_failed", slog.String("error", err.Error()))
		}
	}()

	a.mu.Lock()
	defer a.mu.Unlock()
	report, err := a.builder.Build(ctx, a.root)
	if err != nil {
		return nil, err
	}
	a.generation = report.Generation
	return report, nil
}

// refresh reloads the dense graph and the sparse model when another
// process has committed a newer build. While a build is running elsewhere
// the loaded generation keeps serving. Failures are logged and leave the
// loaded state in place.
func (a *App) refresh(ctx context.Context) {
	stamp, err := index.ReadGeneration(a.dataDir)
	if err != nil {
		slog.Warn("index_generation_unreadable", slog.String("error", err.Error()))
		return
	}
	a.mu.RLock()
	current := a.generation
	a.mu.RUnlock()
	if stamp == current {
		return
	}

	release, err := a.buildLock.TryReadLock()
	if err != nil {
		slog.Warn("index_reload_lock_failed", slog.String("error", err.Error()))
		return
	}
	if release == nil {
		slog.Debug("index_reload_deferred", slog.String("reason", "build in progress"))
		return
	}
	defer release()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Re-read under the shared lock; the stamp seen above may predate a
	// build that has since completed.
	if stamp, err = index.ReadGeneration(a.dataDir); err != nil || stamp == a.generation {
		return
	}

	model, err := a.sparse.ReadModel()
	if err != nil {
		slog.Warn("index_reload_failed", slog.String("index", "sparse"), slog.String("error", err.Error()))
		return
	}
	if err := a.dense.Reload(ctx); err != nil {
		slog.Warn("index_reload_failed", slog.String("index", "dense"), slog.String("error", err.Error()))
		return
	}
	a.sparse.Install(model)

	slog.Info("index_reloaded",
		slog.String("from", a.generation),
		slog.String("to", stamp),
		slog.Int("documents", model.Len()))
	a.generation = stamp
}

// Generation returns the tag of the build currently serving queries, or ""
// before the first build.
func (a *App) Generation() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// Search returns the best document for query, or nil when nothing matched.
func (a *App) Search(ctx context.Context, query string, topK int) (*search.Result, error) {
	a.refresh(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.engine.Search(ctx, query, topK)
}

// ClampTopK reports the candidate count a search with topK would request.
func (a *App) ClampTopK(topK int) int {
	return a.engine.ClampTopK(topK)
}

// Documents returns the ids of every indexed document.
func (a *App) Documents(ctx context.Context) ([]string, error) {
	a.refresh(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.dense.IDs(ctx)
}

// Body returns the indexed body of one document, or false when id is not
// indexed.
func (a *App) Body(ctx context.Context, id string) (string, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	bodies, err := a.dense.Bodies(ctx, []string{id})
	if err != nil {
		return "", false, err
	}
	body, ok := bodies[id]
	return body, ok, nil
}

// Stats returns the aggregate query metrics.
func (a *App) Stats() telemetry.Stats {
	return a.tracker.Stats()
}

// Recent returns up to limit of the newest query log entries.
func (a *App) Recent(limit int) []telemetry.QueryLogEntry {
	return a.tracker.Recent(limit)
}

// LastEntry returns the newest query log entry, if any.
func (a *App) LastEntry() (telemetry.QueryLogEntry, bool) {
	recent := a.tracker.Recent(1)
	if len(recent) == 0 {
		return telemetry.QueryLogEntry{}, false
	}
	return recent[len(recent)-1], true
}

// ResetStats clears all query metrics.
func (a *App) ResetStats() error {
	return a.tracker.Reset()
}

// Check verifies that the dense and sparse indices cover the same ids.
func (a *App) Check(ctx context.Context) (*index.CheckResult, error) {
	a.refresh(ctx)
	a.mu.RLock()
	defer a.mu.RUnlock()
	return index.NewConsistencyChecker(a.dense, a.sparse).Check(ctx)
}

// Repair removes orphan vectors reported by Check.
func (a *App) Repair(ctx context.Context, result *index.CheckResult) error {
	if result == nil || result.Consistent() {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return index.NewConsistencyChecker(a.dense, a.sparse).Repair(ctx, result.Inconsistencies)
}

// Close releases providers, stores, and the metrics tracker. Safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
