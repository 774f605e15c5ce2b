// Package index builds and serves docsift's two indices: a dense vector
// index over embeddings and a sparse BM25 index over whitespace tokens.
// Both are keyed by absolute file path and rebuilt together.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	dserrors "github.com/Aman-CERP/docsift/internal/errors"
	"github.com/Aman-CERP/docsift/internal/scanner"
	"github.com/Aman-CERP/docsift/internal/store"
)

// DefaultProgressEvery is how often build progress is logged.
const DefaultProgressEvery = 10

// ReasonTooLarge is the skip reason for files over the size limit.
const ReasonTooLarge = "file exceeds maximum size"

// BuilderConfig configures a Builder.
type BuilderConfig struct {
	Extract         ExtractConfig
	ExcludePatterns []string
	// MaxFileSize skips larger files. Zero disables the check.
	MaxFileSize   int64
	ProgressEvery int
	// OnProgress, when set, is called after each file is prepared and once
	// more when the build completes.
	OnProgress ProgressFunc
}

// Build stages reported through ProgressFunc.
const (
	StageExtract  = "extract"
	StageEmbed    = "embed"
	StageComplete = "complete"
)

// Progress is one build progress update.
type Progress struct {
	Stage string
	Done  int
	Total int
	Path  string
}

// ProgressFunc receives build progress updates.
type ProgressFunc func(Progress)

// SkippedFile is a supported file that did not make it into the index.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// BuildReport summarises one build.
type BuildReport struct {
	IndexedCount int           `json:"indexed_count"`
	Skipped      []SkippedFile `json:"skipped"`
	Pruned       int           `json:"pruned"`
	Duration     time.Duration `json:"duration"`
	Generation   string        `json:"generation"`
}

// Builder walks a corpus and populates the dense and sparse indices.
type Builder struct {
	scanner   *scanner.Scanner
	extractor *Extractor
	dense     *DenseIndex
	sparse    *SparseIndex
	config    BuilderConfig
}

// NewBuilder creates a builder over the given indices.
func NewBuilder(dense *DenseIndex, sparse *SparseIndex, cfg BuilderConfig) (*Builder, error) {
	if dense == nil {
		return nil, fmt.Errorf("%w: dense index", ErrNilDependency)
	}
	if sparse == nil {
		return nil, fmt.Errorf("%w: sparse index", ErrNilDependency)
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Builder{
		scanner:   scanner.New(),
		extractor: NewExtractor(cfg.Extract),
		dense:     dense,
		sparse:    sparse,
		config:    cfg,
	}, nil
}

// Build indexes every supported file under root. Per-file failures are
// reported in BuildReport.Skipped; the build itself fails only when root
// is inaccessible or a provider or store call fails. Documents indexed by
// a previous build that no longer survive are removed.
func (b *Builder) Build(ctx context.Context, root string) (*BuildReport, error) {
	start := time.Now()

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, dserrors.New(dserrors.ErrCodeInvalidPath, "resolve corpus root", err)
	}

	slog.Info("index_scan_started", slog.String("path", absRoot))
	files, scanSkips, err := b.scanner.Collect(ctx, &scanner.ScanOptions{
		RootDir:         absRoot,
		ExcludePatterns: b.config.ExcludePatterns,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, dserrors.New(dserrors.ErrCodeInvalidPath, "cannot scan "+absRoot, err).
			WithSuggestion("check that the corpus root exists and is readable")
	}
	slog.Info("index_scan_complete", slog.Int("files", len(files)))

	report := &BuildReport{Skipped: make([]SkippedFile, 0, len(scanSkips))}
	for _, sk := range scanSkips {
		slog.Warn("index_file_skipped",
			slog.String("path", sk.Path),
			slog.String("reason", sk.Reason))
		report.Skipped = append(report.Skipped, SkippedFile{Path: sk.Path, Reason: sk.Reason})
	}
	records := make([]store.DocumentRecord, 0, len(files))
	corpus := make([][]string, 0, len(files))
	docMap := make([]string, 0, len(files))

	for i, f := range files {
		b.progress(Progress{Stage: StageExtract, Done: i + 1, Total: len(files), Path: f.Path})
		if err := ctx.Err(); err != nil {
			slog.Info("index_interrupted",
				slog.Int("indexed", len(records)),
				slog.Int("total", len(files)))
			return nil, err
		}

		record, err := b.prepare(f)
		if err != nil {
			reason := skipReason(err)
			slog.Warn("index_file_skipped",
				slog.String("path", f.AbsPath),
				slog.String("reason", reason))
			report.Skipped = append(report.Skipped, SkippedFile{Path: f.AbsPath, Reason: reason})
			continue
		}

		records = append(records, record)
		corpus = append(corpus, store.Tokenize(record.Body))
		docMap = append(docMap, record.ID)

		if len(records)%b.config.ProgressEvery == 0 {
			slog.Info("index_progress", slog.Int("indexed", len(records)))
		}
	}

	b.progress(Progress{Stage: StageEmbed, Done: 0, Total: len(records)})
	if err := b.dense.Upsert(ctx, records); err != nil {
		return nil, indexFailed("populate dense index", err)
	}

	pruned, err := b.pruneStale(ctx, docMap)
	if err != nil {
		return nil, indexFailed("prune stale documents", err)
	}

	if err := b.sparse.Train(corpus, docMap); err != nil {
		return nil, indexFailed("train sparse index", err)
	}
	gen := NewGeneration()
	if err := b.sparse.Commit(gen); err != nil {
		return nil, indexFailed("save sparse index", err)
	}

	report.IndexedCount = len(records)
	report.Pruned = pruned
	report.Generation = gen
	report.Duration = time.Since(start)
	b.progress(Progress{Stage: StageComplete, Done: len(records), Total: len(records)})

	slog.Info("index_complete",
		slog.Int("indexed", report.IndexedCount),
		slog.Int("skipped", len(report.Skipped)),
		slog.Int("pruned", pruned),
		slog.String("generation", gen),
		slog.Int64("duration_ms", report.Duration.Milliseconds()),
		slog.String("embedder_model", b.dense.Embedder().ModelName()),
		slog.String("path", absRoot))

	return report, nil
}

func (b *Builder) progress(p Progress) {
	if b.config.OnProgress != nil {
		b.config.OnProgress(p)
	}
}

// prepare extracts one file into a document record.
func (b *Builder) prepare(f *scanner.FileInfo) (store.DocumentRecord, error) {
	if b.config.MaxFileSize > 0 && f.Size > b.config.MaxFileSize {
		return store.DocumentRecord{}, errors.New(ReasonTooLarge)
	}

	text, err := b.extractor.Extract(f.AbsPath, f.Kind)
	if err != nil {
		return store.DocumentRecord{}, err
	}

	meta := store.DocumentMetadata{
		Filename:  filepath.Base(f.AbsPath),
		FileType:  f.Kind,
		SizeBytes: f.Size,
	}
	if f.Language != "" {
		meta.Extra = map[string]any{"language": f.Language}
	}

	return store.DocumentRecord{
		ID:          f.AbsPath,
		DisplayName: f.Path,
		Body:        FormatBody(f.AbsPath, text),
		Kind:        f.Kind,
		Metadata:    meta,
	}, nil
}

// pruneStale deletes dense documents that are not in keep.
func (b *Builder) pruneStale(ctx context.Context, keep []string) (int, error) {
	existing, err := b.dense.IDs(ctx)
	if err != nil {
		return 0, err
	}

	live := make(map[string]bool, len(keep))
	for _, id := range keep {
		live[id] = true
	}
	var stale []string
	for _, id := range existing {
		if !live[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := b.dense.Delete(ctx, stale); err != nil {
		return 0, err
	}
	slog.Info("index_pruned", slog.Int("count", len(stale)))
	return len(stale), nil
}

// skipReason renders a per-file failure for the build report.
func skipReason(err error) string {
	var de *dserrors.DocsiftError
	if errors.As(err, &de) && de.Cause != nil {
		return de.Cause.Error()
	}
	return err.Error()
}

// indexFailed keeps coded and context errors and wraps everything else.
func indexFailed(msg string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if dserrors.GetCode(err) != "" {
		return err
	}
	return dserrors.New(dserrors.ErrCodeIndexFailed, msg, err)
}
