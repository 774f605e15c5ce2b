package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docsift/internal/app"
	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/output"
	"github.com/Aman-CERP/docsift/internal/preflight"
	"github.com/Aman-CERP/docsift/internal/watcher"
)

type indexOptions struct {
	watch      bool
	jsonOutput bool
	skipCheck  bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [root]",
		Short: "Build the search index for a folder",
		Long: `Index every code, PDF and text file under a folder.

Each file becomes one document in both the vector index and the BM25
index. Files that are too short or cannot be read are skipped and
listed with the reason. Rebuilding is idempotent.

Use --watch to keep running and rebuild after every burst of changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			root := "."
			if len(args) > 0 {
				root = args[0]
			}
			return runIndex(ctx, cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Keep running and rebuild when files change")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the build report as JSON")
	cmd.Flags().BoolVar(&opts.skipCheck, "skip-check", false, "Skip the pre-flight checks before the first build")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, opts indexOptions) error {
	progress := output.New(cmd.ErrOrStderr())
	out := output.New(cmd.OutOrStdout())

	var appOpts []app.Option
	if !opts.jsonOutput {
		appOpts = append(appOpts, app.WithProgress(progressPrinter(progress)))
	}

	a, err := openCorpus(ctx, root, nil, appOpts...)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if !opts.skipCheck && preflight.NeedsCheck(a.DataDir()) {
		checker := preflight.New(embedderCheck(a.Embedder()), rerankerCheck(a.Reranker()))
		results := checker.RunAll(ctx, a.Root(), a.DataDir())
		if checker.HasCriticalFailures(results) {
			printChecks(progress, results)
			return preflightFailed(results)
		}
		if err := preflight.MarkPassed(a.DataDir()); err != nil {
			slog.Warn("preflight_marker_failed", slog.String("error", err.Error()))
		}
	}

	report, err := a.Build(ctx)
	if err != nil {
		return err
	}
	if err := printReport(cmd.OutOrStdout(), out, a.Root(), report, opts.jsonOutput); err != nil {
		return err
	}

	if !opts.watch {
		return nil
	}

	if !opts.jsonOutput {
		out.Newline()
		out.Statusf("👀", "Watching %s for changes (Ctrl+C to stop)", a.Root())
	}
	return a.Watch(ctx, func(events []watcher.FileEvent, report *index.BuildReport, err error) {
		if err != nil {
			out.Errorf("Rebuild failed: %v", err)
			return
		}
		if !opts.jsonOutput {
			out.Statusf("🔄", "%d change(s) detected", len(events))
		}
		_ = printReport(cmd.OutOrStdout(), out, a.Root(), report, opts.jsonOutput)
	})
}

// progressPrinter renders builder progress on w.
func progressPrinter(w *output.Writer) index.ProgressFunc {
	return func(p index.Progress) {
		switch p.Stage {
		case index.StageExtract:
			w.Progress(p.Done, p.Total, "extracting")
		case index.StageEmbed:
			w.Statusf("🧮", "Embedding %d documents", p.Total)
		}
	}
}

// indexReportJSON is the --json form of a build report.
type indexReportJSON struct {
	Root         string              `json:"root"`
	IndexedCount int                 `json:"indexed_count"`
	Skipped      []index.SkippedFile `json:"skipped"`
	Pruned       int                 `json:"pruned"`
	DurationMs   int64               `json:"duration_ms"`
}

func printReport(raw io.Writer, out *output.Writer, root string, report *index.BuildReport, jsonOutput bool) error {
	if jsonOutput {
		skipped := make([]index.SkippedFile, 0, len(report.Skipped))
		for _, s := range report.Skipped {
			skipped = append(skipped, index.SkippedFile{Path: displayPath(root, s.Path), Reason: s.Reason})
		}
		return json.NewEncoder(raw).Encode(indexReportJSON{
			Root:         root,
			IndexedCount: report.IndexedCount,
			Skipped:      skipped,
			Pruned:       report.Pruned,
			DurationMs:   report.Duration.Milliseconds(),
		})
	}

	out.Successf("Indexed %d documents in %s", report.IndexedCount, report.Duration.Round(time.Millisecond))
	if report.Pruned > 0 {
		out.Dim(fmt.Sprintf("Removed %d documents no longer on disk", report.Pruned))
	}
	if len(report.Skipped) > 0 {
		out.Warningf("Skipped %d files", len(report.Skipped))
		for _, s := range report.Skipped {
			out.Dim(fmt.Sprintf("%s: %s", displayPath(root, s.Path), s.Reason))
		}
	}
	return nil
}
