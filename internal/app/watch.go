package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Aman-CERP/docsift/internal/index"
	"github.com/Aman-CERP/docsift/internal/watcher"
)

// RebuildFunc receives the outcome of each rebuild triggered by Watch.
type RebuildFunc func(events []watcher.FileEvent, report *index.BuildReport, err error)

// Watch rebuilds the whole index after every debounced burst of corpus
// changes. It blocks until ctx is cancelled. A failed rebuild is reported
// to onRebuild and does not stop watching.
func (a *App) Watch(ctx context.Context, onRebuild RebuildFunc) error {
	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow:  a.cfg.WatchDebounce(),
		ExcludePatterns: a.cfg.Paths.Exclude,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Start(ctx, a.root) }()

	slog.Info("watch_started",
		slog.String("root", a.root),
		slog.String("watcher", w.WatcherType()),
		slog.Duration("debounce", a.cfg.WatchDebounce()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case events, ok := <-w.Events():
			if !ok {
				return nil
			}
			a.rebuild(ctx, events, onRebuild)
		case err, ok := <-w.Errors():
			if ok {
				slog.Warn("watch_error", slog.String("error", err.Error()))
			}
		}
	}
}

func (a *App) rebuild(ctx context.Context, events []watcher.FileEvent, onRebuild RebuildFunc) {
	for _, e := range events {
		if e.Operation == watcher.OpConfigChange {
			slog.Warn("watch_config_changed",
				slog.String("path", e.Path),
				slog.String("action", "restart to apply configuration changes"))
		}
	}

	start := time.Now()
	report, err := a.Build(ctx)
	if err != nil {
		slog.Error("watch_rebuild_failed",
			slog.Int("changes", len(events)),
			slog.String("error", err.Error()))
	} else {
		slog.Info("watch_rebuild",
			slog.Int("changes", len(events)),
			slog.Int("indexed", report.IndexedCount),
			slog.Int("skipped", len(report.Skipped)),
			slog.Duration("duration", time.Since(start)))
	}
	if onRebuild != nil {
		onRebuild(events, report, err)
	}
}
