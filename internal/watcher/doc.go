// Package watcher reports changes to indexable files under a corpus root.
//
// fsnotify is used when available, with periodic polling as a fallback for
// network mounts and container volumes. Events are debounced so that a
// burst of edits arrives as a single batch; docsift rebuilds the index
// once per batch.
//
// Usage:
//
//	w, err := watcher.NewHybridWatcher(watcher.Options{DebounceWindow: 500 * time.Millisecond})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//
//	go w.Start(ctx, root)
//	for batch := range w.Events() {
//	    rebuild(batch)
//	}
package watcher
