package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOperation_String(t *testing.T) {
	tests := []struct {
		op   Operation
		want string
	}{
		{OpCreate, "CREATE"},
		{OpModify, "MODIFY"},
		{OpDelete, "DELETE"},
		{OpRename, "RENAME"},
		{OpConfigChange, "CONFIG_CHANGE"},
		{Operation(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOptions_WithDefaults(t *testing.T) {
	got := Options{}.WithDefaults()
	assert.Equal(t, DefaultOptions(), got)
	assert.Equal(t, 500*time.Millisecond, got.DebounceWindow)

	custom := Options{DebounceWindow: time.Second, ExcludePatterns: []string{"drafts/**"}}.WithDefaults()
	assert.Equal(t, time.Second, custom.DebounceWindow)
	assert.Equal(t, 5*time.Second, custom.PollInterval)
	assert.Equal(t, []string{"drafts/**"}, custom.ExcludePatterns)
}

func TestPathFilter_Skip(t *testing.T) {
	f := pathFilter{patterns: []string{"drafts/**"}}

	tests := []struct {
		path  string
		isDir bool
		want  bool
	}{
		{"guide.md", false, false},
		{filepath.Join("src", "app.py"), false, false},
		{"image.png", false, true},
		{filepath.Join(".git", "HEAD.txt"), false, true},
		{filepath.Join(".docsift", "sparse.json"), false, true},
		{filepath.Join("drafts", "a.md"), false, true},
		{filepath.Join("node_modules", "pkg", "readme.md"), false, true},
		{"aws-credentials.txt", false, true},
		{".docsift.yaml", false, false},
		{"src", true, false},
		{"drafts", true, true},
		{".", true, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.skip(tt.path, tt.isDir), tt.path)
	}
}

// =============================================================================
// Polling
// =============================================================================

func startPolling(t *testing.T, root string) *PollingWatcher {
	t.Helper()
	w := NewPollingWatcher(30*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = w.Start(ctx, root) }()
	time.Sleep(100 * time.Millisecond)
	return w
}

func nextEvent(t *testing.T, w *PollingWatcher) FileEvent {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for polling event")
	}
	return FileEvent{}
}

func TestPollingWatcher_CreateModifyDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "notes.txt")
	w := startPolling(t, root)
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	event := nextEvent(t, w)
	assert.Equal(t, OpCreate, event.Operation)
	assert.Equal(t, "notes.txt", event.Path)

	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	assert.Equal(t, OpModify, nextEvent(t, w).Operation)

	require.NoError(t, os.Remove(path))
	assert.Equal(t, OpDelete, nextEvent(t, w).Operation)
}

func TestPollingWatcher_IgnoresUnsupportedFiles(t *testing.T) {
	root := t.TempDir()
	w := startPolling(t, root)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(root, "image.png"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "x.txt"), []byte("x"), 0o644))

	select {
	case event := <-w.Events():
		t.Fatalf("unexpected event: %+v", event)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPollingWatcher_StopIsIdempotent(t *testing.T) {
	w := NewPollingWatcher(time.Second, nil)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

// =============================================================================
// Hybrid
// =============================================================================

func TestHybridWatcher_BatchesSupportedChanges(t *testing.T) {
	// Given: a running watcher over an empty corpus
	root := t.TempDir()
	w, err := NewHybridWatcher(Options{DebounceWindow: 50 * time.Millisecond, PollInterval: 30 * time.Millisecond})
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx, root) }()
	time.Sleep(200 * time.Millisecond)

	// When: a supported and an unsupported file are written
	require.NoError(t, os.WriteFile(filepath.Join(root, "refund.txt"), []byte("refund policy"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "logo.png"), []byte("png"), 0o644))

	// Then: one batch arrives naming only the supported file
	select {
	case batch := <-w.Events():
		require.NotEmpty(t, batch)
		for _, e := range batch {
			assert.Equal(t, "refund.txt", e.Path)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for batch (watcher type %s)", w.WatcherType())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			assert.True(t, errors.Is(err, context.Canceled))
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestHybridWatcher_StopClosesChannels(t *testing.T) {
	w, err := NewHybridWatcher(DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, ok := <-w.Events()
	assert.False(t, ok)
	_, ok = <-w.Errors()
	assert.False(t, ok)
}
