package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, d *Debouncer, timeout time.Duration) []FileEvent {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		t.Fatal("timeout waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	// Given: a debouncer with a short window
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	// When: a single event is added
	d.Add(FileEvent{Path: "notes.md", Operation: OpCreate, Timestamp: time.Now()})

	// Then: it arrives after the window
	events := receiveBatch(t, d, 500*time.Millisecond)
	require.Len(t, events, 1)
	assert.Equal(t, "notes.md", events[0].Path)
	assert.Equal(t, OpCreate, events[0].Operation)
}

func TestDebouncer_BurstIsOneBatch(t *testing.T) {
	// Given: a debouncer with a 100ms window
	d := NewDebouncer(100 * time.Millisecond)
	defer d.Stop()

	// When: a burst of edits lands inside the window
	for i := 0; i < 5; i++ {
		d.Add(FileEvent{Path: "guide.md", Operation: OpModify, Timestamp: time.Now()})
		d.Add(FileEvent{Path: "faq.txt", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	// Then: one batch with one event per path, ordered by path
	events := receiveBatch(t, d, time.Second)
	require.Len(t, events, 2)
	assert.Equal(t, "faq.txt", events[0].Path)
	assert.Equal(t, "guide.md", events[1].Path)

	select {
	case extra := <-d.Output():
		t.Fatalf("unexpected second batch: %v", extra)
	case <-time.After(250 * time.Millisecond):
	}
}

func TestCoalesce(t *testing.T) {
	tests := []struct {
		name     string
		first    Operation
		next     Operation
		wantOp   Operation
		wantKeep bool
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate, true},
		{"create then delete cancels", OpCreate, OpDelete, 0, false},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete, true},
		{"delete then create is modify", OpDelete, OpCreate, OpModify, true},
		{"modify then modify", OpModify, OpModify, OpModify, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := pendingEvent{event: FileEvent{Path: "a.txt", Operation: tt.first}, firstOp: tt.first}

			got, keep := coalesce(existing, FileEvent{Path: "a.txt", Operation: tt.next})

			assert.Equal(t, tt.wantKeep, keep)
			if keep {
				assert.Equal(t, tt.wantOp, got.Operation)
			}
		})
	}
}

func TestDebouncer_CreateThenDelete_NoBatch(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	defer d.Stop()

	d.Add(FileEvent{Path: "tmp.txt", Operation: OpCreate, Timestamp: time.Now()})
	d.Add(FileEvent{Path: "tmp.txt", Operation: OpDelete, Timestamp: time.Now()})

	select {
	case events := <-d.Output():
		t.Fatalf("unexpected batch: %v", events)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_Stop_ClosesOutput(t *testing.T) {
	d := NewDebouncer(50 * time.Millisecond)
	d.Add(FileEvent{Path: "a.txt", Operation: OpCreate})

	d.Stop()
	d.Stop()

	_, ok := <-d.Output()
	assert.False(t, ok, "channel should be closed")

	// Adding after stop is a no-op
	d.Add(FileEvent{Path: "b.txt", Operation: OpCreate})
}
