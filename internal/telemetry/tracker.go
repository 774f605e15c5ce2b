package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithRetention sets the log window size. Non-positive values keep the
// default of 1000.
func WithRetention(n int) TrackerOption {
	return func(t *Tracker) {
		if n > 0 {
			t.retention = n
		}
	}
}

// WithRegisterer mirrors every logged query into Prometheus collectors
// registered on reg.
func WithRegisterer(reg prometheus.Registerer) TrackerOption {
	return func(t *Tracker) {
		if reg != nil {
			t.prom = newPromMetrics(reg)
		}
	}
}

// WithClock replaces time.Now for entry timestamps.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// Tracker logs search outcomes and persists the full state on every write.
type Tracker struct {
	mu         sync.Mutex
	store      Store
	retention  int
	window     *CircularBuffer[QueryLogEntry]
	total      int64
	successful int64
	prom       *promMetrics
	now        func() time.Time
}

// NewTracker loads existing state from store. A corrupt document is
// treated as empty state.
func NewTracker(store Store, opts ...TrackerOption) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("metrics store is required")
	}

	t := &Tracker{
		store:     store,
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.window = NewCircularBuffer[QueryLogEntry](t.retention)

	doc, err := store.Load()
	switch {
	case errors.Is(err, ErrCorrupt):
		slog.Warn("metrics_document_corrupt",
			slog.String("error", err.Error()),
			slog.String("action", "starting from empty state"))
	case err != nil:
		return nil, err
	case doc != nil:
		t.total = doc.TotalQueries
		t.successful = doc.SuccessfulQueries
		for _, e := range doc.QueriesLog {
			t.window.Add(e)
		}
	}

	return t, nil
}

// Log appends one entry and durably saves the updated state before
// returning. responseTime is stored in milliseconds rounded to 2 places
// and confidence is rounded to 4.
func (t *Tracker) Log(query string, responseTime time.Duration, found bool, confidence float64) error {
	if responseTime < 0 {
		responseTime = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.total++
	if found {
		t.successful++
	}
	t.window.Add(QueryLogEntry{
		Timestamp:       t.now(),
		Query:           query,
		ResponseTimeMs:  round(float64(responseTime)/float64(time.Millisecond), 2),
		ResultFound:     found,
		ConfidenceScore: round(confidence, 4),
	})

	if t.prom != nil {
		t.prom.observe(responseTime, found, confidence)
	}

	if err := t.store.Save(t.documentLocked()); err != nil {
		slog.Error("metrics_save_failed", slog.String("error", err.Error()))
		return fmt.Errorf("save metrics: %w", err)
	}
	return nil
}

// documentLocked snapshots the state. Caller holds t.mu.
func (t *Tracker) documentLocked() *Document {
	entries := t.window.Items()
	avgMs, avgConf := averages(entries)
	return &Document{
		TotalQueries:       t.total,
		SuccessfulQueries:  t.successful,
		AvgResponseTimeMs:  avgMs,
		AvgConfidenceScore: avgConf,
		QueriesLog:         entries,
	}
}

func averages(entries []QueryLogEntry) (avgMs, avgConf float64) {
	if len(entries) == 0 {
		return 0, 0
	}
	var sumMs, sumConf float64
	for _, e := range entries {
		sumMs += e.ResponseTimeMs
		sumConf += e.ConfidenceScore
	}
	n := float64(len(entries))
	return round(sumMs/n, 2), round(sumConf/n, 4)
}

// Stats returns the current aggregate.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries := t.window.Items()
	avgMs, avgConf := averages(entries)

	dist := make(map[LatencyBucket]int64, len(LatencyBuckets))
	for _, b := range LatencyBuckets {
		dist[b] = 0
	}
	for _, e := range entries {
		d := time.Duration(e.ResponseTimeMs * float64(time.Millisecond))
		dist[LatencyToBucket(d)]++
	}

	var rate float64
	if t.total > 0 {
		rate = float64(t.successful) / float64(t.total)
	}

	return Stats{
		TotalQueries:        t.total,
		SuccessfulQueries:   t.successful,
		SuccessRate:         rate,
		AvgResponseTimeMs:   avgMs,
		AvgConfidenceScore:  avgConf,
		WindowSize:          len(entries),
		LatencyDistribution: dist,
	}
}

// Recent returns the newest limit entries in chronological order. A
// non-positive limit returns the whole window.
func (t *Tracker) Recent(limit int) []QueryLogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window.Last(limit)
}

// Reset clears the log and counters and saves the empty state.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.total = 0
	t.successful = 0
	t.window.Clear()

	if err := t.store.Save(t.documentLocked()); err != nil {
		return fmt.Errorf("save metrics: %w", err)
	}
	slog.Info("metrics_reset")
	return nil
}

// Close closes the underlying store.
func (t *Tracker) Close() error {
	return t.store.Close()
}
