// Package telemetry records the outcome of every search call and keeps
// aggregate statistics over a bounded window. All data is stored locally.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultRetention is the number of log entries kept on disk.
const DefaultRetention = 1000

// =============================================================================
// Query Log
// =============================================================================

// QueryLogEntry is one search call.
type QueryLogEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	Query           string    `json:"query"`
	ResponseTimeMs  float64   `json:"response_time_ms"`
	ResultFound     bool      `json:"result_found"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// timestampLayouts are tried in order when decoding a log entry. Entries
// without a zone are read in local time.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp accepts RFC 3339 and zone-less ISO 8601 timestamps.
func ParseTimestamp(s string) (time.Time, error) {
	for i, layout := range timestampLayouts {
		loc := time.UTC
		if i > 0 {
			loc = time.Local
		}
		if ts, err := time.ParseInLocation(layout, s, loc); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// UnmarshalJSON decodes an entry whose timestamp may lack a zone. A missing
// timestamp decodes as the zero time.
func (e *QueryLogEntry) UnmarshalJSON(data []byte) error {
	type plain QueryLogEntry
	aux := struct {
		*plain
		Timestamp string `json:"timestamp"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp == "" {
		e.Timestamp = time.Time{}
		return nil
	}
	ts, err := ParseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = ts
	return nil
}

// Document is the persisted metrics state. Unknown fields are ignored on
// load and missing ones default to zero.
type Document struct {
	TotalQueries       int64           `json:"total_queries"`
	SuccessfulQueries  int64           `json:"successful_queries"`
	AvgResponseTimeMs  float64         `json:"avg_response_time_ms"`
	AvgConfidenceScore float64         `json:"avg_confidence_score"`
	QueriesLog         []QueryLogEntry `json:"queries_log"`
}

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket is a latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyBuckets lists buckets in ascending order.
var LatencyBuckets = []LatencyBucket{BucketP10, BucketP50, BucketP100, BucketP500, BucketP1000}

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// =============================================================================
// Stats
// =============================================================================

// Stats summarizes the log. Averages cover the retained window; the query
// counters are all-time.
type Stats struct {
	TotalQueries        int64                   `json:"total_queries"`
	SuccessfulQueries   int64                   `json:"successful_queries"`
	SuccessRate         float64                 `json:"success_rate"`
	AvgResponseTimeMs   float64                 `json:"avg_response_time_ms"`
	AvgConfidenceScore  float64                 `json:"avg_confidence_score"`
	WindowSize          int                     `json:"window_size"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
}

// round rounds v to the given number of decimal places.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Last returns up to n of the newest items, oldest first.
func (b *CircularBuffer[T]) Last(n int) []T {
	items := b.Items()
	if n <= 0 || n >= len(items) {
		return items
	}
	return items[len(items)-n:]
}

// Size returns the current number of items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of items.
func (b *CircularBuffer[T]) Capacity() int {
	return b.capacity
}

// Clear removes all items.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.head = 0
	b.size = 0
}
