package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for docsift_queries_total.
const (
	outcomeFound    = "found"
	outcomeNotFound = "not_found"
)

// promMetrics mirrors every logged query into Prometheus collectors.
type promMetrics struct {
	// queriesTotal counts logged queries by outcome: "found" or "not_found".
	queriesTotal *prometheus.CounterVec

	// queryDuration records whole-call response time.
	queryDuration prometheus.Histogram

	// queryConfidence records the reported confidence of found results.
	queryConfidence prometheus.Histogram
}

// newPromMetrics registers the query collectors against reg. promauto.With
// keeps registration off the global default so tests stay hermetic.
func newPromMetrics(reg prometheus.Registerer) *promMetrics {
	factory := promauto.With(reg)

	return &promMetrics{
		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docsift",
			Name:      "queries_total",
			Help:      "Total number of search queries, partitioned by outcome.",
		}, []string{"outcome"}),

		queryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docsift",
			Name:      "query_duration_seconds",
			Help:      "Wall-clock duration of search queries including retrieval and reranking.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),

		queryConfidence: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docsift",
			Name:      "query_confidence",
			Help:      "Confidence score of the top result for successful queries.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}),
	}
}

func (m *promMetrics) observe(elapsed time.Duration, found bool, confidence float64) {
	outcome := outcomeNotFound
	if found {
		outcome = outcomeFound
		m.queryConfidence.Observe(confidence)
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(elapsed.Seconds())
}
