// Package metrics defines Prometheus metrics for the photofind service.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photofind",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photofind",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photofind",
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photofind",
			Name:      "searches_total",
			Help:      "Total number of search requests",
		},
		[]string{"kind", "status"}, // kind: "text" / "similar" / "keyword"
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "photofind",
			Name:      "search_duration_seconds",
			Help:      "End-to-end search duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"kind"},
	)

	IngestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photofind",
			Name:      "ingests_total",
			Help:      "Total number of photo ingestions",
		},
		[]string{"status"},
	)

	SnapshotFlushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "photofind",
			Name:      "snapshot_flushes_total",
			Help:      "Total number of index snapshot flushes",
		},
		[]string{"status"},
	)

	SnapshotGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "photofind",
			Name:      "snapshot_generation",
			Help:      "Generation of the last published index snapshot",
		},
	)

	IndexEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "photofind",
			Name:      "index_entries",
			Help:      "Number of live entries in the vector index",
		},
	)
)

var registered bool

// Register registers all photofind metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingCacheTotal,
		SearchesTotal,
		SearchDuration,
		IngestsTotal,
		SnapshotFlushesTotal,
		SnapshotGeneration,
		IndexEntries,
	)
	registered = true
}
