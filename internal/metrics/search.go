package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search Prometheus metrics.
var (
	SearchCollectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "search_collection_duration_seconds",
			Help:      "Per-collection search query duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"collection"},
	)

	SearchCollectionFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "semsearch",
			Name:      "search_collection_failures_total",
			Help:      "Per-collection search failures absorbed by the hybrid coordinator",
		},
		[]string{"collection", "reason"}, // reason: "timeout" / "error"
	)

	HybridSearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "hybrid_search_duration_seconds",
			Help:      "Hybrid search fan-out duration in seconds",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	HybridSearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "semsearch",
			Name:      "hybrid_search_results",
			Help:      "Merged (pre-truncation) result count per hybrid search",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers Prometheus search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchCollectionDuration)
	prometheus.MustRegister(SearchCollectionFailures)
	prometheus.MustRegister(HybridSearchDuration)
	prometheus.MustRegister(HybridSearchResults)
	searchMetricsRegistered = true
}
