// Package metrics holds the prometheus counters of the linking pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "table_linking"
	subsystem = "candidates"
)

var (
	searchQueries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "search_queries_total",
			Help:      "The total number of distinct queries sent to the search backend.",
		},
	)
	searchBatches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "search_batches_total",
			Help:      "The total number of batched calls to the search backend.",
		},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_hits_total",
			Help:      "The total number of query cache hits.",
		},
		[]string{"cache"},
	)
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cache_misses_total",
			Help:      "The total number of query cache misses.",
		},
		[]string{"cache"},
	)

	candidatesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generated_total",
			Help:      "The total number of candidates written into candidate datasets.",
		},
	)
	candidatesFiltered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "filtered_total",
			Help:      "The total number of candidates removed by the semantic type filter.",
		},
		[]string{"mode"},
	)
	featureRows = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "feature_rows_total",
			Help:      "The total number of feature vectors computed.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		searchQueries,
		searchBatches,
		cacheHits,
		cacheMisses,
		candidatesGenerated,
		candidatesFiltered,
		featureRows,
	)
}

// RecordSearchBatch counts one backend call resolving n queries.
func RecordSearchBatch(n int) {
	searchBatches.Inc()
	searchQueries.Add(float64(n))
}

// RecordCacheHits increments the cache hit counter by n.
func RecordCacheHits(cache string, n int) {
	cacheHits.WithLabelValues(cache).Add(float64(n))
}

// RecordCacheMisses increments the cache miss counter by n.
func RecordCacheMisses(cache string, n int) {
	cacheMisses.WithLabelValues(cache).Add(float64(n))
}

func RecordCandidates(n int) {
	candidatesGenerated.Add(float64(n))
}

func RecordFiltered(mode string, n int) {
	candidatesFiltered.WithLabelValues(mode).Add(float64(n))
}

func RecordFeatureRows(n int) {
	featureRows.Add(float64(n))
}
