package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postsearch"

var (
	buildRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_runs_total",
			Help:      "Build passes by outcome",
		},
		[]string{"outcome"},
	)

	buildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Duration of build passes",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	buildDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "build_documents_total",
			Help:      "Documents processed by build passes, by result",
		},
		[]string{"result"},
	)

	fetchedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_bytes_total",
			Help:      "Bytes fetched from the object store",
		},
	)

	indexGeneration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_generation",
			Help:      "Commit generation of the open index",
		},
	)

	indexDocuments = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_documents",
			Help:      "Documents in the last committed index state",
		},
	)

	searchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome",
		},
		[]string{"outcome"},
	)

	searchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search latency, cache hits included",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
	)

	searchCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_total",
			Help:      "Search result cache lookups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		buildRunsTotal,
		buildDuration,
		buildDocuments,
		fetchedBytes,
		indexGeneration,
		indexDocuments,
		searchRequestsTotal,
		searchDuration,
		searchCache,
		httpRequestDuration,
		httpRequestsTotal,
	)
}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Document result labels.
const (
	DocStaged  = "staged"
	DocSkipped = "skipped"
)

// ObserveBuild records a finished build pass.
func ObserveBuild(d time.Duration, err error) {
	buildDuration.Observe(d.Seconds())
	buildRunsTotal.WithLabelValues(outcome(err)).Inc()
}

// AddDocuments counts documents with the given result label.
func AddDocuments(result string, n int) {
	if n > 0 {
		buildDocuments.WithLabelValues(result).Add(float64(n))
	}
}

// AddFetchedBytes counts bytes read from the object store.
func AddFetchedBytes(n int) {
	fetchedBytes.Add(float64(n))
}

// SetIndexState publishes the generation and document count.
func SetIndexState(generation, documents uint64) {
	indexGeneration.Set(float64(generation))
	indexDocuments.Set(float64(documents))
}

// ObserveSearch records one search request.
func ObserveSearch(d time.Duration, err error) {
	searchDuration.Observe(d.Seconds())
	searchRequestsTotal.WithLabelValues(outcome(err)).Inc()
}

// CacheLookup counts a cache hit or miss.
func CacheLookup(hit bool) {
	if hit {
		searchCache.WithLabelValues("hit").Inc()
		return
	}
	searchCache.WithLabelValues("miss").Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
