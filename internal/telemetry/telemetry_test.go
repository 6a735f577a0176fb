package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircularBuffer_EvictsOldest(t *testing.T) {
	// Given: a buffer of three
	b := NewCircularBuffer[int](3)

	// When: adding five items
	for i := 1; i <= 5; i++ {
		b.Add(i)
	}

	// Then: the newest three remain, oldest first
	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.Size())
}

func TestCircularBuffer_PartiallyFilled(t *testing.T) {
	b := NewCircularBuffer[string](0)
	assert.Empty(t, b.Items())

	b.Add("a")
	b.Add("b")
	assert.Equal(t, []string{"a", "b"}, b.Items())
}

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want LatencyBucket
	}{
		{5 * time.Millisecond, BucketP10},
		{10 * time.Millisecond, BucketP50},
		{75 * time.Millisecond, BucketP100},
		{250 * time.Millisecond, BucketP500},
		{2 * time.Second, BucketP1000},
	}
	for _, tt := range tests {
		t.Run(string(tt.want), func(t *testing.T) {
			assert.Equal(t, tt.want, LatencyToBucket(tt.d))
		})
	}
}

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"Rust is great", []string{"rust", "great"}},
		{"+title:rust -go", []string{"rust"}},
		{`"hello world"`, []string{"hello", "world"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractTerms(tt.query))
		})
	}
}

func TestQueryStats_RecordAndSnapshot(t *testing.T) {
	// Given: a collector
	s := NewQueryStats(DefaultQueryStatsConfig())

	// When: recording a mix of queries
	s.Record(QueryEvent{Query: "rust", Results: 3, Latency: time.Millisecond})
	s.Record(QueryEvent{Query: "Rust ", Results: 3, Latency: time.Millisecond, Cached: true})
	s.Record(QueryEvent{Query: "zig compiler", Results: 0, Latency: 60 * time.Millisecond})

	// Then: the snapshot reflects them
	snap := s.Snapshot()
	assert.Equal(t, int64(3), snap.TotalQueries)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.ZeroResultCount)
	assert.Equal(t, int64(1), snap.ExactRepeatCount)
	assert.Equal(t, []string{"zig compiler"}, snap.ZeroResultQueries)
	assert.Equal(t, int64(2), snap.LatencyDistribution[BucketP10])
	assert.Equal(t, int64(1), snap.LatencyDistribution[BucketP100])
	require.NotEmpty(t, snap.TopTerms)
	assert.Equal(t, TermCount{Term: "rust", Count: 2}, snap.TopTerms[0])
	assert.InDelta(t, 33.33, snap.ZeroResultPercentage(), 0.01)
}

func TestQueryStats_ConcurrentRecord(t *testing.T) {
	s := NewQueryStats(QueryStatsConfig{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record(QueryEvent{Query: fmt.Sprintf("query %d", i%5), Results: 1})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), s.Snapshot().TotalQueries)
}

func TestObserveBuild_CountsOutcome(t *testing.T) {
	before := testutil.ToFloat64(buildRunsTotal.WithLabelValues(OutcomeFailure))

	ObserveBuild(time.Second, errors.New("boom"))

	assert.Equal(t, before+1, testutil.ToFloat64(buildRunsTotal.WithLabelValues(OutcomeFailure)))
}

func TestSetIndexState(t *testing.T) {
	SetIndexState(4, 120)

	assert.Equal(t, 4.0, testutil.ToFloat64(indexGeneration))
	assert.Equal(t, 120.0, testutil.ToFloat64(indexDocuments))
}

func TestCacheLookup(t *testing.T) {
	hits := testutil.ToFloat64(searchCache.WithLabelValues("hit"))
	misses := testutil.ToFloat64(searchCache.WithLabelValues("miss"))

	CacheLookup(true)
	CacheLookup(false)
	CacheLookup(false)

	assert.Equal(t, hits+1, testutil.ToFloat64(searchCache.WithLabelValues("hit")))
	assert.Equal(t, misses+2, testutil.ToFloat64(searchCache.WithLabelValues("miss")))
}

func TestMiddleware_RecordsRoutePatternAndStatus(t *testing.T) {
	// Given: a router with the middleware
	r := chi.NewRouter()
	r.Use(Middleware())
	r.Get("/search", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	// When: serving two requests
	for _, path := range []string{"/search", "/healthz"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	}

	// Then: each is labelled by pattern and status
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/search", "400")), 1.0)
	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/healthz", "200")), 1.0)
	assert.Positive(t, testutil.CollectAndCount(httpRequestDuration))
}
