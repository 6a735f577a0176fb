// Package telemetry records build and query metrics. Prometheus collectors
// back the /metrics endpoint; QueryStats keeps an in-process summary of
// recent queries for the status surfaces.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a coarse latency class.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its bucket.
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

// QueryEvent describes one answered search.
type QueryEvent struct {
	Query   string
	Results int
	Latency time.Duration
	Cached  bool
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer holding at most capacity items.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items, oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
		return result
	}
	n := copy(result, b.items[b.head:])
	copy(result[n:], b.items[:b.head])
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// ExtractTerms lowercases a query and keeps words of three or more bytes.
// Query syntax characters are stripped so "+title:rust" counts as "rust".
func ExtractTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		if i := strings.LastIndexByte(w, ':'); i >= 0 {
			w = w[i+1:]
		}
		w = strings.Trim(w, `+-"*?~^()`)
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

// TermCount is a term and how often it was queried.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// QueryStatsSnapshot is a point-in-time copy of QueryStats.
type QueryStatsSnapshot struct {
	TotalQueries        int64                   `json:"total_queries"`
	CacheHits           int64                   `json:"cache_hits"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of queries that matched nothing.
func (s *QueryStatsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// QueryStatsConfig sizes the bounded structures of QueryStats.
type QueryStatsConfig struct {
	TopTermsCapacity      int
	ZeroResultsCapacity   int
	RecentQueriesCapacity int
}

// DefaultQueryStatsConfig returns the default sizes.
func DefaultQueryStatsConfig() QueryStatsConfig {
	return QueryStatsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   50,
		RecentQueriesCapacity: 500,
	}
}

// QueryStats aggregates recent query activity in memory. Safe for
// concurrent use.
type QueryStats struct {
	mu              sync.Mutex
	topTerms        *lru.Cache[string, int64]
	recentQueries   *lru.Cache[string, struct{}]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	total           int64
	cacheHits       int64
	zeroResultCount int64
	repeats         int64
	since           time.Time
}

// NewQueryStats creates an empty collector.
func NewQueryStats(cfg QueryStatsConfig) *QueryStats {
	def := DefaultQueryStatsConfig()
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = def.TopTermsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = def.RecentQueriesCapacity
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)
	return &QueryStats{
		topTerms:      topTerms,
		recentQueries: recent,
		zeroResults:   NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:     make(map[LatencyBucket]int64),
		since:         time.Now(),
	}
}

// Record adds one answered query.
func (s *QueryStats) Record(event QueryEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total++
	if event.Cached {
		s.cacheHits++
	}
	for _, term := range ExtractTerms(event.Query) {
		count, _ := s.topTerms.Get(term)
		s.topTerms.Add(term, count+1)
	}
	if event.Results == 0 {
		s.zeroResults.Add(event.Query)
		s.zeroResultCount++
	}
	s.latencies[LatencyToBucket(event.Latency)]++

	h := hashQuery(event.Query)
	if _, seen := s.recentQueries.Get(h); seen {
		s.repeats++
	}
	s.recentQueries.Add(h, struct{}{})
}

func hashQuery(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:16])
}

// Snapshot copies the current aggregates. Top terms are sorted by count.
func (s *QueryStats) Snapshot() *QueryStatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := make([]TermCount, 0, s.topTerms.Len())
	for _, k := range s.topTerms.Keys() {
		if c, ok := s.topTerms.Peek(k); ok {
			terms = append(terms, TermCount{Term: k, Count: c})
		}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		if terms[i].Count != terms[j].Count {
			return terms[i].Count > terms[j].Count
		}
		return terms[i].Term < terms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(s.latencies))
	for k, v := range s.latencies {
		latencies[k] = v
	}

	return &QueryStatsSnapshot{
		TotalQueries:        s.total,
		CacheHits:           s.cacheHits,
		ZeroResultCount:     s.zeroResultCount,
		ExactRepeatCount:    s.repeats,
		TopTerms:            terms,
		ZeroResultQueries:   s.zeroResults.Items(),
		LatencyDistribution: latencies,
		Since:               s.since,
	}
}
