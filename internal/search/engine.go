// Package search answers free-text queries against the post index.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2/search/query"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/schema"
	"github.com/Aman-CERP/postsearch/internal/store"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
)

// DefaultLimit is the number of hits returned per query.
const DefaultLimit = 3

// DefaultCacheSize is the number of cached query results.
const DefaultCacheSize = 256

// Hit is one ranked post with its stored fields. Fields absent from the
// stored document are nil. Counts are exact up to 2^53; the index keeps
// numbers as float64.
type Hit struct {
	ID          *string `json:"id"`
	Author      *string `json:"author"`
	NumPoints   *uint64 `json:"num_points"`
	NumComments *uint64 `json:"num_comments"`
	Score       float64 `json:"score"`
}

// Engine runs ranked title queries. It is safe for concurrent use.
type Engine struct {
	provider IndexProvider
	limit    int
	cache    *lru.Cache[string, []Hit]
	group    singleflight.Group
	stats    *telemetry.QueryStats
	logger   *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithLimit sets the maximum number of hits per query.
func WithLimit(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// WithCacheSize sets the result cache size. Zero disables caching.
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		e.cache = nil
		if n > 0 {
			e.cache, _ = lru.New[string, []Hit](n)
		}
	}
}

// WithStats records every answered query into s.
func WithStats(s *telemetry.QueryStats) EngineOption {
	return func(e *Engine) {
		e.stats = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine over provider.
func NewEngine(provider IndexProvider, opts ...EngineOption) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("index provider is required")
	}

	cache, _ := lru.New[string, []Hit](DefaultCacheSize)
	e := &Engine{
		provider: provider,
		limit:    DefaultLimit,
		cache:    cache,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Limit returns the maximum number of hits per query.
func (e *Engine) Limit() int {
	return e.limit
}

// Search returns the IDs of the best matching posts, best first. An entry
// is nil when the hit has no stored id.
func (e *Engine) Search(ctx context.Context, q string) ([]*string, error) {
	hits, err := e.SearchPosts(ctx, q, e.limit)
	if err != nil {
		return nil, err
	}
	ids := make([]*string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, nil
}

// SearchPosts returns up to limit hits with their stored fields. limit is
// capped at the engine limit.
func (e *Engine) SearchPosts(ctx context.Context, q string, limit int) (hits []Hit, err error) {
	start := time.Now()
	cached := false
	defer func() {
		elapsed := time.Since(start)
		telemetry.ObserveSearch(elapsed, err)
		if err == nil && e.stats != nil {
			e.stats.Record(telemetry.QueryEvent{Query: q, Results: len(hits), Latency: elapsed, Cached: cached})
		}
	}()

	q = strings.TrimSpace(q)
	if q == "" {
		return nil, perrors.MissingParameter("q")
	}
	if limit < 1 || limit > e.limit {
		limit = e.limit
	}

	parsed, err := ParseQuery(q)
	if err != nil {
		return nil, err
	}

	ix, release, err := e.provider.Acquire()
	if err != nil {
		return nil, err
	}
	defer release()

	r, err := ix.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	if r.Meta().Generation == 0 {
		return nil, perrors.IndexNotFound(ix.Path()).
			WithDetail("reason", "no build has committed yet")
	}

	key := fmt.Sprintf("%d|%d|%s", r.Meta().Generation, limit, q)
	if e.cache != nil {
		if v, ok := e.cache.Get(key); ok {
			cached = true
			telemetry.CacheLookup(true)
			return cloneHits(v), nil
		}
		telemetry.CacheLookup(false)
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.run(ctx, r, q, parsed, limit)
	})
	if err != nil {
		return nil, err
	}
	result := v.([]Hit)
	if e.cache != nil {
		e.cache.Add(key, result)
	}
	return cloneHits(result), nil
}

func (e *Engine) run(ctx context.Context, r *store.ReadSession, raw string, q query.Query, limit int) ([]Hit, error) {
	ranked, err := r.Search(ctx, q, limit)
	if errors.Is(err, store.ErrInvalidQuery) {
		return nil, perrors.QueryParse(raw, err)
	}
	if err != nil {
		return nil, perrors.New(perrors.ErrCodeSearchFailed, "search failed", err)
	}

	hits := make([]Hit, 0, len(ranked))
	for _, h := range ranked {
		doc, err := r.Document(h.DocID)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			e.logger.Warn("hit_without_document", slog.String("doc_id", h.DocID))
		}
		hits = append(hits, Hit{
			ID:          textField(doc, schema.FieldID),
			Author:      textField(doc, schema.FieldAuthor),
			NumPoints:   countField(doc, schema.FieldNumPoints),
			NumComments: countField(doc, schema.FieldNumComments),
			Score:       h.Score,
		})
	}
	return hits, nil
}

// ParseQuery parses q in query-string syntax. Unqualified terms match the
// title; field:term forms address other indexed fields.
func ParseQuery(q string) (query.Query, error) {
	qs := query.NewQueryStringQuery(q)
	if _, err := qs.Parse(); err != nil {
		return nil, perrors.QueryParse(q, err)
	}
	return qs, nil
}

func textField(doc store.StoredDoc, name string) *string {
	if s, ok := doc[name].(string); ok {
		return &s
	}
	return nil
}

func countField(doc store.StoredDoc, name string) *uint64 {
	if f, ok := doc[name].(float64); ok && f >= 0 {
		n := uint64(f)
		return &n
	}
	return nil
}

// cloneHits copies the slice so callers cannot alter cached results.
func cloneHits(in []Hit) []Hit {
	out := make([]Hit, len(in))
	copy(out, in)
	return out
}
