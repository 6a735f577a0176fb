package objstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	PageSize int
}

// RedisStore keeps each object as a string value under "bucket/key".
// Listing uses SCAN, so a page may hold fewer or more keys than PageSize and
// keys can repeat across pages; Enumerator removes the repeats.
type RedisStore struct {
	rdb      *redis.Client
	pageSize int64
}

// NewRedisStore connects and verifies the connection with a PING.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 1000
	}
	return &RedisStore{rdb: rdb, pageSize: int64(pageSize)}, nil
}

// ListPage implements Store. The token is the SCAN cursor.
func (s *RedisStore) ListPage(ctx context.Context, bucket, prefix, token string) (Page, error) {
	var cursor uint64
	if token != "" {
		c, err := strconv.ParseUint(token, 10, 64)
		if err != nil {
			return Page{}, fmt.Errorf("invalid scan cursor %q: %w", token, err)
		}
		cursor = c
	}

	ns := bucket + "/"
	raw, next, err := s.rdb.Scan(ctx, cursor, globEscape(ns+prefix)+"*", s.pageSize).Result()
	if err != nil {
		return Page{}, err
	}

	page := Page{Keys: make([]string, 0, len(raw))}
	for _, k := range raw {
		page.Keys = append(page.Keys, strings.TrimPrefix(k, ns))
	}
	sort.Strings(page.Keys)
	if next != 0 {
		page.NextToken = strconv.FormatUint(next, 10)
	}
	return page, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, bucket+"/"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return data, err
}

// Put stores an object. Used to seed a bucket.
func (s *RedisStore) Put(ctx context.Context, bucket, key string, body []byte) error {
	return s.rdb.Set(ctx, bucket+"/"+key, body, 0).Err()
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// globEscape escapes the characters SCAN MATCH treats as patterns.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var _ Store = (*RedisStore)(nil)
