package objstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryStore is a map-backed Store. It pages in key order and can inject
// failures and latency, which makes it the fixture for pipeline tests.
type MemoryStore struct {
	mu       sync.Mutex
	objects  map[string]map[string][]byte
	pageSize int
	getDelay time.Duration

	failList map[int]error
	failGet  map[string]error

	listCalls atomic.Int64
	getCalls  atomic.Int64
	inFlight  atomic.Int64
	peak      atomic.Int64
}

// NewMemoryStore creates an empty store returning at most pageSize keys per page.
func NewMemoryStore(pageSize int) *MemoryStore {
	if pageSize < 1 {
		pageSize = 1000
	}
	return &MemoryStore{
		objects:  make(map[string]map[string][]byte),
		pageSize: pageSize,
		failList: make(map[int]error),
		failGet:  make(map[string]error),
	}
}

// Put stores body under bucket/key.
func (m *MemoryStore) Put(bucket, key string, body []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.objects[bucket]
	if !ok {
		b = make(map[string][]byte)
		m.objects[bucket] = b
	}
	b[key] = append([]byte(nil), body...)
}

// Delete removes bucket/key.
func (m *MemoryStore) Delete(bucket, key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects[bucket], key)
}

// FailListCall makes the nth ListPage call (counting from zero) return err.
func (m *MemoryStore) FailListCall(n int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failList[n] = err
}

// FailGet makes every Get of key return err.
func (m *MemoryStore) FailGet(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet[key] = err
}

// SetGetDelay makes each Get sleep for d, or until its context ends.
func (m *MemoryStore) SetGetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getDelay = d
}

// ListCalls returns the number of ListPage calls made.
func (m *MemoryStore) ListCalls() int { return int(m.listCalls.Load()) }

// GetCalls returns the number of Get calls made.
func (m *MemoryStore) GetCalls() int { return int(m.getCalls.Load()) }

// PeakInFlight returns the highest number of concurrent Gets observed.
func (m *MemoryStore) PeakInFlight() int { return int(m.peak.Load()) }

// ListPage implements Store. The token is the last key of the previous page.
func (m *MemoryStore) ListPage(ctx context.Context, bucket, prefix, token string) (Page, error) {
	call := int(m.listCalls.Add(1)) - 1
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failList[call]; ok {
		return Page{}, err
	}

	b, ok := m.objects[bucket]
	if !ok {
		return Page{}, fmt.Errorf("bucket %q does not exist", bucket)
	}

	keys := make([]string, 0, len(b))
	for k := range b {
		if strings.HasPrefix(k, prefix) && k > token {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	if len(keys) <= m.pageSize {
		return Page{Keys: keys}, nil
	}
	keys = keys[:m.pageSize]
	return Page{Keys: keys, NextToken: keys[len(keys)-1]}, nil
}

// Get implements Store.
func (m *MemoryStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	m.getCalls.Add(1)
	n := m.inFlight.Add(1)
	defer m.inFlight.Add(-1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}

	m.mu.Lock()
	delay := m.getDelay
	failErr := m.failGet[key]
	body, ok := m.objects[bucket][key]
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failErr != nil {
		return nil, failErr
	}
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return append([]byte(nil), body...), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
