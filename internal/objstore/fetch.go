package objstore

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// DefaultConcurrency is the number of gets allowed in flight at once.
const DefaultConcurrency = 10

// Fetcher retrieves object contents with bounded concurrency.
type Fetcher struct {
	Store       Store
	Bucket      string
	Concurrency int

	// OnFetched, if set, is called after each successful get.
	// It may be called from several goroutines at once.
	OnFetched func(key string, size int)
}

// Fetch returns the content of every key, in input order. At most
// Concurrency gets are in flight at any time. The first failure cancels
// the remaining gets and is returned; no partial result is produced.
func (f *Fetcher) Fetch(ctx context.Context, keys []string) ([]Object, error) {
	if f.Concurrency < 1 {
		return nil, fmt.Errorf("fetch concurrency must be at least 1, got %d", f.Concurrency)
	}

	out := make([]Object, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.Concurrency)

	for i, key := range keys {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			body, err := f.Store.Get(gctx, f.Bucket, key)
			if err != nil {
				return perrors.StoreAccess(fmt.Sprintf("get %s/%s failed", f.Bucket, key), err).
					WithDetail("bucket", f.Bucket).
					WithDetail("key", key)
			}
			out[i] = Object{Key: key, Body: body}
			if f.OnFetched != nil {
				f.OnFetched(key, len(body))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		// Cancelled before every key was scheduled.
		return nil, perrors.StoreAccess("fetch cancelled", err)
	}
	return out, nil
}
