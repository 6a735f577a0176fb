package objstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// Enumerator lists every key under a prefix, walking all pages.
type Enumerator struct {
	Store  Store
	Bucket string
	Prefix string
	Logger *slog.Logger
}

// Enumerate returns the sorted, de-duplicated keys under the prefix.
// A failure on any page fails the whole enumeration and no keys are returned.
func (e *Enumerator) Enumerate(ctx context.Context) ([]string, error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		keys   []string
		seen   = make(map[string]struct{})
		tokens = make(map[string]struct{})
		token  string
	)

	for page := 0; ; page++ {
		if err := ctx.Err(); err != nil {
			return nil, e.pageError(page, err)
		}

		p, err := e.Store.ListPage(ctx, e.Bucket, e.Prefix, token)
		if err != nil {
			return nil, e.pageError(page, err)
		}

		for _, k := range p.Keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}

		logger.Debug("list_page",
			slog.String("bucket", e.Bucket),
			slog.Int("page", page),
			slog.Int("keys", len(p.Keys)))

		if p.NextToken == "" {
			break
		}
		if _, repeat := tokens[p.NextToken]; repeat {
			return nil, e.pageError(page, fmt.Errorf("continuation token %q repeated", p.NextToken))
		}
		tokens[p.NextToken] = struct{}{}
		token = p.NextToken
	}

	sort.Strings(keys)
	return keys, nil
}

func (e *Enumerator) pageError(page int, err error) error {
	return perrors.StoreAccess(fmt.Sprintf("list %s/%s failed on page %d", e.Bucket, e.Prefix, page), err).
		WithDetail("bucket", e.Bucket).
		WithDetail("prefix", e.Prefix).
		WithDetail("page", strconv.Itoa(page))
}

// FilterSuffix keeps the keys ending in suffix. An empty suffix keeps all.
func FilterSuffix(keys []string, suffix string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasSuffix(k, suffix) {
			out = append(out, k)
		}
	}
	return out
}
