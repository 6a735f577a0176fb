// Package objstore reads post objects from a blob store. It defines the
// minimal list/get contract the build pipeline consumes, the backends that
// implement it, and the enumeration and bounded fetch built on top.
package objstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key does not exist.
var ErrNotFound = errors.New("object not found")

// Page is one page of a listing.
type Page struct {
	Keys []string
	// NextToken continues the listing. Empty means the listing is exhausted.
	NextToken string
}

// Object is a fetched key and its content.
type Object struct {
	Key  string
	Body []byte
}

// Store is the object store read contract.
type Store interface {
	// ListPage returns one page of keys under prefix in bucket, starting
	// after token. An empty token starts a new listing.
	ListPage(ctx context.Context, bucket, prefix, token string) (Page, error)

	// Get returns the content of key in bucket.
	Get(ctx context.Context, bucket, key string) ([]byte, error)

	// Close releases backend resources.
	Close() error
}
