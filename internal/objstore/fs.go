package objstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FSStore serves objects from a directory tree. Each bucket is a directory
// under Root and keys are slash-separated paths inside it.
type FSStore struct {
	Root     string
	PageSize int
}

// NewFSStore creates a store rooted at root.
func NewFSStore(root string, pageSize int) *FSStore {
	if pageSize < 1 {
		pageSize = 1000
	}
	return &FSStore{Root: root, PageSize: pageSize}
}

// BucketDir returns the directory backing bucket.
func (s *FSStore) BucketDir(bucket string) string {
	return filepath.Join(s.Root, bucket)
}

// ListPage implements Store. The token is the last key of the previous page.
// Each page walks the bucket, so listings over very large trees are slow.
func (s *FSStore) ListPage(ctx context.Context, bucket, prefix, token string) (Page, error) {
	dir := s.BucketDir(bucket)
	var keys []string

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) && key > token {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return Page{}, fmt.Errorf("walk %s: %w", dir, err)
	}

	sort.Strings(keys)
	if len(keys) <= s.PageSize {
		return Page{Keys: keys}, nil
	}
	keys = keys[:s.PageSize]
	return Page{Keys: keys, NextToken: keys[len(keys)-1]}, nil
}

// Get implements Store.
func (s *FSStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	clean := path.Clean("/" + key)
	if clean == "/" || clean[1:] != key {
		return nil, fmt.Errorf("invalid key %q", key)
	}

	data, err := os.ReadFile(filepath.Join(s.BucketDir(bucket), filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrNotFound)
	}
	return data, err
}

// Close implements Store.
func (s *FSStore) Close() error { return nil }

var _ Store = (*FSStore)(nil)
