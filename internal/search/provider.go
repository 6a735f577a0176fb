package search

import (
	"github.com/Aman-CERP/postsearch/internal/store"
)

// IndexProvider hands out an open index for one query. The release func
// must be called when the query is done.
type IndexProvider interface {
	Acquire() (ix *store.Index, release func(), err error)
}

// SharedIndex serves every query from one process-wide handle, the same
// handle scheduled builds commit through.
type SharedIndex struct {
	Index *store.Index
}

// Acquire implements IndexProvider.
func (s SharedIndex) Acquire() (*store.Index, func(), error) {
	return s.Index, func() {}, nil
}

// PerQueryIndex opens the committed generation read-only for each query
// and closes it afterwards. Each query sees the latest commit of a separate
// build process, and never waits for that build to finish.
type PerQueryIndex struct {
	Path    string
	Options store.Options
}

// Acquire implements IndexProvider. A path without an index fails with
// IndexNotFound.
func (p PerQueryIndex) Acquire() (*store.Index, func(), error) {
	opts := p.Options
	opts.ReadOnly = true
	ix, err := store.OpenExisting(p.Path, opts)
	if err != nil {
		return nil, nil, err
	}
	return ix, func() { _ = ix.Close() }, nil
}
