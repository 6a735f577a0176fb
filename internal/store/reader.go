package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/collector"
	"github.com/blevesearch/bleve/v2/search/query"
	index "github.com/blevesearch/bleve_index_api"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// Hit is one scored search result.
type Hit struct {
	DocID string
	Score float64
}

// StoredDoc holds the stored fields of one document. Numeric values are
// float64, text values string.
type StoredDoc map[string]interface{}

// ErrInvalidQuery marks a query the engine refused when building its
// searcher, such as a bad regular expression or an excessive fuzziness.
var ErrInvalidQuery = errors.New("invalid query")

// ReadSession is a point-in-time view of one committed generation. Commits
// made after it was opened are invisible to it. Close releases the
// snapshot.
type ReadSession struct {
	ix     *Index
	gen    *committed
	reader index.IndexReader
	meta   CommitMeta
	closed bool
}

// Reader opens a read session over the current committed state.
func (i *Index) Reader() (*ReadSession, error) {
	i.mu.RLock()
	if i.closed {
		i.mu.RUnlock()
		return nil, perrors.IndexLifecycle("open reader", errClosed)
	}
	c := i.cur
	c.acquire()
	i.mu.RUnlock()

	adv, err := c.idx.Advanced()
	if err != nil {
		c.release(i.logger)
		return nil, perrors.IndexLifecycle("open reader", err).WithDetail("path", i.path)
	}
	r, err := adv.Reader()
	if err != nil {
		c.release(i.logger)
		return nil, perrors.IndexLifecycle("open reader", err).WithDetail("path", i.path)
	}
	return &ReadSession{ix: i, gen: c, reader: r, meta: c.meta}, nil
}

// Meta returns the commit record visible to this session.
func (r *ReadSession) Meta() CommitMeta {
	return r.meta
}

// DocCount returns the number of documents in the snapshot.
func (r *ReadSession) DocCount() (uint64, error) {
	n, err := r.reader.DocCount()
	if err != nil {
		return 0, perrors.IndexLifecycle("count documents", err)
	}
	return n, nil
}

// Search runs q against the snapshot and returns at most limit hits by
// descending score.
func (r *ReadSession) Search(ctx context.Context, q query.Query, limit int) ([]Hit, error) {
	if limit < 1 {
		return nil, nil
	}

	searcher, err := q.Searcher(ctx, r.reader, r.gen.idx.Mapping(), search.SearcherOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	defer func() { _ = searcher.Close() }()

	coll := collector.NewTopNCollector(limit, 0, search.SortOrder{&search.SortScore{Desc: true}})
	if err := coll.Collect(ctx, searcher, r.reader); err != nil {
		return nil, err
	}

	matches := coll.Results()
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, Hit{DocID: m.ID, Score: m.Score})
	}
	return hits, nil
}

// Document returns the stored fields of docID, or nil if it is absent.
func (r *ReadSession) Document(docID string) (StoredDoc, error) {
	doc, err := r.reader.Document(docID)
	if err != nil {
		return nil, perrors.IndexLifecycle("load stored document", err).WithDetail("doc_id", docID)
	}
	if doc == nil {
		return nil, nil
	}

	out := StoredDoc{}
	doc.VisitFields(func(f index.Field) {
		switch v := f.(type) {
		case index.NumericField:
			if n, err := v.Number(); err == nil {
				out[f.Name()] = n
			}
		case index.TextField:
			out[f.Name()] = v.Text()
		}
	})
	return out, nil
}

func allIDs(r index.IndexReader) ([]string, error) {
	it, err := r.DocIDReaderAll()
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()

	var ids []string
	for {
		internal, err := it.Next()
		if err != nil {
			return nil, err
		}
		if internal == nil {
			return ids, nil
		}
		id, err := r.ExternalID(internal)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
}

// Close releases the snapshot. Closing twice is a no-op.
func (r *ReadSession) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.reader.Close()
	r.gen.release(r.ix.logger)
	return err
}
