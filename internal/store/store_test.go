package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/post"
	"github.com/Aman-CERP/postsearch/internal/schema"
)

func newTestIndex(t *testing.T) (*Index, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "posts.bleve")
	ix, err := OpenOrCreate(path, Options{LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix, path
}

func testPost(id, title string) *post.Post {
	return &post.Post{
		ID:          id,
		Title:       title,
		URL:         "https://example.com/" + id,
		NumPoints:   10,
		NumComments: 2,
		Author:      "alice",
		CreatedAt:   "2024-01-01T00:00:00Z",
	}
}

func commitPosts(t *testing.T, ix *Index, posts ...*post.Post) CommitMeta {
	t.Helper()
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	for _, p := range posts {
		require.NoError(t, w.Stage(p))
	}
	meta, err := w.Commit()
	require.NoError(t, err)
	return meta
}

func titleQuery(term string) query.Query {
	q := query.NewMatchQuery(term)
	q.SetField(schema.FieldTitle)
	return q
}

func docCount(t *testing.T, ix *Index) uint64 {
	t.Helper()
	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	n, err := r.DocCount()
	require.NoError(t, err)
	return n
}

func TestOpenOrCreate_CreatesThenReopens(t *testing.T) {
	// Given: no index on disk
	path := filepath.Join(t.TempDir(), "nested", "posts.bleve")

	// When: opening twice with a commit in between
	ix, err := OpenOrCreate(path, Options{})
	require.NoError(t, err)
	commitPosts(t, ix, testPost("1", "hello world"))
	require.NoError(t, ix.Close())

	ix, err = OpenOrCreate(path, Options{})
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	// Then: the second open sees the committed document and generation
	assert.Equal(t, uint64(1), docCount(t, ix))
	assert.Equal(t, uint64(1), ix.Generation())
}

func TestOpenOrCreate_RecreatesEmptyDirectory(t *testing.T) {
	// Given: an empty directory where the index should be
	path := filepath.Join(t.TempDir(), "posts.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))

	// When: opening
	ix, err := OpenOrCreate(path, Options{})

	// Then: a fresh index is created in its place
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()
	assert.Equal(t, uint64(0), docCount(t, ix))
}

func TestOpenExisting_MissingIsNotFound(t *testing.T) {
	// Given: a path with no index
	path := filepath.Join(t.TempDir(), "posts.bleve")

	// When: opening without create
	_, err := OpenExisting(path, Options{ReadOnly: true})

	// Then: the error is IndexNotFound
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrIndexNotFound)
}

func TestOpenExisting_SchemaMismatch(t *testing.T) {
	// Given: an index whose recorded fingerprint differs
	ix, path := newTestIndex(t)
	require.NoError(t, ix.Close())
	name, err := readCurrent(path)
	require.NoError(t, err)
	raw, err := bleve.Open(filepath.Join(path, name))
	require.NoError(t, err)
	require.NoError(t, raw.SetInternal(keySchema, []byte("something-else")))
	require.NoError(t, raw.Close())

	// When: opening it again
	_, err = OpenExisting(path, Options{})

	// Then: the open is refused with a schema mismatch
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrSchemaMismatch)
}

func TestOpenOrCreate_RefusesForeignDirectory(t *testing.T) {
	// Given: a directory holding unrelated files
	path := filepath.Join(t.TempDir(), "posts.bleve")
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "notes.txt"), []byte("keep"), 0o644))

	// When: opening it as an index
	_, err := OpenOrCreate(path, Options{})

	// Then: it is refused and the file survives
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrIndexLifecycle)
	assert.FileExists(t, filepath.Join(path, "notes.txt"))
}

func TestOpenExisting_ReadersDoNotWaitForWriters(t *testing.T) {
	// Given: a committed index held open by one handle with an active writer
	ix, path := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "committed"))
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	defer w.Rollback()
	require.NoError(t, w.Stage(testPost("2", "staged")))

	// When: another handle opens the index read-only
	ro, err := OpenExisting(path, Options{ReadOnly: true})

	// Then: it opens at once and sees only the committed state
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()
	assert.Equal(t, uint64(1), ro.Generation())
	assert.Equal(t, uint64(1), docCount(t, ro))
}

func TestWriter_SecondHandleIsLocked(t *testing.T) {
	// Given: two handles on the same index, one with an active writer
	ix, path := newTestIndex(t)
	other, err := OpenOrCreate(path, Options{LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = other.Close() }()

	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	defer w.Rollback()

	// When: the other handle asks for a writer
	_, err = other.Writer(context.Background())

	// Then: the file lock refuses it
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrIndexLocked)
	assert.True(t, perrors.IsRetryable(err))
}

func TestWriter_BuildsOnOtherHandlesCommits(t *testing.T) {
	// Given: two handles, the second commits first
	ix, path := newTestIndex(t)
	other, err := OpenOrCreate(path, Options{})
	require.NoError(t, err)
	defer func() { _ = other.Close() }()
	commitPosts(t, other, testPost("1", "from other"))

	// When: the first handle commits afterwards
	meta := commitPosts(t, ix, testPost("2", "from first"))

	// Then: its commit extends the other's instead of replacing it
	assert.Equal(t, uint64(2), meta.Generation)
	assert.Equal(t, uint64(2), docCount(t, ix))
}

func TestWriteSession_CommitVisibility(t *testing.T) {
	// Given: a reader opened before anything is staged
	ix, _ := newTestIndex(t)
	before, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = before.Close() }()

	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Stage(testPost("123", "Rust is great")))

	// When: staged but not committed
	// Then: no reader sees the document
	assert.Equal(t, uint64(0), docCount(t, ix))

	// When: committed
	meta, err := w.Commit()
	require.NoError(t, err)

	// Then: new readers see it, the old snapshot does not
	assert.Equal(t, uint64(1), meta.Generation)
	assert.Equal(t, 1, meta.Staged)
	assert.Equal(t, uint64(1), docCount(t, ix))

	n, err := before.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	hits, err := before.Search(context.Background(), titleQuery("rust"), 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestWriteSession_RestageReplaces(t *testing.T) {
	// Given: a committed post
	ix, _ := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "old title"))

	// When: the same ID is committed again with a new title
	updated := testPost("1", "new title")
	updated.NumPoints = 99
	commitPosts(t, ix, updated)

	// Then: one document exists with the new content
	assert.Equal(t, uint64(1), docCount(t, ix))
	assert.Equal(t, uint64(2), ix.Generation())

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	hits, err := r.Search(context.Background(), titleQuery("old"), 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	doc, err := r.Document("1")
	require.NoError(t, err)
	assert.Equal(t, 99.0, doc[schema.FieldNumPoints])
}

func TestWriteSession_RollbackDiscards(t *testing.T) {
	// Given: a session with a staged post
	ix, _ := newTestIndex(t)
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Stage(testPost("1", "discard me")))

	// When: rolled back
	w.Rollback()

	// Then: nothing is committed and the writer is free again
	assert.Equal(t, uint64(0), docCount(t, ix))
	assert.Equal(t, uint64(0), ix.Generation())
	assert.ErrorIs(t, w.Stage(testPost("2", "late")), ErrSessionDone)

	w2, err := ix.Writer(context.Background())
	require.NoError(t, err)
	w2.Rollback()
}

func TestWriteSession_EmptyIDRejected(t *testing.T) {
	// Given: a session
	ix, _ := newTestIndex(t)
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)

	// When: staging a post without an ID
	err = w.Stage(testPost("", "no id"))

	// Then: only that document is rejected
	assert.ErrorIs(t, err, ErrDocumentRejected)
	require.NoError(t, w.Stage(testPost("2", "fine")))
	meta, err := w.Commit()
	require.NoError(t, err)
	assert.Equal(t, 1, meta.Staged)
}

func TestWriteSession_Truncate(t *testing.T) {
	// Given: an index with two posts
	ix, _ := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "first"), testPost("2", "second"))

	// When: a session truncates and stages one new post
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	require.NoError(t, w.Truncate())
	require.NoError(t, w.Stage(testPost("3", "third")))
	meta, err := w.Commit()
	require.NoError(t, err)

	// Then: only the new post remains
	assert.True(t, meta.Truncated)
	assert.Equal(t, uint64(1), docCount(t, ix))
	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	doc, err := r.Document("1")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestWriteSession_SmallBudgetFlushesEarly(t *testing.T) {
	// Given: an index with a tiny memory budget
	path := filepath.Join(t.TempDir(), "posts.bleve")
	ix, err := OpenOrCreate(path, Options{MemoryBudget: 1})
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	// When: staging several posts
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, w.Stage(testPost(id, "title "+id)))
	}

	// Then: flushed documents are still invisible before commit
	assert.GreaterOrEqual(t, w.flushes, 3)
	assert.Equal(t, uint64(0), docCount(t, ix))

	_, err = w.Commit()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), docCount(t, ix))
}

func TestWriteSession_RollbackAfterFlushesLeavesCommittedState(t *testing.T) {
	tests := []struct {
		name     string
		truncate bool
	}{
		{name: "staging only"},
		{name: "truncate then staging", truncate: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a committed post and a session whose budget forces flushes
			path := filepath.Join(t.TempDir(), "posts.bleve")
			ix, err := OpenOrCreate(path, Options{MemoryBudget: 1})
			require.NoError(t, err)
			defer func() { _ = ix.Close() }()
			commitPosts(t, ix, testPost("keep", "committed"))

			w, err := ix.Writer(context.Background())
			require.NoError(t, err)
			if tt.truncate {
				require.NoError(t, w.Truncate())
			}
			for _, id := range []string{"1", "2", "3", "4", "5"} {
				require.NoError(t, w.Stage(testPost(id, "staged "+id)))
			}
			require.Positive(t, w.flushes)

			// When: the session rolls back
			w.Rollback()

			// Then: the committed state is untouched
			assert.Equal(t, uint64(1), ix.Generation())
			assert.Equal(t, uint64(1), docCount(t, ix))
			reopened, err := OpenExisting(path, Options{ReadOnly: true})
			require.NoError(t, err)
			defer func() { _ = reopened.Close() }()
			assert.Equal(t, uint64(1), docCount(t, reopened))
			assert.NoDirExists(t, filepath.Join(path, stagingDir))
		})
	}
}

func TestWriteSession_CommitSwapsGenerations(t *testing.T) {
	// Given: an index with a reader on the first commit
	ix, path := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "one"))
	old, err := ix.Reader()
	require.NoError(t, err)

	// When: a second commit lands
	commitPosts(t, ix, testPost("2", "two"))

	// Then: CURRENT names the new generation and the old one lives until
	// its last reader closes
	name, err := readCurrent(path)
	require.NoError(t, err)
	assert.Equal(t, generationName(2), name)
	assert.DirExists(t, filepath.Join(path, generationName(1)))

	n, err := old.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
	require.NoError(t, old.Close())
	assert.NoDirExists(t, filepath.Join(path, generationName(1)))
}

func TestWriter_SweepsInterruptedSession(t *testing.T) {
	// Given: a staging directory left by a crashed writer
	ix, path := newTestIndex(t)
	require.NoError(t, os.MkdirAll(filepath.Join(path, stagingDir, "junk"), 0o755))

	// When: a new session commits
	meta := commitPosts(t, ix, testPost("1", "after crash"))

	// Then: the leftover is gone and the commit succeeded
	assert.Equal(t, uint64(1), meta.Generation)
	assert.NoDirExists(t, filepath.Join(path, stagingDir))
	assert.Equal(t, uint64(1), docCount(t, ix))
}

func TestWriter_SecondWriterIsLocked(t *testing.T) {
	// Given: a held writer
	ix, _ := newTestIndex(t)
	w, err := ix.Writer(context.Background())
	require.NoError(t, err)
	defer w.Rollback()

	// When: another writer is requested
	_, err = ix.Writer(context.Background())

	// Then: it fails as locked after the timeout
	require.Error(t, err)
	assert.ErrorIs(t, err, perrors.ErrIndexLocked)
}

func TestWriter_WaitsForRelease(t *testing.T) {
	// Given: a held writer and a generous timeout
	path := filepath.Join(t.TempDir(), "posts.bleve")
	ix, err := OpenOrCreate(path, Options{LockTimeout: 5 * time.Second})
	require.NoError(t, err)
	defer func() { _ = ix.Close() }()

	w, err := ix.Writer(context.Background())
	require.NoError(t, err)

	// When: a second writer waits while the first commits
	var wg sync.WaitGroup
	var second *WriteSession
	var secondErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = ix.Writer(context.Background())
	}()
	time.Sleep(50 * time.Millisecond)
	_, err = w.Commit()
	require.NoError(t, err)
	wg.Wait()

	// Then: the second writer gets the session
	require.NoError(t, secondErr)
	second.Rollback()
}

func TestWriter_ReadOnlyIndex(t *testing.T) {
	// Given: an index reopened read-only
	ix, path := newTestIndex(t)
	require.NoError(t, ix.Close())
	ro, err := OpenExisting(path, Options{ReadOnly: true})
	require.NoError(t, err)
	defer func() { _ = ro.Close() }()

	// When: a writer is requested
	_, err = ro.Writer(context.Background())

	// Then: it is refused
	assert.ErrorIs(t, err, perrors.ErrIndexLifecycle)
}

func TestReadSession_SearchAndStoredFields(t *testing.T) {
	// Given: two posts, one matching
	ix, _ := newTestIndex(t)
	commitPosts(t, ix, testPost("123", "Rust is great"), testPost("456", "Go is fine"))

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// When: searching title and loading the hit
	hits, err := r.Search(context.Background(), titleQuery("rust"), 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "123", hits[0].DocID)
	assert.Greater(t, hits[0].Score, 0.0)

	doc, err := r.Document(hits[0].DocID)
	require.NoError(t, err)

	// Then: stored fields come back, unstored ones do not
	assert.Equal(t, "123", doc[schema.FieldID])
	assert.Equal(t, "alice", doc[schema.FieldAuthor])
	assert.Equal(t, 10.0, doc[schema.FieldNumPoints])
	assert.Equal(t, 2.0, doc[schema.FieldNumComments])
	assert.NotContains(t, doc, schema.FieldTitle)
	assert.NotContains(t, doc, schema.FieldURL)
	assert.NotContains(t, doc, schema.FieldCreatedAt)
}

func TestReadSession_URLIsNotSearchable(t *testing.T) {
	// Given: a post whose URL holds a unique word
	ix, _ := newTestIndex(t)
	p := testPost("1", "plain")
	p.URL = "https://zebra.example"
	commitPosts(t, ix, p)

	r, err := ix.Reader()
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	// When: searching the url field
	q := query.NewMatchQuery("zebra")
	q.SetField(schema.FieldURL)
	hits, err := r.Search(context.Background(), q, 3)

	// Then: nothing matches
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_StatsAndClose(t *testing.T) {
	// Given: a committed index
	ix, path := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "one"))

	// When: reading stats
	stats, err := ix.Stats()
	require.NoError(t, err)

	// Then: they describe the last commit
	assert.Equal(t, path, stats.Path)
	assert.Equal(t, uint64(1), stats.Documents)
	assert.Equal(t, uint64(1), stats.LastCommit.Generation)
	assert.Greater(t, stats.SizeBytes, int64(0))

	// And: after close, readers fail and close is idempotent
	require.NoError(t, ix.Close())
	require.NoError(t, ix.Close())
	_, err = ix.Reader()
	assert.Error(t, err)
}

func TestFileLock_Exclusive(t *testing.T) {
	// Given: a lock held for an index path
	path := filepath.Join(t.TempDir(), "posts.bleve")
	first := NewFileLock(path)
	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer func() { _ = first.Unlock() }()

	// When: a second lock on the same path waits briefly
	second := NewFileLock(path)
	ok, err = second.LockWithin(context.Background(), 50*time.Millisecond)

	// Then: it is not acquired and the lock file is a sibling
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, filepath.Join(filepath.Dir(path), ".posts.bleve.lock"), first.Path())
}

func TestReadSession_InvalidQueryIsMarked(t *testing.T) {
	tests := []struct {
		name string
		q    query.Query
	}{
		{name: "bad regexp", q: func() query.Query {
			q := query.NewRegexpQuery("[a")
			q.SetField(schema.FieldTitle)
			return q
		}()},
		{name: "fuzziness above limit", q: func() query.Query {
			q := query.NewFuzzyQuery("rust")
			q.SetFuzziness(9)
			q.SetField(schema.FieldTitle)
			return q
		}()},
	}

	ix, _ := newTestIndex(t)
	commitPosts(t, ix, testPost("1", "rust"))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := ix.Reader()
			require.NoError(t, err)
			defer func() { _ = r.Close() }()

			_, err = r.Search(context.Background(), tt.q, 3)

			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}
