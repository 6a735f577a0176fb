package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/blevesearch/bleve/v2"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/post"
	"github.com/Aman-CERP/postsearch/internal/schema"
)

// ErrDocumentRejected marks a single document the engine refused to stage.
// The session stays usable after it.
var ErrDocumentRejected = errors.New("document rejected")

// ErrSessionDone is returned by operations on a committed or rolled back
// session.
var ErrSessionDone = errors.New("write session already finished")

// WriteSession stages documents and makes them visible atomically on Commit.
// Only one session exists per index at a time.
//
// The session writes into a private copy of the committed generation.
// Staged bytes beyond the memory budget are flushed to that copy, which no
// reader opens, so nothing is visible before Commit and Rollback discards
// everything.
type WriteSession struct {
	ix      *Index
	staging bleve.Index
	dir     string
	base    CommitMeta
	batch   *bleve.Batch
	lock    *FileLock
	budget  uint64

	runID     string
	staged    int
	flushes   int
	truncated bool
	done      bool
}

// Writer acquires the exclusive write session, waiting up to the configured
// lock timeout or until ctx is done. A held writer is an IndexLocked error.
func (i *Index) Writer(ctx context.Context) (*WriteSession, error) {
	if i.opts.ReadOnly {
		return nil, perrors.IndexLifecycle("index is open read-only", nil).WithDetail("path", i.path)
	}
	if err := i.acquireWriter(ctx); err != nil {
		return nil, err
	}

	lock := NewFileLock(i.path)
	ok, err := lock.LockWithin(ctx, i.opts.LockTimeout)
	if err != nil || !ok {
		<-i.writer
		return nil, perrors.New(perrors.ErrCodeIndexLocked, "index writer is held by another process", err).
			WithDetail("lock", lock.Path())
	}

	i.mu.RLock()
	closed := i.closed
	i.mu.RUnlock()
	if closed {
		_ = lock.Unlock()
		<-i.writer
		return nil, perrors.IndexLifecycle("open writer", errClosed)
	}

	w, err := i.beginSession(lock)
	if err != nil {
		_ = lock.Unlock()
		<-i.writer
		return nil, err
	}
	i.logger.Debug("writer_acquired",
		slog.String("lock", lock.Path()),
		slog.Uint64("base_generation", w.base.Generation))
	return w, nil
}

// beginSession copies the generation CURRENT names into the staging
// directory. CURRENT is read from disk because another process may have
// committed since this handle opened.
func (i *Index) beginSession(lock *FileLock) (*WriteSession, error) {
	base, err := readCurrent(i.path)
	if err != nil {
		return nil, perrors.IndexLifecycle("read current generation", err).WithDetail("path", i.path)
	}
	sweep(i.path, base, i.logger)

	dir := filepath.Join(i.path, stagingDir)
	if err := copyDir(filepath.Join(i.path, base), dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, perrors.IndexLifecycle("copy committed generation", err).WithDetail("path", i.path)
	}
	idx, err := bleve.OpenUsing(dir, runtimeConfig(i.opts.LockTimeout, false))
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, perrors.IndexLifecycle("open staging copy", err).WithDetail("path", dir)
	}
	meta, err := readCommitMeta(idx)
	if err != nil {
		_ = idx.Close()
		_ = os.RemoveAll(dir)
		return nil, perrors.IndexLifecycle("read commit metadata", err).WithDetail("path", dir)
	}

	return &WriteSession{
		ix:      i,
		staging: idx,
		dir:     dir,
		base:    meta,
		batch:   idx.NewBatch(),
		lock:    lock,
		budget:  i.opts.MemoryBudget,
	}, nil
}

func (i *Index) acquireWriter(ctx context.Context) error {
	select {
	case i.writer <- struct{}{}:
		return nil
	default:
	}
	if i.opts.LockTimeout <= 0 {
		return perrors.New(perrors.ErrCodeIndexLocked, "index writer is already held", nil).
			WithDetail("path", i.path)
	}

	timer := time.NewTimer(i.opts.LockTimeout)
	defer timer.Stop()
	select {
	case i.writer <- struct{}{}:
		return nil
	case <-timer.C:
		return perrors.New(perrors.ErrCodeIndexLocked, "timed out waiting for index writer", nil).
			WithDetail("path", i.path).
			WithDetail("timeout", i.opts.LockTimeout.String())
	case <-ctx.Done():
		return perrors.New(perrors.ErrCodeIndexLocked, "gave up waiting for index writer", ctx.Err()).
			WithDetail("path", i.path)
	}
}

// SetRunID tags the commit record with the build run that produced it.
func (w *WriteSession) SetRunID(id string) {
	w.runID = id
}

// Staged returns the number of documents staged so far.
func (w *WriteSession) Staged() int {
	return w.staged
}

// Stage adds or replaces a post. A rejection of this one document wraps
// ErrDocumentRejected; any other error is fatal to the session.
func (w *WriteSession) Stage(p *post.Post) error {
	if w.done {
		return ErrSessionDone
	}
	if p == nil {
		return fmt.Errorf("%w: nil post", ErrDocumentRejected)
	}
	if err := w.batch.Index(p.ID, schema.Document(p)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrDocumentRejected, p.ID, err)
	}
	w.staged++
	return w.maybeFlush()
}

// Delete removes a post by ID. Deleting an absent ID is not an error.
func (w *WriteSession) Delete(id string) error {
	if w.done {
		return ErrSessionDone
	}
	w.batch.Delete(id)
	return w.maybeFlush()
}

// Truncate stages removal of every committed document. Call it before
// staging: documents staged afterwards in the same session are kept.
func (w *WriteSession) Truncate() error {
	if w.done {
		return ErrSessionDone
	}

	ids, err := w.stagedIDs()
	if err != nil {
		return perrors.IndexLifecycle("list documents for truncate", err).WithDetail("path", w.ix.path)
	}
	for _, id := range ids {
		w.batch.Delete(id)
	}
	w.truncated = true
	w.ix.logger.Info("index_truncate_staged", slog.Int("documents", len(ids)))
	return w.maybeFlush()
}

func (w *WriteSession) stagedIDs() ([]string, error) {
	adv, err := w.staging.Advanced()
	if err != nil {
		return nil, err
	}
	r, err := adv.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return allIDs(r)
}

func (w *WriteSession) maybeFlush() error {
	if w.batch.TotalDocsSize() < w.budget {
		return nil
	}
	return w.flush()
}

// flush applies the buffered batch to the staging copy.
func (w *WriteSession) flush() error {
	size := w.batch.TotalDocsSize()
	if err := w.staging.Batch(w.batch); err != nil {
		return perrors.IndexLifecycle("flush staged documents", err).WithDetail("path", w.dir)
	}
	w.batch.Reset()
	w.flushes++
	w.ix.logger.Debug("writer_flushed",
		slog.Uint64("bytes", size),
		slog.Int("flushes", w.flushes))
	return nil
}

// Commit durably applies everything staged and ends the session. On success
// the index generation advances by one and new read sessions see the
// result. On failure the committed state is unchanged.
func (w *WriteSession) Commit() (CommitMeta, error) {
	if w.done {
		return CommitMeta{}, ErrSessionDone
	}
	defer w.release()

	meta := CommitMeta{
		Generation:  w.base.Generation + 1,
		CommittedAt: time.Now().UTC(),
		RunID:       w.runID,
		Staged:      w.staged,
		Truncated:   w.truncated,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return CommitMeta{}, perrors.InternalError("encode commit metadata", err)
	}
	w.batch.SetInternal(keyCommit, data)
	if err := w.flush(); err != nil {
		return CommitMeta{}, err
	}

	err = w.staging.Close()
	w.staging = nil
	if err != nil {
		return CommitMeta{}, perrors.IndexLifecycle("close staging copy", err).WithDetail("path", w.dir)
	}

	name := generationName(meta.Generation)
	dir := filepath.Join(w.ix.path, name)
	if err := os.Rename(w.dir, dir); err != nil {
		return CommitMeta{}, perrors.IndexLifecycle("install staged generation", err).WithDetail("path", dir)
	}
	c, err := openGeneration(dir, w.ix.opts)
	if err != nil {
		_ = os.RemoveAll(dir)
		return CommitMeta{}, err
	}
	if err := writeCurrent(w.ix.path, name); err != nil {
		c.release(w.ix.logger)
		_ = os.RemoveAll(dir)
		return CommitMeta{}, perrors.IndexLifecycle("write current generation", err).WithDetail("path", w.ix.path)
	}

	w.ix.install(c)
	w.ix.logger.Info("index_committed",
		slog.Uint64("generation", meta.Generation),
		slog.Int("staged", meta.Staged),
		slog.Int("flushes", w.flushes),
		slog.String("run_id", meta.RunID))
	return meta, nil
}

// Rollback discards everything staged, flushed or not, and ends the
// session. It is a no-op on a finished session.
func (w *WriteSession) Rollback() {
	if w.done {
		return
	}
	w.batch.Reset()
	w.release()
	w.ix.logger.Info("index_rolled_back",
		slog.Int("staged", w.staged),
		slog.Int("flushes", w.flushes))
}

// release drops the staging copy and frees the writer. After a successful
// commit the copy has already been renamed away.
func (w *WriteSession) release() {
	w.done = true
	if w.staging != nil {
		if err := w.staging.Close(); err != nil {
			w.ix.logger.Warn("staging_close_failed", slog.String("error", err.Error()))
		}
		w.staging = nil
	}
	if err := os.RemoveAll(w.dir); err != nil {
		w.ix.logger.Warn("staging_remove_failed", slog.String("error", err.Error()))
	}
	if err := w.lock.Unlock(); err != nil {
		w.ix.logger.Warn("writer_unlock_failed", slog.String("error", err.Error()))
	}
	<-w.ix.writer
}
