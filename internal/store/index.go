// Package store manages the on-disk post index: creating or opening it,
// a single exclusive write session with an explicit commit, and
// point-in-time read sessions.
package store

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/schema"
)

// DefaultMemoryBudget is the writer's buffered-write budget in bytes.
const DefaultMemoryBudget = 50_000_000

// Options configures how an index is opened.
type Options struct {
	// MemoryBudget caps the bytes buffered in a write session before they
	// are flushed to the session's staging copy. Zero means
	// DefaultMemoryBudget.
	MemoryBudget uint64
	// LockTimeout bounds waits for the writer lock. Zero fails immediately
	// when it is held.
	LockTimeout time.Duration
	// ReadOnly opens without write access. Writer fails on such an index.
	ReadOnly bool
	Logger   *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.MemoryBudget == 0 {
		o.MemoryBudget = DefaultMemoryBudget
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Index is an open post index. It is safe for concurrent use: any number of
// read sessions may be open while at most one write session is.
type Index struct {
	mu      sync.RWMutex
	cur     *committed
	mapping mapping.IndexMapping
	path    string
	opts    Options
	closed  bool

	// writer is a one-slot semaphore held by the active write session.
	writer     chan struct{}
	generation atomic.Uint64
	logger     *slog.Logger
}

// OpenOrCreate opens the index at path, creating an empty one when path
// holds none. Create failures are IndexLifecycle errors.
func OpenOrCreate(path string, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	if opts.ReadOnly {
		return nil, perrors.IndexLifecycle("cannot create an index read-only", nil)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, perrors.IndexLifecycle("create index directory", err).WithDetail("path", path)
	}

	if _, err := readCurrent(path); errors.Is(err, errNoCurrent) {
		if err := create(path, opts); err != nil {
			return nil, err
		}
	}

	c, err := openCommitted(path, opts)
	if errors.Is(err, errNoCurrent) {
		return nil, perrors.IndexLifecycle("open created index", err).WithDetail("path", path)
	}
	if err != nil {
		return nil, err
	}
	opts.Logger.Info("index_opened", slog.String("path", path), slog.Uint64("generation", c.meta.Generation))
	return newIndex(c, path, opts), nil
}

// OpenExisting opens the index at path without ever creating one.
// A path with no index is an IndexNotFound error.
func OpenExisting(path string, opts Options) (*Index, error) {
	opts = opts.withDefaults()

	c, err := openCommitted(path, opts)
	if errors.Is(err, errNoCurrent) {
		return nil, perrors.IndexNotFound(path)
	}
	if err != nil {
		return nil, err
	}
	return newIndex(c, path, opts), nil
}

// create writes an empty generation 0 under the writer lock. Another
// process may have created the index while the lock was awaited.
func create(root string, opts Options) error {
	lock := NewFileLock(root)
	ok, err := lock.LockWithin(context.Background(), opts.LockTimeout)
	if err != nil {
		return perrors.IndexLifecycle("lock index for create", err).WithDetail("path", root)
	}
	if !ok {
		return perrors.New(perrors.ErrCodeIndexLocked, "index is being created by another process", nil).
			WithDetail("lock", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	if _, err := readCurrent(root); err == nil {
		return nil
	} else if !errors.Is(err, errNoCurrent) {
		return perrors.IndexLifecycle("read current generation", err).WithDetail("path", root)
	}
	if err := clearForCreate(root, opts.Logger); err != nil {
		return err
	}

	m, err := schema.New()
	if err != nil {
		return perrors.IndexLifecycle("build schema mapping", err)
	}
	staging := filepath.Join(root, stagingDir)
	idx, err := bleve.NewUsing(staging, m, bleve.Config.DefaultIndexType, bleve.Config.DefaultKVStore, runtimeConfig(opts.LockTimeout, false))
	if err != nil {
		return perrors.IndexLifecycle("create index", err).WithDetail("path", root)
	}
	if err := idx.SetInternal(keySchema, []byte(schema.Fingerprint())); err != nil {
		_ = idx.Close()
		_ = os.RemoveAll(staging)
		return perrors.IndexLifecycle("record schema fingerprint", err).WithDetail("path", root)
	}
	if err := idx.Close(); err != nil {
		_ = os.RemoveAll(staging)
		return perrors.IndexLifecycle("close created index", err).WithDetail("path", root)
	}

	name := generationName(0)
	if err := os.Rename(staging, filepath.Join(root, name)); err != nil {
		_ = os.RemoveAll(staging)
		return perrors.IndexLifecycle("install created index", err).WithDetail("path", root)
	}
	if err := writeCurrent(root, name); err != nil {
		return perrors.IndexLifecycle("write current generation", err).WithDetail("path", root)
	}
	opts.Logger.Info("index_created", slog.String("path", root))
	return nil
}

// clearForCreate removes leftovers of an interrupted create. A directory
// holding anything outside the index layout is refused.
func clearForCreate(root string, logger *slog.Logger) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return perrors.IndexLifecycle("read index directory", err).WithDetail("path", root)
	}
	for _, e := range entries {
		if !owned(e.Name()) {
			return perrors.IndexLifecycle("directory is not a post index", nil).
				WithDetail("path", root).
				WithDetail("entry", e.Name()).
				WithSuggestion("point index.path at an empty or dedicated directory")
		}
	}
	for _, e := range entries {
		logger.Warn("index_leftover_removed", slog.String("entry", e.Name()))
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return perrors.IndexLifecycle("remove index leftover", err).WithDetail("entry", e.Name())
		}
	}
	return nil
}

// runtimeConfig is passed to the engine. The bolt timeout makes a contended
// open fail instead of blocking forever.
func runtimeConfig(timeout time.Duration, readOnly bool) map[string]interface{} {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	cfg := map[string]interface{}{
		"bolt_timeout": timeout.String(),
	}
	if readOnly {
		cfg["read_only"] = true
	}
	return cfg
}

func openError(path string, err error) error {
	if isLockTimeout(err) {
		return perrors.New(perrors.ErrCodeIndexLocked, "index is held by another process", err).
			WithDetail("path", path)
	}
	return perrors.IndexLifecycle("open index", err).
		WithDetail("path", path).
		WithSuggestion("remove the index directory and run 'postsearch build' to recreate it")
}

func newIndex(c *committed, path string, opts Options) *Index {
	i := &Index{
		cur:     c,
		mapping: c.idx.Mapping(),
		path:    path,
		opts:    opts,
		writer:  make(chan struct{}, 1),
		logger:  opts.Logger.With(slog.String("component", "index")),
	}
	i.generation.Store(c.meta.Generation)
	return i
}

// install makes c the generation served by this handle and retires the
// previous one once its read sessions close.
func (i *Index) install(c *committed) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		c.release(i.logger)
		return
	}
	old := i.cur
	i.cur = c
	i.generation.Store(c.meta.Generation)
	i.mu.Unlock()

	old.retire(i.logger)
}

// Path returns the index directory.
func (i *Index) Path() string {
	return i.path
}

// Mapping returns the mapping the index was opened with.
func (i *Index) Mapping() mapping.IndexMapping {
	return i.mapping
}

// Generation returns the number of commits made to this index. It changes
// exactly when committed state changes through this handle.
func (i *Index) Generation() uint64 {
	return i.generation.Load()
}

// Stats summarises the index.
type Stats struct {
	Path       string     `json:"path"`
	Documents  uint64     `json:"documents"`
	SizeBytes  int64      `json:"size_bytes"`
	LastCommit CommitMeta `json:"last_commit"`
}

// Stats returns the committed document count and last commit.
func (i *Index) Stats() (Stats, error) {
	r, err := i.Reader()
	if err != nil {
		return Stats{}, err
	}
	defer func() { _ = r.Close() }()

	n, err := r.DocCount()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		Path:       i.path,
		Documents:  n,
		SizeBytes:  dirSize(r.gen.dir),
		LastCommit: r.Meta(),
	}, nil
}

// Close closes the index. New sessions fail after Close; read sessions
// already open stay usable until they are closed.
func (i *Index) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil
	}
	i.closed = true
	c := i.cur
	i.mu.Unlock()

	c.release(i.logger)
	return nil
}

var errClosed = errors.New("index is closed")

func dirSize(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += info.Size()
		}
		return nil
	})
	return total
}

// isLockTimeout reports whether err is the engine's file-lock timeout. The
// engine surfaces it as a plain error, so it is matched by message.
func isLockTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), "timeout")
}
