package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/schema"
)

// An index directory holds immutable committed generations and a pointer
// to the current one:
//
//	<path>/CURRENT           name of the committed generation
//	<path>/gen-000000000003  committed engine index, only ever opened read-only
//	<path>/next              staging copy owned by the active write session
//
// A write session copies the committed generation into next and writes
// there. Commit renames next to the following generation and replaces
// CURRENT with a rename, so a reader sees the old state or the new one and
// never a staged one.
const (
	currentFile = "CURRENT"
	stagingDir  = "next"
	genPrefix   = "gen-"
)

var errNoCurrent = errors.New("index has no committed generation")

func generationName(n uint64) string {
	return fmt.Sprintf("%s%012d", genPrefix, n)
}

func readCurrent(root string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, currentFile))
	if errors.Is(err, fs.ErrNotExist) {
		return "", errNoCurrent
	}
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if !strings.HasPrefix(name, genPrefix) || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid %s entry %q", currentFile, name)
	}
	return name, nil
}

// writeCurrent points CURRENT at name through a temp file and a rename.
func writeCurrent(root, name string) error {
	tmp := filepath.Join(root, currentFile+".tmp")
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(name + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, filepath.Join(root, currentFile)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	syncDir(root)
	return nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// owned reports whether a directory entry belongs to the index layout.
func owned(name string) bool {
	return name == currentFile || name == currentFile+".tmp" || name == stagingDir || strings.HasPrefix(name, genPrefix)
}

// sweep removes staging leftovers and every generation except keep. The
// caller must hold the writer lock. Read sessions in other processes keep
// reading a removed generation through their open files.
func sweep(root, keep string, logger *slog.Logger) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if name == keep || name == currentFile || !owned(name) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			logger.Warn("index_sweep_failed", slog.String("entry", name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("index_swept", slog.String("entry", name))
	}
}

// copyDir copies the committed generation src into dst, which must not exist.
func copyDir(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// committed is one open committed generation. Read sessions hold references
// to it; the last release closes it, and a retired generation's directory
// is removed then.
type committed struct {
	idx  bleve.Index
	dir  string
	meta CommitMeta

	mu      sync.Mutex
	refs    int
	retired bool
}

func (c *committed) acquire() {
	c.mu.Lock()
	c.refs++
	c.mu.Unlock()
}

func (c *committed) release(logger *slog.Logger) {
	c.mu.Lock()
	c.refs--
	last := c.refs == 0
	retired := c.retired
	c.mu.Unlock()
	if !last {
		return
	}

	if err := c.idx.Close(); err != nil {
		logger.Warn("generation_close_failed", slog.String("dir", c.dir), slog.String("error", err.Error()))
	}
	if retired {
		if err := os.RemoveAll(c.dir); err != nil {
			logger.Warn("generation_remove_failed", slog.String("dir", c.dir), slog.String("error", err.Error()))
		}
	}
}

// retire drops the owner's reference and marks the directory for removal.
func (c *committed) retire(logger *slog.Logger) {
	c.mu.Lock()
	c.retired = true
	c.mu.Unlock()
	c.release(logger)
}

// openCommitted opens the generation CURRENT names. A commit in another
// process may retire that generation between reading CURRENT and opening
// it, so the open is retried while CURRENT keeps moving.
func openCommitted(root string, opts Options) (*committed, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		name, err := readCurrent(root)
		if errors.Is(err, errNoCurrent) {
			return nil, err
		}
		if err != nil {
			return nil, perrors.IndexLifecycle("read current generation", err).WithDetail("path", root)
		}

		c, err := openGeneration(filepath.Join(root, name), opts)
		if err == nil {
			return c, nil
		}
		lastErr = err

		again, rerr := readCurrent(root)
		if rerr != nil || again == name {
			break
		}
	}
	return nil, lastErr
}

func openGeneration(dir string, opts Options) (*committed, error) {
	idx, err := bleve.OpenUsing(dir, runtimeConfig(opts.LockTimeout, true))
	if err != nil {
		return nil, openError(dir, err)
	}

	fp, err := idx.GetInternal(keySchema)
	if err != nil {
		_ = idx.Close()
		return nil, perrors.IndexLifecycle("read schema fingerprint", err).WithDetail("path", dir)
	}
	if want := schema.Fingerprint(); string(fp) != want {
		_ = idx.Close()
		return nil, perrors.New(perrors.ErrCodeIndexSchemaMismatch, "index was built with a different schema", nil).
			WithDetail("path", dir).
			WithDetail("found", string(fp)).
			WithDetail("expected", want).
			WithSuggestion("remove the index directory and rebuild")
	}

	meta, err := readCommitMeta(idx)
	if err != nil {
		_ = idx.Close()
		return nil, perrors.IndexLifecycle("read commit metadata", err).WithDetail("path", dir)
	}
	return &committed{idx: idx, dir: dir, meta: meta, refs: 1}, nil
}

func readCommitMeta(idx bleve.Index) (CommitMeta, error) {
	data, err := idx.GetInternal(keyCommit)
	if err != nil {
		return CommitMeta{}, err
	}
	return decodeCommitMeta(data)
}
