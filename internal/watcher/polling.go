package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// PollingWatcher detects changes by rescanning the tree on an interval.
type PollingWatcher struct {
	interval time.Duration
	state    map[string]fileSnapshot
	events   chan KeyEvent
	errors   chan error
	stopCh   chan struct{}
	mu       sync.Mutex
	stopped  bool
	root     string
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher.
func NewPollingWatcher(interval time.Duration) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		state:    make(map[string]fileSnapshot),
		events:   make(chan KeyEvent, 256),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start scans root once for a baseline, then reports differences on every
// tick until ctx is cancelled or Stop is called.
func (p *PollingWatcher) Start(ctx context.Context, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.root = abs
	p.state = p.snapshot()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.detectChanges()
		}
	}
}

// snapshot walks the tree. Must be called with the lock held.
func (p *PollingWatcher) snapshot() map[string]fileSnapshot {
	out := make(map[string]fileSnapshot)
	_ = filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(p.root, path)
		if err != nil || rel == "." {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out[filepath.ToSlash(rel)] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
			isDir:   d.IsDir(),
		}
		return nil
	})
	return out
}

func (p *PollingWatcher) detectChanges() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	now := time.Now()
	current := p.snapshot()
	for key, snap := range current {
		prev, ok := p.state[key]
		switch {
		case !ok:
			p.emit(KeyEvent{Key: key, Operation: OpCreate, IsDir: snap.isDir, Timestamp: now})
		case !snap.isDir && (prev.modTime != snap.modTime || prev.size != snap.size):
			p.emit(KeyEvent{Key: key, Operation: OpModify, Timestamp: now})
		}
	}
	for key, snap := range p.state {
		if _, ok := current[key]; !ok {
			p.emit(KeyEvent{Key: key, Operation: OpDelete, IsDir: snap.isDir, Timestamp: now})
		}
	}
	p.state = current
}

// emit must be called with the lock held.
func (p *PollingWatcher) emit(ev KeyEvent) {
	select {
	case p.events <- ev:
	default:
		slog.Warn("polling_buffer_full",
			slog.String("key", ev.Key),
			slog.String("op", ev.Operation.String()))
	}
}

// Stop stops polling and closes the channels. Safe to call more than once.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns raw, undebounced events.
func (p *PollingWatcher) Events() <-chan KeyEvent {
	return p.events
}

// Errors returns non-fatal errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
