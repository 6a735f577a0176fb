package watcher

import (
	"path"
	"strings"
	"time"
)

// Operation is the kind of change observed for a key.
type Operation int

const (
	OpCreate Operation = iota
	OpModify
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// KeyEvent is a change to one object under the watched bucket. Key is the
// slash-separated object key, as the fs store lists it.
type KeyEvent struct {
	Key       string
	Operation Operation
	IsDir     bool
	Timestamp time.Time
}

// Options configures a Watcher.
type Options struct {
	// Root is the bucket directory of the fs store.
	Root string
	// Prefix and Suffix select the keys that can affect a build.
	Prefix string
	Suffix string

	// DebounceWindow coalesces bursts of writes into one batch.
	// Default: 2s
	DebounceWindow time.Duration
	// PollInterval is used when fsnotify is unavailable.
	// Default: 5s
	PollInterval time.Duration
	// EventBufferSize bounds queued batches.
	// Default: 16
	EventBufferSize int
	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Suffix:          ".json",
		DebounceWindow:  2 * time.Second,
		PollInterval:    5 * time.Second,
		EventBufferSize: 16,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = d.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.EventBufferSize <= 0 {
		o.EventBufferSize = d.EventBufferSize
	}
	return o
}

// relevant reports whether a change to key can alter a build's input.
// Directories always count since whole subtrees can be moved in or out.
func (o Options) relevant(key string, isDir bool) bool {
	if key == "" || key == "." {
		return false
	}
	if hidden(key) {
		return false
	}
	if isDir {
		return strings.HasPrefix(key, o.Prefix) || strings.HasPrefix(o.Prefix, key+"/")
	}
	return strings.HasPrefix(key, o.Prefix) && strings.HasSuffix(key, o.Suffix)
}

// hidden matches dotfiles and editor temp files anywhere in the key.
func hidden(key string) bool {
	for _, part := range strings.Split(key, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	base := path.Base(key)
	return strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp")
}
