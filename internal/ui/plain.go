package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs plain text progress (for CI/pipes).
type PlainRenderer struct {
	mu     sync.Mutex
	out    io.Writer
	source string
	stage  Stage
	errors []ErrorEvent
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{
		out:    cfg.Output,
		source: cfg.Source,
		stage:  -1,
	}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	if r.source != "" {
		_, _ = fmt.Fprintf(r.out, "Building index from %s\n", r.source)
	}
	return nil
}

// UpdateProgress implements Renderer.
func (r *PlainRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stage = event.Stage

	msg := event.Message
	if msg == "" {
		msg = event.Key
	}

	// Format: [STAGE] current/total - message
	if event.Total > 0 {
		_, _ = fmt.Fprintf(r.out, "[%s] %d/%d - %s\n", event.Stage.Icon(), event.Current, event.Total, msg)
	} else if msg != "" {
		_, _ = fmt.Fprintf(r.out, "[%s] %s\n", event.Stage.Icon(), msg)
	}
}

// AddError implements Renderer.
func (r *PlainRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors = append(r.errors, event)

	prefix := "ERROR"
	if event.IsWarn {
		prefix = "WARN"
	}
	if event.Key != "" {
		_, _ = fmt.Fprintf(r.out, "%s: %s: %v\n", prefix, event.Key, event.Err)
	} else {
		_, _ = fmt.Fprintf(r.out, "%s: %v\n", prefix, event.Err)
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Complete: %d posts indexed from %d objects in %s (generation %d)",
		stats.Staged, stats.Fetched, stats.Duration.Round(100*time.Millisecond), stats.Generation)
	if stats.Skipped > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d skipped)", stats.Skipped)
	}
	_, _ = fmt.Fprintln(r.out)

	if stats.Stages.Fetch > 0 {
		round := func(d time.Duration) time.Duration { return d.Round(time.Millisecond) }
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, "Stage Breakdown:")
		_, _ = fmt.Fprintf(r.out, "  List:   %s (%d keys)\n", round(stats.Stages.List), stats.Listed)
		_, _ = fmt.Fprintf(r.out, "  Fetch:  %s (%d objects)\n", round(stats.Stages.Fetch), stats.Fetched)
		_, _ = fmt.Fprintf(r.out, "  Parse:  %s\n", round(stats.Stages.Parse))
		_, _ = fmt.Fprintf(r.out, "  Stage:  %s\n", round(stats.Stages.Stage))
		_, _ = fmt.Fprintf(r.out, "  Commit: %s\n", round(stats.Stages.Commit))
	}
}

// Stop implements Renderer.
func (r *PlainRenderer) Stop() error {
	return nil
}
