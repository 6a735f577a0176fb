package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo describes the index for `postsearch status`.
type StatusInfo struct {
	IndexPath   string    `json:"index_path"`
	Exists      bool      `json:"exists"`
	Documents   uint64    `json:"documents"`
	SizeBytes   int64     `json:"size_bytes"`
	Generation  uint64    `json:"generation"`
	LastCommit  time.Time `json:"last_commit,omitempty"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	Source      string    `json:"source"`
	Backend     string    `json:"backend"`
	IndexStatus string    `json:"index_status"` // "ready", "empty", "missing", "locked", "error"
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status"))

	_, _ = fmt.Fprintf(r.out, "  Path:        %s\n", info.IndexPath)
	_, _ = fmt.Fprintf(r.out, "  Status:      %s\n", r.renderStatus(info.IndexStatus))
	if info.Exists {
		_, _ = fmt.Fprintf(r.out, "  Posts:       %d\n", info.Documents)
		_, _ = fmt.Fprintf(r.out, "  Size:        %s\n", FormatBytes(info.SizeBytes))
		_, _ = fmt.Fprintf(r.out, "  Generation:  %d\n", info.Generation)
		if !info.LastCommit.IsZero() {
			_, _ = fmt.Fprintf(r.out, "  Last build:  %s\n", formatTime(info.LastCommit))
		}
		if info.LastRunID != "" {
			_, _ = fmt.Fprintf(r.out, "  Run ID:      %s\n", info.LastRunID)
		}
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "  Source:      %s (%s)\n", info.Source, info.Backend)
	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderStatus(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "empty", "missing", "locked":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	plural := func(n int, unit string) string {
		if n == 1 {
			return "1 " + unit + " ago"
		}
		return fmt.Sprintf("%d %ss ago", n, unit)
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
