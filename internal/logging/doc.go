// Package logging configures structured slog output for postsearch.
//
// Logs are JSON lines written to a size-rotated file under ~/.postsearch/logs/
// and, unless the process speaks a protocol on stdio, mirrored to stderr.
package logging
