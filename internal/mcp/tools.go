package mcp

import "time"

// SearchPostsInput is the search_posts argument schema.
type SearchPostsInput struct {
	Query string `json:"query" jsonschema:"query string; bare terms match titles, field:term matches id, author or created_at"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, at most 3"`
}

// SearchPostsOutput is the search_posts result schema.
type SearchPostsOutput struct {
	Query   string       `json:"query"`
	Results []PostResult `json:"results"`
}

// PostResult is one ranked post with its stored fields.
type PostResult struct {
	ID          string  `json:"id"`
	Author      string  `json:"author,omitempty"`
	NumPoints   uint64  `json:"num_points"`
	NumComments uint64  `json:"num_comments"`
	Score       float64 `json:"score"`
}

// IndexStatusInput takes no arguments.
type IndexStatusInput struct{}

// IndexStatusOutput describes the served index.
type IndexStatusOutput struct {
	Status      string    `json:"status"` // "ready", "empty" or "missing"
	Path        string    `json:"path,omitempty"`
	Documents   uint64    `json:"documents"`
	SizeBytes   int64     `json:"size_bytes"`
	Generation  uint64    `json:"generation"`
	LastCommit  time.Time `json:"last_commit,omitempty"`
	LastRunID   string    `json:"last_run_id,omitempty"`
	SearchLimit int       `json:"search_limit"`
}
