package store

import (
	"encoding/json"
	"time"
)

// Internal keys stored alongside documents.
var (
	keySchema = []byte("_postsearch_schema")
	keyCommit = []byte("_postsearch_commit")
)

// CommitMeta describes the most recent commit of a write session.
type CommitMeta struct {
	Generation  uint64    `json:"generation"`
	CommittedAt time.Time `json:"committed_at"`
	RunID       string    `json:"run_id,omitempty"`
	Staged      int       `json:"staged"`
	Truncated   bool      `json:"truncated,omitempty"`
}

// decodeCommitMeta parses a stored commit record. A missing record is the
// zero value: an index that was created but never committed.
func decodeCommitMeta(data []byte) (CommitMeta, error) {
	var m CommitMeta
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}
