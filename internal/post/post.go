// Package post defines the source document ingested by a build pass.
package post

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// Post is one item from the upstream content source, stored as a single
// JSON object in the object store.
//
// The index keeps NumPoints and NumComments as float64, so values read back
// from it are exact only up to 2^53.
type Post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	NumPoints   uint64 `json:"num_points"`
	NumComments uint64 `json:"num_comments"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
}

// wire mirrors Post with pointers so absent fields can be told apart from
// zero values.
type wire struct {
	ID          *string `json:"id"`
	Title       *string `json:"title"`
	URL         *string `json:"url"`
	NumPoints   *uint64 `json:"num_points"`
	NumComments *uint64 `json:"num_comments"`
	Author      *string `json:"author"`
	CreatedAt   *string `json:"created_at"`
}

// Decode parses one object body into a Post. Every field is required;
// unknown fields are ignored. Failures are MalformedDocument errors naming key.
func Decode(key string, data []byte) (*Post, error) {
	var w wire
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&w); err != nil {
		return nil, perrors.MalformedDocument(key, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, perrors.MalformedDocument(key, fmt.Errorf("trailing data after post object"))
	}

	missing := w.missing()
	if missing != "" {
		return nil, perrors.MalformedDocument(key, fmt.Errorf("missing field %q", missing))
	}
	if *w.ID == "" {
		return nil, perrors.MalformedDocument(key, fmt.Errorf("empty id"))
	}

	return &Post{
		ID:          *w.ID,
		Title:       *w.Title,
		URL:         *w.URL,
		NumPoints:   *w.NumPoints,
		NumComments: *w.NumComments,
		Author:      *w.Author,
		CreatedAt:   *w.CreatedAt,
	}, nil
}

func (w *wire) missing() string {
	switch {
	case w.ID == nil:
		return "id"
	case w.Title == nil:
		return "title"
	case w.URL == nil:
		return "url"
	case w.NumPoints == nil:
		return "num_points"
	case w.NumComments == nil:
		return "num_comments"
	case w.Author == nil:
		return "author"
	case w.CreatedAt == nil:
		return "created_at"
	}
	return ""
}
