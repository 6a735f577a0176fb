//go:build ignore

// Package main generates synthetic posts for the fs backend.
// Usage: go run scripts/generate-posts.go -posts 10000 -root ./objects -bucket posts
//
// Posts are written to <root>/<bucket>/<prefix><id>.json, ready for
// POSTSEARCH_SOURCE_BACKEND=fs postsearch build.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numPosts  = flag.Int("posts", 1000, "Number of posts to generate")
	root      = flag.String("root", "objects", "fs backend root directory")
	bucket    = flag.String("bucket", "posts", "Bucket name")
	prefix    = flag.String("prefix", "posts/", "Key prefix")
	malformed = flag.Int("malformed", 0, "Number of additional malformed posts")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
)

var (
	subjects = []string{"Rust", "Go", "Postgres", "Kubernetes", "SQLite", "WebAssembly", "Linux", "Redis", "Zig", "Haskell"}
	verbs    = []string{"Show HN:", "Ask HN:", "Why", "How", "Understanding", "Building", "Scaling", "Debugging", "Rewriting", "Benchmarking"}
	objects  = []string{"in production", "from scratch", "at scale", "the hard way", "for fun", "in 100 lines", "with no dependencies", "on a budget"}
	authors  = []string{"alice", "bob", "carol", "dave", "erin", "frank", "grace", "heidi", "ivan", "judy"}
)

type post struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	NumPoints   uint64 `json:"num_points"`
	NumComments uint64 `json:"num_comments"`
	Author      string `json:"author"`
	CreatedAt   string `json:"created_at"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	dir := filepath.Join(*root, *bucket, filepath.FromSlash(*prefix))
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < *numPosts; i++ {
		id := fmt.Sprintf("%d", 10000000+i)
		p := post{
			ID:          id,
			Title:       title(rng),
			URL:         "https://example.com/item/" + id,
			NumPoints:   uint64(rng.Intn(2000)),
			NumComments: uint64(rng.Intn(500)),
			Author:      pick(rng, authors),
			CreatedAt:   start.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
		data, err := json.Marshal(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode post %s: %v\n", id, err)
			os.Exit(1)
		}
		if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write post %s: %v\n", id, err)
			os.Exit(1)
		}
	}

	for i := 0; i < *malformed; i++ {
		name := filepath.Join(dir, fmt.Sprintf("malformed-%d.json", i))
		if err := os.WriteFile(name, []byte(`{"id": "broken", "title": `), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write malformed post: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Generated %d posts (%d malformed) in %s\n", *numPosts, *malformed, dir)
}

func title(rng *rand.Rand) string {
	return strings.Join([]string{pick(rng, verbs), pick(rng, subjects), pick(rng, objects)}, " ")
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}
