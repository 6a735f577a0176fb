package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv isolates a CLI run: an fs-backed source under dir/objects, the
// index under dir/data and no user or project config.
type testEnv struct {
	dir    string
	bucket string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	for _, k := range []string{
		"POSTSEARCH_BUCKET", "POSTSEARCH_PREFIX", "POSTSEARCH_INDEX_PATH", "POSTSEARCH_STRICT_PARSE",
		"POSTSEARCH_BUILD_SCHEDULE", "POSTSEARCH_BUILD_WATCH", "POSTSEARCH_MEMORY_BUDGET_MB",
		"POSTSEARCH_FETCH_CONCURRENCY", "POSTSEARCH_SERVER_ADDR",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("POSTSEARCH_SOURCE_BACKEND", "fs")
	t.Setenv("POSTSEARCH_FS_ROOT", filepath.Join(dir, "objects"))
	t.Setenv("POSTS_BUCKET_NAME", "posts-bucket")
	t.Setenv("PATH_EFS", filepath.Join(dir, "data"))
	t.Setenv("POSTSEARCH_LOG_LEVEL", "error")

	return &testEnv{dir: dir, bucket: "posts-bucket"}
}

func (e *testEnv) writeObject(t *testing.T, key, body string) {
	t.Helper()
	path := filepath.Join(e.dir, "objects", e.bucket, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
}

func (e *testEnv) writePost(t *testing.T, id, title, author string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":           id,
		"title":        title,
		"url":          "https://example.com/" + id,
		"num_points":   10,
		"num_comments": 2,
		"author":       author,
		"created_at":   "2024-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	e.writeObject(t, fmt.Sprintf("posts/%s.json", id), string(body))
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func (e *testEnv) removeObject(t *testing.T, key string) {
	t.Helper()
	require.NoError(t, os.Remove(filepath.Join(e.dir, "objects", e.bucket, filepath.FromSlash(key))))
}

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
