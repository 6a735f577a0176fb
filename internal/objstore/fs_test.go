package objstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeObject(t *testing.T, root, bucket, key, body string) {
	t.Helper()
	p := filepath.Join(root, bucket, filepath.FromSlash(key))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
}

func TestFSStore_ListAndGet(t *testing.T) {
	// Given: 12 posts in nested directories and an unrelated file
	root := t.TempDir()
	for i := 0; i < 12; i++ {
		writeObject(t, root, "hn", fmt.Sprintf("posts/%d/%02d.json", i%3, i), fmt.Sprintf(`{"i":%d}`, i))
	}
	writeObject(t, root, "hn", "drafts/x.json", "{}")
	store := NewFSStore(root, 5)

	// When
	keys, err := (&Enumerator{Store: store, Bucket: "hn", Prefix: "posts/"}).Enumerate(context.Background())

	// Then
	require.NoError(t, err)
	assert.Len(t, keys, 12)
	assert.Equal(t, "posts/0/00.json", keys[0])

	body, err := store.Get(context.Background(), "hn", "posts/1/04.json")
	require.NoError(t, err)
	assert.Equal(t, `{"i":4}`, string(body))
}

func TestFSStore_GetErrors(t *testing.T) {
	root := t.TempDir()
	writeObject(t, root, "hn", "posts/1.json", "{}")
	store := NewFSStore(root, 0)

	_, err := store.Get(context.Background(), "hn", "posts/2.json")
	assert.ErrorIs(t, err, ErrNotFound)

	for _, key := range []string{"../hn/posts/1.json", "posts/../../x", "/etc/passwd", ""} {
		_, err := store.Get(context.Background(), "hn", key)
		assert.Error(t, err, key)
	}
}

func TestFSStore_MissingBucket(t *testing.T) {
	_, err := NewFSStore(t.TempDir(), 0).ListPage(context.Background(), "nope", "posts/", "")

	assert.Error(t, err)
}
