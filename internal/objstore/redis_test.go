package objstore

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live server: POSTSEARCH_TEST_REDIS_ADDR=localhost:6379
func TestRedisStore_Integration(t *testing.T) {
	addr := os.Getenv("POSTSEARCH_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("POSTSEARCH_TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	store, err := NewRedisStore(ctx, RedisOptions{Addr: addr, PageSize: 7})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	// Given: a fresh bucket with 30 posts
	bucket := "test-" + uuid.NewString()
	for i := 0; i < 30; i++ {
		require.NoError(t, store.Put(ctx, bucket, fmt.Sprintf("posts/%02d.json", i), []byte(`{}`)))
	}
	t.Cleanup(func() {
		for i := 0; i < 30; i++ {
			_ = store.rdb.Del(ctx, fmt.Sprintf("%s/posts/%02d.json", bucket, i)).Err()
		}
	})

	// When
	keys, err := (&Enumerator{Store: store, Bucket: bucket, Prefix: "posts/"}).Enumerate(ctx)

	// Then
	require.NoError(t, err)
	assert.Len(t, keys, 30)
	assert.Equal(t, "posts/00.json", keys[0])

	body, err := store.Get(ctx, bucket, keys[0])
	require.NoError(t, err)
	assert.Equal(t, "{}", string(body))

	_, err = store.Get(ctx, bucket, "posts/missing.json")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGlobEscape(t *testing.T) {
	assert.Equal(t, `b\[1\]/posts\*/`, globEscape("b[1]/posts*/"))
	assert.Equal(t, "plain/", globEscape("plain/"))
}
