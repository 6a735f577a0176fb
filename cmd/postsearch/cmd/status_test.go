package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/postsearch/internal/ui"
)

func TestStatusCmd_MissingIndex(t *testing.T) {
	// Given: no index has been built
	newTestEnv(t)

	// When: asking for status
	out, err := execute(t, "status", "--json")

	// Then: the index is reported missing without failing
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, jsonUnmarshal(out, &info))
	assert.Equal(t, "missing", info.IndexStatus)
	assert.False(t, info.Exists)
	assert.Equal(t, "fs", info.Backend)
	assert.Equal(t, "posts-bucket/posts/", info.Source)
}

func TestStatusCmd_AfterBuild(t *testing.T) {
	// Given: a built index
	env := newTestEnv(t)
	env.writePost(t, "1", "hello", "alice")
	env.writePost(t, "2", "world", "bob")
	_, err := execute(t, "build", "--json")
	require.NoError(t, err)

	// When: asking for status
	out, err := execute(t, "status", "--json")

	// Then: the commit is described
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, jsonUnmarshal(out, &info))
	assert.Equal(t, "ready", info.IndexStatus)
	assert.True(t, info.Exists)
	assert.Equal(t, uint64(2), info.Documents)
	assert.Equal(t, uint64(1), info.Generation)
	assert.NotEmpty(t, info.LastRunID)
	assert.False(t, info.LastCommit.IsZero())
	assert.Positive(t, info.SizeBytes)
}

func TestStatusCmd_TextOutput(t *testing.T) {
	newTestEnv(t)
	t.Setenv("NO_COLOR", "1")

	out, err := execute(t, "status")

	require.NoError(t, err)
	assert.Contains(t, out, "Index Status")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "posts-bucket/posts/ (fs)")
}
