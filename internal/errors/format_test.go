package errors

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	// Given: an index-not-found error with a suggestion
	err := IndexNotFound("/data/posts.bleve")

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: no index at /data/posts.bleve")
	assert.Contains(t, out, "Hint: run 'postsearch build'")
	assert.Contains(t, out, "Code: ERR_203_INDEX_NOT_FOUND")
}

func TestFormatForCLI_PlainErrorBecomesInternal(t *testing.T) {
	out := FormatForCLI(stderrors.New("disk on fire"))

	assert.Contains(t, out, "disk on fire")
	assert.Contains(t, out, ErrCodeInternal)
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON(t *testing.T) {
	// Given: a store error with a cause and a detail
	err := StoreAccess("get failed", stderrors.New("timeout")).WithDetail("key", "posts/1.json")

	// When: formatting as JSON
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: the fields round out the error
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ErrCodeStoreAccess, got["code"])
	assert.Equal(t, "STORAGE", got["category"])
	assert.Equal(t, "timeout", got["cause"])
	assert.Equal(t, true, got["retryable"])
	assert.Equal(t, "posts/1.json", got["details"].(map[string]any)["key"])
}

func TestFormatForLog(t *testing.T) {
	err := MalformedDocument("posts/2.json", stderrors.New("bad json"))

	attrs := FormatForLog(err)

	keys := make([]string, 0, len(attrs))
	for _, a := range attrs {
		keys = append(keys, a.Key)
	}
	assert.Equal(t, []string{"error_code", "error", "category", "retryable", "cause", "detail_key"}, keys)
	assert.Nil(t, FormatForLog(nil))
}
