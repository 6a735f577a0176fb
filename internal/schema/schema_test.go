package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/postsearch/internal/post"
)

func TestNew_FieldCapabilities(t *testing.T) {
	// Given
	m, err := New()
	require.NoError(t, err)
	require.NoError(t, m.Validate())

	// Then: each field carries the capabilities from the table
	doc := m.DefaultMapping
	tests := []struct {
		field   string
		typ     string
		indexed bool
		stored  bool
	}{
		{FieldID, "text", true, true},
		{FieldAuthor, "text", true, true},
		{FieldTitle, "text", true, false},
		{FieldNumPoints, "number", true, true},
		{FieldNumComments, "number", true, true},
		{FieldCreatedAt, "text", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			prop, ok := doc.Properties[tt.field]
			require.True(t, ok)
			require.Len(t, prop.Fields, 1)
			fm := prop.Fields[0]
			assert.Equal(t, tt.typ, fm.Type)
			assert.Equal(t, tt.indexed, fm.Index)
			assert.Equal(t, tt.stored, fm.Store)
		})
	}

	url, ok := doc.Properties[FieldURL]
	require.True(t, ok)
	assert.False(t, url.Enabled, "url is never indexed")
	assert.Equal(t, FieldTitle, m.DefaultSearchField())
	assert.False(t, m.IndexDynamic)
}

func TestStoredFields(t *testing.T) {
	assert.Equal(t, []string{FieldID, FieldAuthor, FieldNumPoints, FieldNumComments}, StoredFields())
}

func TestFingerprint_StableAndSensitive(t *testing.T) {
	// Given: the current fingerprint
	fp := Fingerprint()
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint())

	// When: a capability flag flips
	saved := fields[2]
	fields[2].Stored = !fields[2].Stored
	defer func() { fields[2] = saved }()

	// Then: the fingerprint changes
	assert.NotEqual(t, fp, Fingerprint())
}

func TestFields_ReturnsCopy(t *testing.T) {
	f := Fields()
	f[0].Name = "changed"

	assert.Equal(t, FieldID, Fields()[0].Name)
}

func TestDocument(t *testing.T) {
	p := &post.Post{
		ID: "123", Title: "Rust is great", URL: "https://x", NumPoints: 42,
		NumComments: 7, Author: "alice", CreatedAt: "2024-01-01T00:00:00Z",
	}

	doc := Document(p)

	assert.Equal(t, "123", doc[FieldID])
	assert.Equal(t, float64(42), doc[FieldNumPoints])
	assert.Equal(t, float64(7), doc[FieldNumComments])
	assert.Equal(t, "https://x", doc[FieldURL])
	assert.Len(t, doc, len(fields))
}
