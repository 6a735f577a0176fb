package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_Icons(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{name: "success", write: func(w *Writer) { w.Success("Index built") }, want: "✅ Index built\n"},
		{name: "successf", write: func(w *Writer) { w.Successf("%d posts", 3) }, want: "✅ 3 posts\n"},
		{name: "warning", write: func(w *Writer) { w.Warning("stale") }, want: "⚠️  stale\n"},
		{name: "error", write: func(w *Writer) { w.Errorf("failed: %s", "x") }, want: "❌ failed: x\n"},
		{name: "status", write: func(w *Writer) { w.Statusf("🔍", "q=%s", "rust") }, want: "🔍 q=rust\n"},
		{name: "no icon", write: func(w *Writer) { w.Status("", "detail") }, want: "   detail\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}

			tt.write(New(buf))

			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_Fields_Aligned(t *testing.T) {
	// Given: labels of different lengths
	buf := &bytes.Buffer{}

	// When: printing them
	New(buf).Fields([2]string{"Path", "/data"}, [2]string{"Documents", "12"})

	// Then: values start in the same column
	assert.Equal(t, "  Path:       /data\n  Documents:  12\n", buf.String())
}

func TestWriter_Code(t *testing.T) {
	buf := &bytes.Buffer{}

	New(buf).Code("a\nb\n")

	assert.Equal(t, "\n  a\n  b\n\n", buf.String())
}

func TestWriter_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	id := "123"

	require.NoError(t, New(buf).JSON([]*string{&id, nil}))

	assert.Equal(t, "[\"123\",null]\n", buf.String())
}

func TestWriter_JSONIndent(t *testing.T) {
	buf := &bytes.Buffer{}

	require.NoError(t, New(buf).JSONIndent(map[string]int{"a": 1}))

	assert.Equal(t, "{\n  \"a\": 1\n}\n", buf.String())
}
