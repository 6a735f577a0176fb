package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainRenderer_UpdateProgress_OutputFormat(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: updating progress
	r.UpdateProgress(ProgressEvent{
		Stage:   StageFetching,
		Current: 50,
		Total:   100,
		Key:     "posts/123.json",
	})

	// Then: output is correctly formatted
	assert.Equal(t, "[FETCH] 50/100 - posts/123.json\n", buf.String())
}

func TestPlainRenderer_UpdateProgress_MessageOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.UpdateProgress(ProgressEvent{Stage: StageListing, Message: "250 keys"})
	r.UpdateProgress(ProgressEvent{Stage: StageCommitting})

	assert.Equal(t, "[LIST] 250 keys\n", buf.String())
}

func TestPlainRenderer_NoANSICodes(t *testing.T) {
	// Given: a plain renderer
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf, WithSource("posts-bucket/posts/")))
	require.NoError(t, r.Start(context.Background()))

	// When: rendering every stage and a summary
	for s := StageListing; s <= StageComplete; s++ {
		r.UpdateProgress(ProgressEvent{Stage: s, Current: 1, Total: 2, Message: "working"})
	}
	r.Complete(CompletionStats{Staged: 2, Fetched: 2, Duration: time.Second})

	// Then: output contains no escape codes
	out := buf.String()
	assert.Contains(t, out, "Building index from posts-bucket/posts/")
	assert.NotContains(t, out, "\x1b[")
}

func TestPlainRenderer_AddError(t *testing.T) {
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	r.AddError(ErrorEvent{Key: "posts/bad.json", Err: errors.New("unexpected EOF"), IsWarn: true})
	r.AddError(ErrorEvent{Err: errors.New("bucket gone")})

	assert.Equal(t, "WARN: posts/bad.json: unexpected EOF\nERROR: bucket gone\n", buf.String())
	assert.Len(t, r.errors, 2)
}

func TestPlainRenderer_Complete(t *testing.T) {
	// Given: a finished pass with a skipped object
	buf := &bytes.Buffer{}
	r := NewPlainRenderer(NewConfig(buf))

	// When: completing
	r.Complete(CompletionStats{
		Listed:     4,
		Fetched:    3,
		Staged:     2,
		Skipped:    1,
		Generation: 7,
		Duration:   1500 * time.Millisecond,
		Stages:     StageTimings{Fetch: 200 * time.Millisecond},
	})

	// Then: the summary and breakdown are printed
	out := buf.String()
	assert.Contains(t, out, "Complete: 2 posts indexed from 3 objects in 1.5s (generation 7) (1 skipped)")
	assert.Contains(t, out, "Stage Breakdown:")
	assert.Contains(t, out, "List:   0s (4 keys)")
}
