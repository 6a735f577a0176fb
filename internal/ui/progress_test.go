package ui

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Progress(t *testing.T) {
	tests := []struct {
		name    string
		current int
		total   int
		want    float64
	}{
		{"unknown total", 5, 0, 0},
		{"half", 5, 10, 0.5},
		{"capped", 12, 10, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProgressTracker()
			p.SetStage(StageFetching, tt.total)
			p.Update(tt.current, "")
			assert.InDelta(t, tt.want, p.Stats().Progress, 0.0001)
		})
	}
}

func TestProgressTracker_SetStageResets(t *testing.T) {
	// Given: progress in one stage
	p := NewProgressTracker()
	p.SetStage(StageFetching, 10)
	p.Update(4, "posts/4.json")

	// When: moving on
	p.SetStage(StageParsing, 3)

	// Then: counters restart
	stats := p.Stats()
	assert.Equal(t, StageParsing, stats.Stage)
	assert.Equal(t, 0, stats.Current)
	assert.Equal(t, 3, stats.Total)
	assert.Empty(t, stats.Key)
}

func TestProgressTracker_CountsErrorsAndWarnings(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{Err: errors.New("a"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("b"), IsWarn: true})
	p.AddError(ErrorEvent{Err: errors.New("c")})

	stats := p.Stats()
	assert.Equal(t, 2, stats.WarnCount)
	assert.Equal(t, 1, stats.ErrorCount)
}

func TestProgressTracker_ETA(t *testing.T) {
	// Given: a stage a quarter done
	p := NewProgressTracker()
	p.SetStage(StageFetching, 100)
	time.Sleep(20 * time.Millisecond)
	p.Update(25, "")

	// Then: an ETA is estimated, and none once done
	assert.Greater(t, p.Stats().ETA, time.Duration(0))
	p.Update(100, "")
	assert.Equal(t, time.Duration(0), p.Stats().ETA)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{250 * time.Millisecond, "250ms"},
		{42 * time.Second, "42s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
		{90 * time.Minute, "1h 30m"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDuration(tt.d))
		})
	}
}

func TestTruncateKey(t *testing.T) {
	assert.Equal(t, "posts/1.json", truncateKey("posts/1.json", 20))
	assert.Equal(t, "...1.json", truncateKey("posts/0000001.json", 9))
	assert.Equal(t, "...", truncateKey("posts/1.json", 2))
}
