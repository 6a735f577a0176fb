// Package scheduler runs build passes on an interval with retry, never
// letting two passes overlap.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	perrors "github.com/Aman-CERP/postsearch/internal/errors"
)

// Job is one unit of scheduled work, typically a build pass.
type Job func(ctx context.Context) error

// Config controls timing and retry.
type Config struct {
	// Interval between scheduled runs. Zero disables ticking; runs then only
	// happen via RunOnStart or Trigger.
	Interval   time.Duration
	RunOnStart bool

	RetryInitial     time.Duration
	RetryMaxInterval time.Duration
	// RetryMaxElapsed bounds retries of a single run. Zero disables retry.
	RetryMaxElapsed time.Duration
}

// DefaultConfig returns retry settings suited to object store hiccups.
func DefaultConfig() Config {
	return Config{
		RetryInitial:     time.Second,
		RetryMaxInterval: 30 * time.Second,
		RetryMaxElapsed:  5 * time.Minute,
	}
}

// Stats counts scheduler activity.
type Stats struct {
	Runs     int64
	Failures int64
	Skipped  int64
	Attempts int64
}

// Scheduler triggers a Job on a fixed interval.
type Scheduler struct {
	job     Job
	cfg     Config
	logger  *slog.Logger
	trigger chan struct{}
	done    chan error

	running atomic.Bool
	// pending records a Trigger that arrived mid-run.
	pending bool

	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64
	attempts atomic.Int64
}

// New creates a scheduler for job.
func New(job Job, cfg Config, logger *slog.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, perrors.ConfigError("scheduler job is required", nil)
	}
	if cfg.Interval < 0 {
		return nil, perrors.ConfigError("schedule interval must not be negative", nil)
	}
	def := DefaultConfig()
	if cfg.RetryInitial <= 0 {
		cfg.RetryInitial = def.RetryInitial
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = def.RetryMaxInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		job:     job,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "scheduler")),
		trigger: make(chan struct{}, 1),
		done:    make(chan error, 1),
	}, nil
}

// Trigger requests a run as soon as possible. Requests made while a run is
// in progress coalesce into one follow-up run.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Running reports whether a run is in progress.
func (s *Scheduler) Running() bool {
	return s.running.Load()
}

// Stats returns activity counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Skipped:  s.skipped.Load(),
		Attempts: s.attempts.Load(),
	}
}

// Run blocks until ctx is cancelled, then waits for any in-flight run.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.cfg.Interval > 0 {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.logger.Info("scheduler_started",
		slog.Duration("interval", s.cfg.Interval),
		slog.Bool("run_on_start", s.cfg.RunOnStart))

	var wg sync.WaitGroup
	start := func(reason string) {
		s.running.Store(true)
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.done <- s.RunOnce(ctx, reason)
		}()
	}

	if s.cfg.RunOnStart {
		start("startup")
	}

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.logger.Info("scheduler_stopped")
			return nil

		case <-tick:
			if s.running.Load() {
				s.skipped.Add(1)
				s.logger.Warn("scheduled_run_skipped", slog.String("reason", "previous run still in progress"))
				continue
			}
			start("schedule")

		case <-s.trigger:
			if s.running.Load() {
				s.pending = true
				continue
			}
			start("trigger")

		case <-s.done:
			s.running.Store(false)
			if s.pending && ctx.Err() == nil {
				s.pending = false
				start("trigger")
			}
		}
	}
}

// RunOnce executes the job, retrying retryable failures with exponential
// backoff until RetryMaxElapsed.
func (s *Scheduler) RunOnce(ctx context.Context, reason string) error {
	started := time.Now()
	s.runs.Add(1)
	logger := s.logger.With(slog.String("reason", reason))
	logger.Info("run_started")

	op := func() error {
		s.attempts.Add(1)
		err := s.job(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !perrors.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	var err error
	if s.cfg.RetryMaxElapsed > 0 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = s.cfg.RetryInitial
		b.MaxInterval = s.cfg.RetryMaxInterval
		b.MaxElapsedTime = s.cfg.RetryMaxElapsed
		notify := func(err error, wait time.Duration) {
			logger.Warn("run_retry",
				slog.String("error", err.Error()),
				slog.Duration("wait", wait))
		}
		err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	} else {
		err = op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	}

	if err != nil {
		s.failures.Add(1)
		attrs := append([]any{slog.Duration("duration", time.Since(started))}, attrsOf(err)...)
		logger.Error("run_failed", attrs...)
		return err
	}
	logger.Info("run_complete", slog.Duration("duration", time.Since(started)))
	return nil
}

func attrsOf(err error) []any {
	attrs := perrors.FormatForLog(err)
	out := make([]any, len(attrs))
	for i, a := range attrs {
		out[i] = a
	}
	return out
}
