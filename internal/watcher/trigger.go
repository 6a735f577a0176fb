package watcher

import (
	"context"
	"log/slog"
)

// BuildTrigger requests a build. *scheduler.Scheduler satisfies it.
type BuildTrigger interface {
	Trigger()
}

// TriggerOnChange requests one build per debounced batch until ctx is
// cancelled or the watcher stops.
func TriggerOnChange(ctx context.Context, w *Watcher, t BuildTrigger, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "watcher"), slog.String("mode", w.Mode()))

	events, errs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return
		case batch, ok := <-events:
			if !ok {
				return
			}
			logger.Info("source_changed",
				slog.Int("keys", len(batch)),
				slog.String("first_key", batch[0].Key),
				slog.String("first_op", batch[0].Operation.String()))
			t.Trigger()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}
