package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/postsearch/internal/config"
	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/index"
	"github.com/Aman-CERP/postsearch/internal/objstore"
	"github.com/Aman-CERP/postsearch/internal/scheduler"
	"github.com/Aman-CERP/postsearch/internal/search"
	"github.com/Aman-CERP/postsearch/internal/server"
	"github.com/Aman-CERP/postsearch/internal/store"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
	"github.com/Aman-CERP/postsearch/internal/watcher"
)

type serveOptions struct {
	addr     string
	schedule time.Duration
	noBuild  bool
	watch    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve search over HTTP",
		Long: `Start the HTTP search endpoint.

GET /search?q=<query> returns a JSON array of up to the configured
number of post ids, best match first.

By default serve owns the index: it opens it once, runs build passes on
start and on the configured schedule, and answers queries from the same
handle. With --no-build it only reads, and each query opens the
committed index so builds run elsewhere are picked up.`,
		Example: `  # Serve and rebuild every 15 minutes
  postsearch serve --schedule 15m

  # Read-only query node
  postsearch serve --no-build --addr :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().DurationVar(&opts.schedule, "schedule", 0, "Interval between builds (overrides build.schedule)")
	cmd.Flags().BoolVar(&opts.noBuild, "no-build", false, "Serve queries only, never build")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Rebuild when posts change (fs backend only)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, opts serveOptions) error {
	cfg, logger, cleanup, err := loadRuntime(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Build.Schedule = opts.schedule
	}
	if opts.watch {
		cfg.Build.Watch = true
	}
	if err := cfg.Validate(); err != nil {
		return perrors.ConfigError("invalid serve options", err)
	}

	stats := telemetry.NewQueryStats(telemetry.DefaultQueryStatsConfig())
	g, gctx := errgroup.WithContext(ctx)

	var provider search.IndexProvider
	if opts.noBuild {
		provider = search.PerQueryIndex{Path: cfg.IndexDir(), Options: storeOptions(cfg, logger, true)}
	} else {
		if err := cfg.RequireSource(); err != nil {
			return err
		}
		ix, err := store.OpenOrCreate(cfg.IndexDir(), storeOptions(cfg, logger, false))
		if err != nil {
			return err
		}
		defer func() {
			if err := ix.Close(); err != nil {
				logger.Warn("index_close_failed", slog.String("error", err.Error()))
			}
		}()
		provider = search.SharedIndex{Index: ix}

		src, err := objstore.Open(ctx, cfg.Source)
		if err != nil {
			return err
		}
		defer func() { _ = src.Close() }()

		sched, err := newBuildScheduler(cfg, src, ix, logger)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })

		if cfg.Build.Watch {
			w, err := newSourceWatcher(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()
			g.Go(func() error {
				if err := w.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				watcher.TriggerOnChange(gctx, w, sched, logger)
				return nil
			})
		}
	}

	engine, err := search.NewEngine(provider,
		search.WithLimit(cfg.Search.Limit),
		search.WithCacheSize(cfg.Search.CacheSize),
		search.WithStats(stats),
		search.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	srv := server.New(engine, provider,
		server.WithConfig(server.Config{
			Addr:            cfg.Server.Addr,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
		}),
		server.WithQueryStats(stats),
		server.WithLogger(logger),
	)
	g.Go(func() error { return srv.Run(gctx) })

	logger.Info("serve_started",
		slog.String("addr", cfg.Server.Addr),
		slog.String("index_dir", cfg.IndexDir()),
		slog.Bool("builds", !opts.noBuild),
		slog.Duration("schedule", cfg.Build.Schedule),
		slog.Bool("watch", cfg.Build.Watch && !opts.noBuild))

	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve stopped: %w", err)
	}
	return nil
}

// newBuildScheduler runs build passes against the shared index.
func newBuildScheduler(cfg *config.Config, src objstore.Store, ix *store.Index, logger *slog.Logger) (*scheduler.Scheduler, error) {
	builder, err := index.NewBuilder(builderConfig(cfg, logger), index.Dependencies{
		Source: src,
		Index:  ix,
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}

	job := func(ctx context.Context) error {
		_, err := builder.Run(ctx)
		return err
	}
	return scheduler.New(job, scheduler.Config{
		Interval:        cfg.Build.Schedule,
		RunOnStart:      cfg.Build.RunOnStart,
		RetryMaxElapsed: cfg.Build.RetryMaxElapsed,
	}, logger)
}

// newSourceWatcher watches the bucket directory of the fs backend.
func newSourceWatcher(cfg *config.Config) (*watcher.Watcher, error) {
	opts := watcher.DefaultOptions()
	opts.Root = objstore.NewFSStore(cfg.Source.FSRoot, cfg.Source.PageSize).BucketDir(cfg.Source.Bucket)
	opts.Prefix = cfg.Source.Prefix
	opts.Suffix = cfg.Source.Suffix
	if cfg.Build.WatchDebounce > 0 {
		opts.DebounceWindow = cfg.Build.WatchDebounce
	}
	return watcher.New(opts)
}
