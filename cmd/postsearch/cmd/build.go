package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/postsearch/internal/config"
	"github.com/Aman-CERP/postsearch/internal/index"
	"github.com/Aman-CERP/postsearch/internal/objstore"
	"github.com/Aman-CERP/postsearch/internal/store"
	"github.com/Aman-CERP/postsearch/internal/ui"
)

type buildOptions struct {
	rebuild    bool
	noTUI      bool
	jsonOutput bool
	lenient    bool
}

func newBuildCmd() *cobra.Command {
	var opts buildOptions

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Index every post under the configured prefix",
		Long: `Run one build pass: list the configured bucket and prefix, fetch
every post document, parse it, stage it into the index and commit.

Nothing staged is visible to queries until the single commit at the end.
A failed pass leaves the previously committed index untouched and exits
with a non-zero status.

Use --rebuild to drop posts that no longer exist upstream.`,
		Example: `  # Build from the configured source
  POSTS_BUCKET_NAME=posts PATH_EFS=/mnt/efs postsearch build

  # Rebuild from scratch, plain output
  postsearch build --rebuild --no-tui`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runBuild(ctx, cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.rebuild, "rebuild", false, "Remove every indexed post before staging")
	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the build result as JSON")
	cmd.Flags().BoolVar(&opts.lenient, "skip-malformed", false, "Skip malformed posts instead of aborting")

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, opts buildOptions) error {
	cfg, logger, cleanup, err := loadRuntime(cmd)
	defer cleanup()
	if err != nil {
		return err
	}
	if err := cfg.RequireSource(); err != nil {
		return err
	}
	if opts.rebuild {
		cfg.Build.Rebuild = true
	}
	if opts.lenient {
		cfg.Build.StrictParse = false
	}

	src, err := objstore.Open(ctx, cfg.Source)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var renderer ui.Renderer = ui.NopRenderer{}
	if !opts.jsonOutput {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.noTUI),
			ui.WithNoColor(ui.DetectNoColor()),
			ui.WithSource(sourceLabel(cfg)),
		))
	}
	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}

	builder, err := index.NewBuilder(builderConfig(cfg, logger), index.Dependencies{
		Source:   src,
		Renderer: renderer,
		Logger:   logger,
	})
	if err != nil {
		_ = renderer.Stop()
		return err
	}

	res, err := builder.Run(ctx)
	if stopErr := renderer.Stop(); stopErr != nil {
		logger.Warn("renderer_stop_failed", slog.String("error", stopErr.Error()))
	}
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return nil
}

// builderConfig maps file configuration onto a build pass.
func builderConfig(cfg *config.Config, logger *slog.Logger) index.Config {
	return index.Config{
		Bucket:       cfg.Source.Bucket,
		Prefix:       cfg.Source.Prefix,
		Suffix:       cfg.Source.Suffix,
		Concurrency:  cfg.Source.Concurrency,
		IndexPath:    cfg.IndexDir(),
		StoreOptions: storeOptions(cfg, logger, false),
		StrictParse:  cfg.Build.StrictParse,
		Rebuild:      cfg.Build.Rebuild,
	}
}

func storeOptions(cfg *config.Config, logger *slog.Logger, readOnly bool) store.Options {
	return store.Options{
		MemoryBudget: cfg.MemoryBudgetBytes(),
		LockTimeout:  cfg.Index.LockTimeout,
		ReadOnly:     readOnly,
		Logger:       logger,
	}
}
