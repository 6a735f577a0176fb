package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/postsearch/internal/mcp"
	"github.com/Aman-CERP/postsearch/internal/search"
	"github.com/Aman-CERP/postsearch/internal/telemetry"
)

func newMCPCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve search to AI assistants over MCP",
		Long: `Start a Model Context Protocol server on stdio exposing the
search_posts and index_status tools.

stdout carries the JSON-RPC stream, so logs go to the log file only.
The server never builds; each call reads the latest committed index.`,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{stdioAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, cleanup, err := loadRuntime(cmd)
			defer cleanup()
			if err != nil {
				return err
			}

			stats := telemetry.NewQueryStats(telemetry.DefaultQueryStatsConfig())
			provider := search.PerQueryIndex{Path: cfg.IndexDir(), Options: storeOptions(cfg, logger, true)}
			engine, err := search.NewEngine(provider,
				search.WithLimit(cfg.Search.Limit),
				search.WithCacheSize(cfg.Search.CacheSize),
				search.WithStats(stats),
				search.WithLogger(logger),
			)
			if err != nil {
				return err
			}

			srv, err := mcp.NewServer(engine, provider, mcp.WithQueryStats(stats), mcp.WithLogger(logger))
			if err != nil {
				return err
			}
			return srv.Serve(ctx, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport: stdio")

	return cmd
}
