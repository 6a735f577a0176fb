package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/postsearch/internal/output"
	"github.com/Aman-CERP/postsearch/internal/search"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the committed index",
		Long: `Search the committed index with the same query language the HTTP
endpoint accepts: bare terms, "quoted phrases", +required and -excluded
terms, and field scopes such as author:alice.

Arguments are joined with spaces into one query.`,
		Example: `  postsearch search rust
  postsearch search 'author:alice "error handling"' --format json
  postsearch search go concurrency --limit 10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.limit)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format %q: use text or json", opts.format)
	}
	if opts.limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}

	cfg, logger, cleanup, err := loadRuntime(cmd)
	defer cleanup()
	if err != nil {
		return err
	}

	limit := cfg.Search.Limit
	if opts.limit > 0 {
		limit = opts.limit
	}

	provider := search.PerQueryIndex{Path: cfg.IndexDir(), Options: storeOptions(cfg, logger, true)}
	engine, err := search.NewEngine(provider,
		search.WithLimit(limit),
		search.WithCacheSize(0),
		search.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	logger.Debug("search_started", slog.String("query", query), slog.Int("limit", limit))

	if opts.format == "json" {
		ids, err := engine.Search(ctx, query)
		if err != nil {
			return err
		}
		return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
	}

	hits, err := engine.SearchPosts(ctx, query, limit)
	if err != nil {
		return err
	}
	return renderHits(output.New(cmd.OutOrStdout()), query, hits)
}

func renderHits(out *output.Writer, query string, hits []search.Hit) error {
	if len(hits) == 0 {
		out.Statusf("", "No posts match %q", query)
		return nil
	}

	for i, h := range hits {
		out.Statusf("", "%d. %s", i+1, orDash(h.ID))
		out.Fields(
			[2]string{"author", orDash(h.Author)},
			[2]string{"points", countOrDash(h.NumPoints)},
			[2]string{"comments", countOrDash(h.NumComments)},
			[2]string{"score", strconv.FormatFloat(h.Score, 'f', 3, 64)},
		)
	}
	return nil
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func countOrDash(n *uint64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatUint(*n, 10)
}
