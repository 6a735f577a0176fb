package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/postsearch/internal/config"
	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/store"
	"github.com/Aman-CERP/postsearch/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display information about the committed index:
  - Number of indexed posts and on-disk size
  - Generation, time and run id of the last commit
  - Configured source and backend

A missing or locked index is reported, not treated as a failure.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOutput bool) error {
	cfg, logger, cleanup, err := loadRuntime(cmd)
	defer cleanup()
	if err != nil {
		return err
	}

	info, err := collectStatus(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(cfg *config.Config, logger *slog.Logger) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		IndexPath: cfg.IndexDir(),
		Source:    sourceLabel(cfg),
		Backend:   cfg.Source.Backend,
	}

	opts := storeOptions(cfg, logger, true)
	opts.LockTimeout = 0
	ix, err := store.OpenExisting(cfg.IndexDir(), opts)
	switch {
	case errors.Is(err, perrors.ErrIndexNotFound):
		info.IndexStatus = "missing"
		return info, nil
	case errors.Is(err, perrors.ErrIndexLocked):
		info.IndexStatus = "locked"
		return info, nil
	case err != nil:
		info.IndexStatus = "error"
		return info, err
	}
	defer func() { _ = ix.Close() }()

	stats, err := ix.Stats()
	if err != nil {
		info.IndexStatus = "error"
		return info, err
	}

	info.Exists = true
	info.Documents = stats.Documents
	info.SizeBytes = stats.SizeBytes
	info.Generation = stats.LastCommit.Generation
	info.LastCommit = stats.LastCommit.CommittedAt
	info.LastRunID = stats.LastCommit.RunID
	if stats.LastCommit.Generation == 0 {
		info.IndexStatus = "empty"
	} else {
		info.IndexStatus = "ready"
	}
	return info, nil
}
