// Package cmd provides the CLI commands for postsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/postsearch/internal/config"
	perrors "github.com/Aman-CERP/postsearch/internal/errors"
	"github.com/Aman-CERP/postsearch/internal/logging"
	"github.com/Aman-CERP/postsearch/internal/profiling"
	"github.com/Aman-CERP/postsearch/pkg/version"
)

// stdioAnnotation marks commands that own stdout for a protocol stream.
const stdioAnnotation = "postsearch/stdio"

// Global flags
var (
	cfgFile   string
	debugMode bool
	profOpts  profiling.Options
	profile   *profiling.Session
)

// NewRootCmd creates the root command for the postsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postsearch",
		Short: "Full-text search over posts kept in an object store",
		Long: `postsearch builds a full-text index from JSON posts stored in an
object store (S3, Redis or a local directory) and answers queries
against it over HTTP, MCP or the command line.

Typical flow:
  postsearch build             # index everything under the configured prefix
  postsearch search "rust"     # query the committed index
  postsearch serve             # HTTP endpoint with scheduled rebuilds`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("postsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./postsearch.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&profOpts.CPUProfile, "cpuprofile", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profOpts.MemProfile, "memprofile", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profOpts.Trace, "trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfiling
	cmd.PersistentPostRunE = stopProfiling

	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command and prints any error in CLI form.
func Execute() error {
	root := NewRootCmd()
	err := root.Execute()
	if profile != nil {
		_ = profile.Stop()
	}
	if err != nil {
		fmt.Fprint(os.Stderr, perrors.FormatForCLI(err))
	}
	return err
}

func startProfiling(_ *cobra.Command, _ []string) error {
	if !profOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profOpts)
	if err != nil {
		return fmt.Errorf("failed to start profiling: %w", err)
	}
	profile = s
	return nil
}

func stopProfiling(_ *cobra.Command, _ []string) error {
	if profile == nil {
		return nil
	}
	err := profile.Stop()
	profile = nil
	if err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// loadRuntime loads configuration and installs the process logger.
// Commands annotated as stdio log to a file only. The returned cleanup
// flushes the log file and must always be called.
func loadRuntime(cmd *cobra.Command) (*config.Config, *slog.Logger, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, func() {}, perrors.ConfigError("failed to load configuration", err)
	}

	logCfg := logging.Config{
		Level:         cfg.Logging.Level,
		FilePath:      cfg.Logging.File,
		MaxSizeMB:     cfg.Logging.MaxSizeMB,
		MaxFiles:      cfg.Logging.MaxFiles,
		WriteToStderr: true,
	}
	if debugMode {
		logCfg.Level = "debug"
	}

	if _, ok := cmd.Annotations[stdioAnnotation]; ok {
		cleanup, err := logging.SetupStdioMode(logCfg)
		if err != nil {
			return nil, nil, func() {}, fmt.Errorf("failed to setup logging: %w", err)
		}
		return cfg, slog.Default(), cleanup, nil
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, nil, func() {}, fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)
	logger.Debug("config_loaded",
		slog.String("backend", cfg.Source.Backend),
		slog.String("bucket", cfg.Source.Bucket),
		slog.String("index_dir", cfg.IndexDir()))
	return cfg, logger, cleanup, nil
}

// sourceLabel renders bucket/prefix for headers and status output.
func sourceLabel(cfg *config.Config) string {
	if cfg.Source.Bucket == "" {
		return "(bucket not set)"
	}
	return cfg.Source.Bucket + "/" + strings.TrimPrefix(cfg.Source.Prefix, "/")
}
