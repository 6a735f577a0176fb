package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/postsearch/configs"
	"github.com/Aman-CERP/postsearch/internal/config"
	"github.com/Aman-CERP/postsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect and create postsearch configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/postsearch/config.yaml)
  3. Project config (./postsearch.yaml or --config)
  4. Environment variables (POSTS_BUCKET_NAME, PATH_EFS, POSTSEARCH_*)`,
		Example: `  # Create user config from template
  postsearch config init

  # Show effective configuration
  postsearch config show --json

  # Print user config file path
  postsearch config path`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		force  bool
		target string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the example configuration",
		Long: `Write the commented example configuration to the user config path
(or $XDG_CONFIG_HOME/postsearch/config.yaml), or to --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, target, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().StringVarP(&target, "output", "o", "", "Write to this path instead of the user config path")

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		defaults   bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Long: `Show the configuration after merging defaults, the user and project
files and the environment. Secrets are omitted from JSON output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigShow(cmd, jsonOutput, defaults)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show built-in defaults only")

	return cmd
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}

func runConfigInit(cmd *cobra.Command, target string, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if target == "" {
		target = config.GetUserConfigPath()
	}

	if _, err := os.Stat(target); err == nil && !force {
		out.Warning("Configuration already exists")
		out.Statusf("📁", "Location: %s", target)
		out.Status("💡", "Use --force to overwrite it")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(configs.ConfigTemplate), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Success("Created configuration")
	out.Statusf("📁", "Location: %s", target)
	out.Newline()
	out.Status("📋", "Next steps:")
	out.Status("", "  1. Set source.bucket (or POSTS_BUCKET_NAME)")
	out.Status("", "  2. Set index.path (or PATH_EFS)")
	out.Status("", "  3. Run 'postsearch config show' to verify")
	return nil
}

func runConfigShow(cmd *cobra.Command, jsonOutput, defaults bool) error {
	var (
		cfg *config.Config
		err error
	)
	if defaults {
		cfg = config.NewConfig()
	} else {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return err
	}

	redacted := *cfg
	if redacted.Source.RedisPassword != "" {
		redacted.Source.RedisPassword = "********"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), string(data))
	return err
}
