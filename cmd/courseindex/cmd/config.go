package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/courseindex/internal/config"
	"github.com/Aman-CERP/courseindex/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Inspect and create configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config ($XDG_CONFIG_HOME/courseindex/config.yaml)
  3. Project config (.courseindex.yaml in --config-dir)
  4. Environment variables (COURSEINDEX_*)`,
		Example: `  # Write a user config with every default spelled out
  courseindex config init

  # Show the effective configuration
  courseindex config show --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the user configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration")
	return cmd
}

func runConfigInit(cmd *cobra.Command, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := config.GetUserConfigPath()

	if _, err := os.Stat(path); err == nil && !force {
		out.Warning("User configuration already exists")
		out.Field("Location", path)
		out.Status("", "Use --force to overwrite it with defaults")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := config.NewConfig().WriteYAML(path); err != nil {
		return err
	}

	out.Successf("Created %s", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var cfg *config.Config
			switch source {
			case "merged":
				loaded, err := loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
			case "defaults":
				cfg = config.NewConfig()
			default:
				return fmt.Errorf("unknown --source %q (valid: merged, defaults)", source)
			}
			return writeConfig(cmd, cfg, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged or defaults")
	return cmd
}

func writeConfig(cmd *cobra.Command, cfg *config.Config, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
