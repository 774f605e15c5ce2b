package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/docsift/configs"
	"github.com/Aman-CERP/docsift/internal/config"
	"github.com/Aman-CERP/docsift/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration files",
		Long: `Manage docsift configuration.

Configuration precedence (lowest to highest):
  1. Built-in defaults
  2. User config (~/.config/docsift/config.yaml)
  3. Corpus config (<root>/.docsift.yaml)
  4. Environment variables (DOCSIFT_*)`,
		Example: `  # Create .docsift.yaml in a corpus
  docsift config init --root ./docs

  # Create the user config
  docsift config init --user

  # Show the effective configuration as JSON
  docsift config show --root ./docs --json`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var (
		root  string
		user  bool
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			if user {
				return writeTemplate(out, config.GetUserConfigPath(), configs.UserConfigTemplate, force)
			}
			abs, err := resolveRoot(root)
			if err != nil {
				return err
			}
			return writeTemplate(out, filepath.Join(abs, config.ProjectConfigName), configs.ProjectConfigTemplate, force)
		},
	}

	addRootFlag(cmd, &root)
	cmd.Flags().BoolVar(&user, "user", false, "Write the user config instead of the corpus config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

// writeTemplate writes content to path unless the file exists and force
// is unset.
func writeTemplate(out *output.Writer, path, content string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		out.Warningf("Existing %s preserved", path)
		out.Status("💡", "Use --force to overwrite")
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	out.Successf("Created %s", path)
	return nil
}

func newConfigShowCmd() *cobra.Command {
	var (
		root       string
		defaults   bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.NewConfig()
			if !defaults {
				abs, err := resolveRoot(root)
				if err != nil {
					return err
				}
				if cfg, err = config.Load(abs); err != nil {
					return fmt.Errorf("failed to load config: %w", err)
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	addRootFlag(cmd, &root)
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Show built-in defaults only")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
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
