package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/0x8000-0000/ftagsd/configs"
	"github.com/0x8000-0000/ftagsd/internal/config"
	"github.com/0x8000-0000/ftagsd/internal/output"
)

func newInitCmd() *cobra.Command {
	var (
		global bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .ftagsd.yaml (or user config) with commented defaults",
		Long: `Writes a template configuration file with every setting commented out,
so ftagsd runs on its built-in defaults until you opt into an override.

Without --global, the template is written as .ftagsd.yaml at the project
root (found by walking up for a .git directory). With --global, it is
written to the user config path instead, applying to every project on
this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, global, force)
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write the user-level config instead of a project config")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(cmd *cobra.Command, global, force bool) error {
	out := output.New(cmd.OutOrStdout())

	if global {
		return writeUserConfig(out, force)
	}
	return writeProjectConfig(out, force)
}

func writeProjectConfig(out *output.Writer, force bool) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}

	root, err := config.FindProjectRoot(cwd)
	if err != nil {
		root = cwd
	}

	yamlPath := filepath.Join(root, ".ftagsd.yaml")
	ymlPath := filepath.Join(root, ".ftagsd.yml")

	if !force {
		if _, statErr := os.Stat(yamlPath); statErr == nil {
			out.Status("ℹ️ ", "Existing .ftagsd.yaml preserved (use --force to overwrite)")
			return nil
		}
		if _, statErr := os.Stat(ymlPath); statErr == nil {
			out.Status("ℹ️ ", "Existing .ftagsd.yml preserved (use --force to overwrite)")
			return nil
		}
	}

	if err := os.WriteFile(yamlPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write .ftagsd.yaml: %w", err)
	}

	out.Successf("Created %s", yamlPath)
	return nil
}

func writeUserConfig(out *output.Writer, force bool) error {
	path := config.GetUserConfigPath()

	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			out.Status("ℹ️ ", "Existing user config preserved (use --force to overwrite)")
			return nil
		}
	}

	if err := os.MkdirAll(config.GetUserConfigDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
		return fmt.Errorf("failed to write user config: %w", err)
	}

	out.Successf("Created %s", path)
	return nil
}
