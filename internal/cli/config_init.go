package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// When run inside a project (without --global), it creates a project-local
// .openly/ directory with config.yaml and .gitignore. Otherwise, it creates the
// global ~/.openly/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

When a project is selected (--project-dir, OPENLY_PROJECT_DIR, or an existing
.openly/config.yaml above the current directory), creates project-local
configuration at $PROJECT/.openly/config.yaml with a .gitignore that keeps API
tokens out of version control. Use --global to initialize ~/.openly/config.yaml
instead.`,
		Example: `  # Create global configuration
  openly config init --global

  # Create configuration for a project
  openly config init --project-dir ./shop

  # Create configuration, overwriting existing
  openly config init --force`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dir := projectDir(cmd); dir != "" && !global {
				return initProjectConfig(cmd, dir, force)
			}
			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "initialize the global configuration even inside a project")

	return cmd
}

// initProjectConfig creates project-local config at projectDir/config.yaml with .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")
	if err := checkNotExists(configPath, force); err != nil {
		return err
	}

	if err := config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	// Never overwrites an existing .gitignore.
	created, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if created {
		cmd.Printf("Created .gitignore to keep API tokens out of version control\n")
	}
	return nil
}

// initGlobalConfig creates global config at ~/.openly/config.yaml.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return err
	}
	if err = checkNotExists(configPath, force); err != nil {
		return err
	}

	if err = config.Default().Save(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", configPath)
	return nil
}

func checkNotExists(path string, force bool) error {
	if force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return errors.New("configuration file already exists, use --force to overwrite")
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("cannot access config path %s: %w", path, err)
	}
	return nil
}
