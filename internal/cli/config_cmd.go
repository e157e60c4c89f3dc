package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/config"
)

// NewConfigSetCmd creates the config set command.
func NewConfigSetCmd() *cobra.Command {
	var global bool

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long: `Sets one value in the configuration file and saves it. Inside a project the
project's .openly/config.yaml is written; use --global for ~/.openly/config.yaml.
The file is validated before it is saved.`,
		Example: `  openly config set api.token sk_live_123 --global
  openly config set output.default_format json`,
		Args: cobra.ExactArgs(2), //nolint:mnd // key and value
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := targetConfigPath(cmd, global)
			if err != nil {
				return err
			}
			cfg, err := loadOrDefault(path)
			if err != nil {
				return err
			}
			if err = cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err = cfg.Validate(); err != nil {
				return err
			}
			if err = cfg.Save(path); err != nil {
				return err
			}
			cmd.Printf("Set %s in %s\n", args[0], path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "write the global configuration even inside a project")
	return cmd
}

// NewConfigGetCmd creates the config get command.
func NewConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print an effective configuration value",
		Example: `  openly config get api.base_url
  openly config get cache.ttl_seconds`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.GetGlobalConfig()
			value, err := cfg.Get(args[0])
			if err != nil {
				return err
			}
			if args[0] == "api.token" {
				value = cfg.RedactedToken()
			}
			cmd.Println(value)
			return nil
		},
	}
}

// NewConfigListCmd creates the config list command.
func NewConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every effective configuration value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.GetGlobalConfig()

			const padding = 2
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
			for _, key := range config.Keys() {
				value, err := cfg.Get(key)
				if err != nil {
					return err
				}
				if key == "api.token" {
					value = cfg.RedactedToken()
				}
				fmt.Fprintf(tw, "%s\t%s\n", key, value)
			}
			return tw.Flush()
		},
	}
}

// targetConfigPath picks the file that config set writes to.
func targetConfigPath(cmd *cobra.Command, global bool) (string, error) {
	if dir := projectDir(cmd); dir != "" && !global {
		return filepath.Join(dir, "config.yaml"), nil
	}
	return config.GetConfigPath()
}

func loadOrDefault(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, err
}
