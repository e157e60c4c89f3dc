package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/engine/batch"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the effective configuration (global file, project overlay,
environment and flags) for semantic correctness.

This includes:
- API base URL and timeout
- Output format and precision
- Logging level and format
- Cache TTL and size limits
- Policy overrides (known operations, limits within range, no concurrency
  for ordered operations)`,
		Example: `  # Validate current configuration
  openly config validate

  # Validate and show the effective batch policies
  openly config validate --verbose`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	cfg := config.GetGlobalConfig()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	cmd.Printf("Configuration is valid\n")

	if verbose {
		return printVerboseDetails(cmd, cfg)
	}
	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) error {
	cmd.Println()
	cmd.Println("Configuration details:")
	if path := cfg.Path(); path != "" {
		cmd.Printf("  Loaded from: %s\n", path)
	}
	cmd.Printf("  API base URL: %s\n", cfg.API.BaseURL)
	cmd.Printf("  API token: %s\n", cfg.RedactedToken())
	cmd.Printf("  Output format: %s\n", cfg.Output.DefaultFormat)
	cmd.Printf("  Output precision: %d\n", cfg.Output.Precision)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Cache enabled: %t\n", cfg.Cache.Enabled)

	return printPolicyDetails(cmd, cfg)
}

// printPolicyDetails prints the effective policy of every operation.
func printPolicyDetails(cmd *cobra.Command, cfg *config.Config) error {
	cmd.Println()
	cmd.Println("Batch policies:")

	const padding = 2
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, padding, ' ', 0)
	fmt.Fprintln(tw, "  OPERATION\tMAX\tSTRATEGY\tWINDOW\tSOURCE")
	for _, def := range batch.DefaultPolicies() {
		p, err := cfg.PolicyFor(def.Operation)
		if err != nil {
			return err
		}
		source := "default"
		if _, ok := cfg.Policies[string(def.Operation)]; ok {
			source = "override"
		}
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%d\t%s\n", p.Operation, p.MaxItems, p.Strategy, p.WindowSize(), source)
	}
	return tw.Flush()
}
