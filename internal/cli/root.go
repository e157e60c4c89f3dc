package cli

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/logging"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
)

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the openly CLI.
// It resolves configuration (global file, project overlay, environment and
// flags), wires up logging, tracing and audit logging, and registers the
// payment, product, wallet, config, cache, setup and version subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:           "openly",
		Short:         "Bulk operations for Openly merchants",
		Long:          "openly: create payment intents, manage products and pay out stablecoin in bounded, concurrent batches",
		Version:       ver,
		Example:       rootCmdExample,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("project-dir", "", "project directory holding .openly/config.yaml")
	cmd.PersistentFlags().String("api-url", "", "Openly API base URL (overrides config and "+config.EnvAPIURL+")")
	cmd.PersistentFlags().String("token", "", "API token (overrides config and "+config.EnvAPIToken+")")
	cmd.PersistentFlags().Bool("no-cache", false, "bypass the response cache for read operations")
	cmd.PersistentFlags().StringP("output", "o", "", "output format: table or json (default from config)")

	cmd.AddCommand(
		newPaymentCmd(), newProductCmd(), newWalletCmd(),
		newConfigCmd(), newCacheCmd(), NewSetupCmd(), NewVersionCmd(ver),
	)

	return cmd
}

// loadConfig resolves the effective configuration for this invocation and
// installs it as the global config. Flags win over everything else.
func loadConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg := config.NewWithProjectDir(ctx, projectDir(cmd))
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		cfg.API.BaseURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.API.Token = v
	}
	if v, _ := cmd.Flags().GetString("output"); v != "" {
		if v != formatTable && v != formatJSON {
			return fmt.Errorf("--output must be %s or %s, got %q", formatTable, formatJSON, v)
		}
		cfg.Output.DefaultFormat = v
	}

	config.SetGlobalConfig(cfg)
	return nil
}

// projectDir returns the project .openly directory for this invocation, or
// "" outside a project. --project-dir names one even before it exists.
func projectDir(cmd *cobra.Command) string {
	flag, _ := cmd.Flags().GetString("project-dir")
	cwd, _ := os.Getwd()
	return config.ResolveProjectDir(cmd.Context(), flag, cwd)
}

const rootCmdExample = `  # Create up to 20 payment intents from a file
  openly payment create --file intents.yaml

  # Cancel payment intents in order
  openly payment cancel pi_123 pi_456

  # Create products and write the failed ones for resubmission
  openly product create --file products.yaml --failed-out failed-products.yaml

  # Pay out to up to 10 addresses, one at a time
  openly wallet withdraw --file payouts.yaml

  # Pay out as a single all-or-nothing batch
  openly wallet withdraw --file payouts.yaml --atomic

  # Check balances on several chains as JSON
  openly wallet balance --chain base --chain polygon -o json

  # Initialize configuration
  openly config init`

// newPaymentCmd creates the payment command group.
func newPaymentCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "payment", Short: "Bulk payment intent commands"}
	cmd.AddCommand(NewPaymentCreateCmd(), NewPaymentCancelCmd(), NewPaymentSyncCmd())
	return cmd
}

// newProductCmd creates the product command group.
func newProductCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "product", Short: "Bulk product commands"}
	cmd.AddCommand(NewProductCreateCmd(), NewProductUpdateCmd(), NewProductStatsCmd(), NewProductAmountsCmd())
	return cmd
}

// newWalletCmd creates the wallet command group.
func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "Wallet balance and payout commands"}
	cmd.AddCommand(NewWalletWithdrawCmd(), NewWalletBalanceCmd(), NewWalletPayoutsCmd())
	return cmd
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(
		NewConfigInitCmd(), NewConfigSetCmd(), NewConfigGetCmd(),
		NewConfigListCmd(), NewConfigValidateCmd(),
	)
	return cmd
}

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Response cache commands"}
	cmd.AddCommand(NewCacheClearCmd(), NewCacheInfoCmd())
	return cmd
}
