package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/logging"
	"github.com/openlyhq/openly/pkg/version"
)

// StepStatus represents the outcome of a single setup step.
type StepStatus int

const (
	// StepSuccess indicates the step completed successfully.
	StepSuccess StepStatus = iota
	// StepWarning indicates the step completed with a non-fatal issue.
	StepWarning
	// StepSkipped indicates the step was intentionally skipped via flag.
	StepSkipped
	// StepError indicates the step failed.
	StepError
)

// StepResult describes the outcome of executing a single setup step.
type StepResult struct {
	Name     string
	Status   StepStatus
	Message  string
	Critical bool
	Err      error
}

// SetupOptions holds the configuration for the setup command, derived from CLI flags.
type SetupOptions struct {
	SkipAPICheck   bool
	NonInteractive bool
}

// SetupResult is the aggregate outcome of all setup steps.
type SetupResult struct {
	Steps       []StepResult
	HasErrors   bool
	HasWarnings bool
}

// dirPermBase is the permission mode for the base and standard directories.
const dirPermBase = 0o700

// statsChecker is the part of the API client setup uses to reach the backend.
type statsChecker interface {
	ProductStats(ctx context.Context) (*api.ProductStats, error)
	ServerVersion() string
}

// formatStatus returns a status marker appropriate for the output mode.
func formatStatus(status StepStatus, nonInteractive bool) string {
	if nonInteractive {
		switch status {
		case StepSuccess:
			return "[OK]"
		case StepWarning:
			return "[WARN]"
		case StepSkipped:
			return "[SKIP]"
		case StepError:
			return "[ERR]"
		default:
			return "[??]"
		}
	}

	switch status {
	case StepSuccess:
		return "\u2713" // ✓
	case StepWarning:
		return "!"
	case StepSkipped:
		return "-"
	case StepError:
		return "\u2717" // ✗
	default:
		return "?"
	}
}

// NewSetupCmd creates the top-level setup command that bootstraps the openly environment.
func NewSetupCmd() *cobra.Command {
	var opts SetupOptions

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Bootstrap the openly environment",
		Long: `Sets up the openly environment by creating directories, initializing
configuration, checking for an API token and probing the Openly backend.

This command is idempotent: it is safe to run multiple times. Existing
configuration files are preserved.`,
		Example: `  # Full setup
  openly setup

  # CI/CD setup (no TTY-dependent output)
  openly setup --non-interactive

  # Offline setup
  openly setup --skip-api-check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSetup(cmd, &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.NonInteractive, "non-interactive", false,
		"Disable TTY-dependent output (status symbols, color)")
	cmd.Flags().BoolVar(&opts.SkipAPICheck, "skip-api-check", false,
		"Skip the backend reachability check")

	return cmd
}

// runSetup orchestrates all setup steps using a collect-and-continue pattern.
// Failures in one step do not prevent subsequent steps from running. The
// function returns an error only if a critical step fails.
func runSetup(cmd *cobra.Command, opts *SetupOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	log := logging.FromContext(ctx)

	if !opts.NonInteractive && !isTerminal(os.Stdin) {
		opts.NonInteractive = true
	}

	result := &SetupResult{}
	record := func(s StepResult) {
		printStep(cmd, s, opts.NonInteractive)
		result.Steps = append(result.Steps, s)
	}

	record(stepDisplayVersion())
	for _, s := range stepCreateDirectories() {
		record(s)
	}
	record(stepInitConfig())

	cfg := config.GetGlobalConfig()
	tokenStep := stepCheckToken(cfg)
	record(tokenStep)

	switch {
	case opts.SkipAPICheck:
		record(StepResult{Name: "API check", Status: StepSkipped, Message: "Skipped API reachability check"})
	case tokenStep.Status != StepSuccess:
		record(StepResult{Name: "API check", Status: StepSkipped, Message: "Skipped API check until a token is configured"})
	default:
		client, err := newClient(cmd)
		if err != nil {
			record(StepResult{Name: "API check", Status: StepWarning, Message: err.Error(), Err: err})
			break
		}
		record(stepCheckAPI(ctx, client, cfg.API.BaseURL))
	}

	for _, s := range result.Steps {
		if s.Status == StepError && s.Critical {
			result.HasErrors = true
		}
		if s.Status == StepWarning {
			result.HasWarnings = true
		}
	}

	printSummary(cmd, result)

	if result.HasErrors {
		log.Error().
			Ctx(ctx).
			Str("component", "setup").
			Msg("setup completed with critical errors")
		return errors.New("setup failed: one or more critical steps failed")
	}

	return nil
}

// printStep outputs a single step's status line.
func printStep(cmd *cobra.Command, step StepResult, nonInteractive bool) {
	marker := formatStatus(step.Status, nonInteractive)
	cmd.Printf("%s %s\n", marker, step.Message)
}

// printSummary outputs the final completion message.
func printSummary(cmd *cobra.Command, result *SetupResult) {
	cmd.Println()
	if result.HasErrors {
		cmd.Println("Setup completed with errors. Review the messages above for remediation steps.")
	} else {
		cmd.Println("Setup complete! Run 'openly payment create --file intents.yaml' to get started.")
	}
}

// stepDisplayVersion reports the openly version and Go runtime.
func stepDisplayVersion() StepResult {
	return StepResult{
		Name:    "Version display",
		Status:  StepSuccess,
		Message: fmt.Sprintf("openly v%s (%s)", version.GetVersion(), runtime.Version()),
	}
}

// stepCreateDirectories creates the config, cache and log directories.
// Returns one StepResult per directory.
func stepCreateDirectories() []StepResult {
	baseDir, err := config.GetConfigDir()
	if err != nil {
		return []StepResult{{
			Name:     "Directory creation",
			Status:   StepError,
			Message:  fmt.Sprintf("Cannot locate home directory: %v\n  Try: export %s=/path/to/dir", err, config.EnvHome),
			Critical: true,
			Err:      err,
		}}
	}

	dirs := []string{
		baseDir,
		filepath.Join(baseDir, "cache"),
		filepath.Join(baseDir, "logs"),
	}

	var results []StepResult
	for _, d := range dirs {
		if info, statErr := os.Stat(d); statErr == nil && info.IsDir() {
			results = append(results, StepResult{
				Name:     "Directory creation",
				Status:   StepSuccess,
				Message:  fmt.Sprintf("Directory exists: %s", d),
				Critical: true,
			})
			continue
		}

		if mkErr := os.MkdirAll(d, dirPermBase); mkErr != nil {
			results = append(results, StepResult{
				Name:   "Directory creation",
				Status: StepError,
				Message: fmt.Sprintf(
					"Failed to create %s: %v\n  Try: export %s=/path/to/writable/directory",
					d, mkErr, config.EnvHome,
				),
				Critical: true,
				Err:      mkErr,
			})
			continue
		}

		results = append(results, StepResult{
			Name:     "Directory creation",
			Status:   StepSuccess,
			Message:  fmt.Sprintf("Created %s", d),
			Critical: true,
		})
	}

	return results
}

// stepInitConfig writes the default config file if one does not exist.
func stepInitConfig() StepResult {
	configPath, err := config.GetConfigPath()
	if err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			return StepResult{
				Name:     "Config initialization",
				Status:   StepSuccess,
				Message:  fmt.Sprintf("Config already exists (%s)", configPath),
				Critical: true,
			}
		}
		err = config.Default().Save(configPath)
	}
	if err != nil {
		return StepResult{
			Name:     "Config initialization",
			Status:   StepError,
			Message:  fmt.Sprintf("Failed to initialize config: %v", err),
			Critical: true,
			Err:      err,
		}
	}

	return StepResult{
		Name:     "Config initialization",
		Status:   StepSuccess,
		Message:  fmt.Sprintf("Initialized config (%s)", configPath),
		Critical: true,
	}
}

// stepCheckToken reports whether an API token is configured.
func stepCheckToken(cfg *config.Config) StepResult {
	if cfg.API.Token == "" {
		return StepResult{
			Name:   "API token",
			Status: StepWarning,
			Message: fmt.Sprintf(
				"No API token configured. Product and wallet commands need one.\n  Try: openly config set api.token <token> --global, or export %s",
				config.EnvAPIToken,
			),
		}
	}
	return StepResult{
		Name:    "API token",
		Status:  StepSuccess,
		Message: fmt.Sprintf("API token configured (%s)", cfg.RedactedToken()),
	}
}

// stepCheckAPI checks the backend with an authenticated read.
func stepCheckAPI(ctx context.Context, client statsChecker, baseURL string) StepResult {
	if _, err := client.ProductStats(ctx); err != nil {
		msg := fmt.Sprintf("Could not reach %s: %v", baseURL, err)
		if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusForbidden) {
			msg = fmt.Sprintf("API token rejected by %s", baseURL)
		}
		return StepResult{Name: "API check", Status: StepWarning, Message: msg, Err: err}
	}

	msg := fmt.Sprintf("Connected to %s", baseURL)
	if v := client.ServerVersion(); v != "" {
		msg += fmt.Sprintf(" (API v%s)", v)
	}
	return StepResult{Name: "API check", Status: StepSuccess, Message: msg}
}
