package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/openlyhq/openly/internal/api"
	"github.com/openlyhq/openly/internal/bulk"
	"github.com/openlyhq/openly/internal/config"
	"github.com/openlyhq/openly/internal/engine/batch"
	"github.com/openlyhq/openly/internal/engine/cache"
	"github.com/openlyhq/openly/internal/logging"
	"github.com/openlyhq/openly/pkg/version"
)

// ExitCodePartialFailure is the process exit code when a batch ran but at
// least one item failed.
const ExitCodePartialFailure = 2

// PartialFailureError reports a finished batch with failed items. The
// per-item messages have already been rendered.
type PartialFailureError struct {
	Operation batch.Operation
	Failed    int
	Total     int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %d of %d items failed", e.Operation, e.Failed, e.Total)
}

// auditContext holds common context for audit logging within a bulk command.
type auditContext struct {
	logger  logging.AuditLogger
	traceID string
	params  map[string]string
	start   time.Time
	command string
}

// newAuditContext creates a new audit context.
func newAuditContext(ctx context.Context, command string, params map[string]string) *auditContext {
	return &auditContext{
		logger:  logging.AuditLoggerFromContext(ctx),
		traceID: logging.TraceIDFromContext(ctx),
		params:  params,
		start:   time.Now(),
		command: command,
	}
}

// logFailure logs an audit entry for a batch that never ran or broke.
func (a *auditContext) logFailure(ctx context.Context, err error) {
	entry := logging.NewAuditEntry(a.command, a.traceID).
		WithParameters(a.params).
		WithError(err.Error()).
		WithDuration(a.start)
	a.logger.Log(ctx, *entry)
}

// logSuccess logs an audit entry for a batch that ran to completion.
func (a *auditContext) logSuccess(ctx context.Context, stats batch.Stats) {
	entry := logging.NewAuditEntry(a.command, a.traceID).
		WithParameters(a.params).
		WithSuccess(stats.Successful, stats.Failed, stats.TotalAmount).
		WithDuration(a.start)
	a.logger.Log(ctx, *entry)
}

// openCache opens the response cache described by cfg and the
// OPENLY_CACHE_* environment variables.
func openCache(cfg *config.Config) (*cache.Store, error) {
	opts := cache.Options{
		Enabled:    cfg.Cache.Enabled,
		TTLSeconds: cfg.Cache.TTLSeconds,
		MaxSizeMB:  cfg.Cache.MaxSizeMB,
	}
	dir := opts.ApplyEnv()
	if dir == "" {
		var err error
		if dir, err = config.GetCacheDir(cfg); err != nil {
			return nil, err
		}
	}
	return cache.Open(dir, opts)
}

// newClient builds the REST client from the global config and flags.
func newClient(cmd *cobra.Command) (*api.Client, error) {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()

	opts := []api.Option{
		api.WithTimeout(time.Duration(cfg.API.TimeoutSeconds) * time.Second),
		api.WithUserAgent("openly-cli/" + version.GetVersion()),
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	if cfg.Cache.Enabled && !noCache {
		store, err := openCache(cfg)
		if err != nil {
			log := logging.FromContext(ctx)
			log.Warn().Ctx(ctx).Err(err).Msg("response cache unavailable, continuing without it")
		} else {
			opts = append(opts, api.WithCache(store))
		}
	}

	return api.NewClient(cfg.API.BaseURL, cfg.API.Token, opts...)
}

// newService builds the bulk service with configured policies.
func newService(cmd *cobra.Command, observer batch.Observer) (*bulk.Service, error) {
	client, err := newClient(cmd)
	if err != nil {
		return nil, err
	}
	cfg := config.GetGlobalConfig()
	return bulk.NewService(client,
		bulk.WithPolicySource(cfg.PolicyFor),
		bulk.WithObserver(observer),
	), nil
}

// loadItems reads a YAML list of T from path, or from stdin when path is "-".
func loadItems[T any](cmd *cobra.Command, path string) ([]T, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading items: %w", err)
	}

	var items []T
	if err = yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing items from %s: %w", path, err)
	}
	return items, nil
}

// writeFailedInputs writes inputs as a YAML list that loadItems accepts, so
// the failed subset can be resubmitted as a new batch.
func writeFailedInputs[T any](path string, inputs []T) error {
	data, err := yaml.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("encoding failed items: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err = os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing failed items: %w", err)
	}
	return nil
}

// bulkSpec describes how one bulk command reports its batch.
type bulkSpec[TIn, TOut any] struct {
	command   string
	label     string
	params    map[string]string
	failedOut string
	describe  describeFunc[TIn, TOut]
}

// executeBulk runs one bulk operation end to end: service construction,
// progress reporting, rendering, audit logging and the failed-items file.
func executeBulk[TIn, TOut any](
	cmd *cobra.Command,
	spec bulkSpec[TIn, TOut],
	exec func(ctx context.Context, svc *bulk.Service) (*batch.Report[TIn, TOut], error),
) error {
	ctx := cmd.Context()
	cfg := config.GetGlobalConfig()
	audit := newAuditContext(ctx, spec.command, spec.params)

	rep := newReporter(cmd.ErrOrStderr(), spec.label, cfg.Output.Precision)
	svc, err := newService(cmd, rep)
	if err != nil {
		audit.logFailure(ctx, err)
		return err
	}

	report, err := exec(ctx, svc)
	if err != nil {
		audit.logFailure(ctx, err)
		return fmt.Errorf("%s: %w", spec.command, err)
	}
	audit.logSuccess(ctx, report.Stats)

	if err = renderReport(cmd.OutOrStdout(), cfg.Output.DefaultFormat, cfg.Output.Precision, report, spec.describe); err != nil {
		return err
	}

	if spec.failedOut != "" && report.Stats.Failed > 0 {
		if err = writeFailedInputs(spec.failedOut, report.FailedInputs()); err != nil {
			return err
		}
		cmd.PrintErrf("Wrote %d failed items to %s\n", report.Stats.Failed, spec.failedOut)
	}

	if !report.Stats.AllSucceeded() {
		return &PartialFailureError{Operation: report.Operation, Failed: report.Stats.Failed, Total: report.Stats.Total}
	}
	return nil
}

// errNoItems is returned when a command got neither --file nor arguments.
var errNoItems = errors.New("no items given: pass --file or arguments")
