package logging

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// AuditEntry records one bulk command invocation.
type AuditEntry struct {
	Command     string
	TraceID     string
	Parameters  map[string]string
	Success     bool
	ResultCount int
	FailedCount int
	TotalAmount float64
	Duration    time.Duration
	Error       string
}

// NewAuditEntry starts an entry for command.
func NewAuditEntry(command, traceID string) *AuditEntry {
	return &AuditEntry{Command: command, TraceID: traceID}
}

// WithParameters sets the command parameters.
func (e *AuditEntry) WithParameters(params map[string]string) *AuditEntry {
	e.Parameters = params
	return e
}

// WithSuccess marks the command as completed.
func (e *AuditEntry) WithSuccess(count, failed int, amount float64) *AuditEntry {
	e.Success = true
	e.ResultCount = count
	e.FailedCount = failed
	e.TotalAmount = amount
	return e
}

// WithError marks the command as failed.
func (e *AuditEntry) WithError(msg string) *AuditEntry {
	e.Success = false
	e.Error = msg
	return e
}

// WithDuration sets the duration measured from start.
func (e *AuditEntry) WithDuration(start time.Time) *AuditEntry {
	e.Duration = time.Since(start)
	return e
}

// AuditLogger writes audit entries.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry)
	Enabled() bool
	Close() error
}

// AuditLoggerConfig configures NewAuditLogger.
type AuditLoggerConfig struct {
	Enabled bool
	File    string
}

// NewAuditLogger returns a JSON-lines audit logger, or a no-op logger when
// auditing is disabled or the file cannot be opened.
func NewAuditLogger(cfg AuditLoggerConfig) AuditLogger {
	if !cfg.Enabled || cfg.File == "" {
		return noopAuditLogger{}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return noopAuditLogger{}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return noopAuditLogger{}
	}
	return &fileAuditLogger{file: f, logger: zerolog.New(f).With().Timestamp().Logger()}
}

type fileAuditLogger struct {
	mu     sync.Mutex
	file   *os.File
	logger zerolog.Logger
}

func (l *fileAuditLogger) Log(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return
	}
	l.logger.Log().
		Str("command", entry.Command).
		Str("trace_id", entry.TraceID).
		Interface("parameters", entry.Parameters).
		Bool("success", entry.Success).
		Int("result_count", entry.ResultCount).
		Int("failed_count", entry.FailedCount).
		Float64("total_amount", entry.TotalAmount).
		Int64("duration_ms", entry.Duration.Milliseconds()).
		Str("error", entry.Error).
		Msg("audit")
}

func (l *fileAuditLogger) Enabled() bool { return true }

func (l *fileAuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

type noopAuditLogger struct{}

func (noopAuditLogger) Log(context.Context, AuditEntry) {}
func (noopAuditLogger) Enabled() bool                   { return false }
func (noopAuditLogger) Close() error                    { return nil }

type auditLoggerKey struct{}

// ContextWithAuditLogger returns a copy of ctx carrying l.
func ContextWithAuditLogger(ctx context.Context, l AuditLogger) context.Context {
	return context.WithValue(ctx, auditLoggerKey{}, l)
}

// AuditLoggerFromContext returns the audit logger in ctx, or a no-op logger.
func AuditLoggerFromContext(ctx context.Context) AuditLogger {
	if ctx != nil {
		if l, ok := ctx.Value(auditLoggerKey{}).(AuditLogger); ok && l != nil {
			return l
		}
	}
	return noopAuditLogger{}
}
