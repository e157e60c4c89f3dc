package logging

import (
	"context"
	"os"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// EnvTraceID lets a caller pin the trace ID of an invocation.
const EnvTraceID = "OPENLY_TRACE_ID"

type traceIDKey struct{}

// GenerateTraceID returns a new ULID string.
func GenerateTraceID() string {
	return ulid.Make().String()
}

// ContextWithTraceID returns a copy of ctx carrying traceID.
func ContextWithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey{}, traceID)
}

// TraceIDFromContext returns the trace ID in ctx, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(traceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GetOrGenerateTraceID returns the trace ID from ctx, then from
// OPENLY_TRACE_ID, and generates a new one otherwise.
func GetOrGenerateTraceID(ctx context.Context) string {
	if id := TraceIDFromContext(ctx); id != "" {
		return id
	}
	if id := os.Getenv(EnvTraceID); id != "" {
		return id
	}
	return GenerateTraceID()
}

// TraceIDHook adds trace_id to events logged with .Ctx(ctx).
type TraceIDHook struct{}

// Run implements zerolog.Hook.
func (TraceIDHook) Run(e *zerolog.Event, _ zerolog.Level, _ string) {
	if id := TraceIDFromContext(e.GetCtx()); id != "" {
		e.Str("trace_id", id)
	}
}
