package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	runIDKey      contextKey = "run_id"
	reportKindKey contextKey = "report_kind"
	queryKey      contextKey = "query"
)

// WithContext returns a new context carrying logger
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRunID tags ctx and its logger with the report run ID
func WithRunID(ctx context.Context, logger *zap.Logger, runID string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, runIDKey, runID)
	enriched := logger.With(zap.String("run_id", runID))
	return WithContext(ctx, enriched), enriched
}

// WithReportKind tags ctx and its logger with the report kind
func WithReportKind(ctx context.Context, logger *zap.Logger, kind string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, reportKindKey, kind)
	enriched := logger.With(zap.String("report_kind", kind))
	return WithContext(ctx, enriched), enriched
}

// GetRunID returns the run ID stored in ctx
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey).(string); ok {
		return id
	}
	return ""
}

// GetReportKind returns the report kind stored in ctx
func GetReportKind(ctx context.Context) string {
	if kind, ok := ctx.Value(reportKindKey).(string); ok {
		return kind
	}
	return ""
}

// WithQuery names the record source query ctx is used for, e.g. "sales"
func WithQuery(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, queryKey, name)
}

// GetQuery returns the query name stored in ctx
func GetQuery(ctx context.Context) string {
	if name, ok := ctx.Value(queryKey).(string); ok {
		return name
	}
	return ""
}

// L returns the context logger with trace_id and span_id added when ctx
// carries a valid span.
//
//	logger.L(ctx).Info("Sales fetched", zap.Int("records", n))
func L(ctx context.Context) *zap.Logger {
	return WithTraceContext(ctx, FromContext(ctx))
}

// WithTraceContext adds trace_id and span_id from the span in ctx to logger
func WithTraceContext(ctx context.Context, logger *zap.Logger) *zap.Logger {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return logger
	}
	return logger.With(
		zap.String("trace_id", spanCtx.TraceID().String()),
		zap.String("span_id", spanCtx.SpanID().String()),
	)
}
