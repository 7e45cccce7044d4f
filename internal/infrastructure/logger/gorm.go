package logger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQueryThreshold applies when QueryLoggerConfig leaves it unset
const DefaultSlowQueryThreshold = 500 * time.Millisecond

// QueryLoggerConfig configures the record source statement log
type QueryLoggerConfig struct {
	// Level is the application log level; debug and info log every statement
	Level         string
	SlowThreshold time.Duration
}

// QueryLogger is the GORM logger of the record source. Each statement is
// logged with the query that issued it (see WithQuery) and the run it belongs
// to, so a slow or failing read can be traced back to its report.
type QueryLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewQueryLogger creates a QueryLogger writing to zapLogger
func NewQueryLogger(zapLogger *zap.Logger, cfg QueryLoggerConfig) *QueryLogger {
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowQueryThreshold
	}
	return &QueryLogger{
		logger:        zapLogger.Named("record_source"),
		level:         gormLevel(cfg.Level),
		slowThreshold: cfg.SlowThreshold,
	}
}

// gormLevel maps the application log level to the GORM level. Statements are
// only traced at debug and info; anything else keeps slow queries and errors.
func gormLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "info":
		return gormlogger.Info
	case "error", "fatal":
		return gormlogger.Error
	case "silent":
		return gormlogger.Silent
	default:
		return gormlogger.Warn
	}
}

// LogMode implements gormlogger.Interface
func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *QueryLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.scoped(ctx).Info("GORM", zap.String("detail", fmt.Sprintf(msg, data...)))
	}
}

// Warn implements gormlogger.Interface
func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.scoped(ctx).Warn("GORM", zap.String("detail", fmt.Sprintf(msg, data...)))
	}
}

// Error implements gormlogger.Interface
func (l *QueryLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.scoped(ctx).Error("GORM", zap.String("detail", fmt.Sprintf(msg, data...)))
	}
}

// Trace implements gormlogger.Interface. Failures log at error, statements
// over the slow threshold at warn and everything else at debug.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	slow := elapsed > l.slowThreshold
	switch {
	case err != nil && l.level >= gormlogger.Error:
	case slow && l.level >= gormlogger.Warn:
	case l.level >= gormlogger.Info:
	default:
		return
	}

	sql, rows := fc()
	log := l.scoped(ctx).With(
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	)

	switch {
	case err != nil:
		log.Error("Record source query failed", zap.Error(err))
	case slow:
		log.Warn("Slow record source query", zap.Duration("threshold", l.slowThreshold))
	default:
		log.Debug("Record source query")
	}
}

// scoped adds the query name, run, report kind and trace ids carried by ctx
func (l *QueryLogger) scoped(ctx context.Context) *zap.Logger {
	log := WithTraceContext(ctx, l.logger)

	var fields []zap.Field
	if query := GetQuery(ctx); query != "" {
		fields = append(fields, zap.String("query", query))
	}
	if runID := GetRunID(ctx); runID != "" {
		fields = append(fields, zap.String("run_id", runID))
	}
	if kind := GetReportKind(ctx); kind != "" {
		fields = append(fields, zap.String("report_kind", kind))
	}
	return log.With(fields...)
}
