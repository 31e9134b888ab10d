package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// GormLogger routes the SQL document store's statement log through zap.
// Entries go through a ContextLogger, so each one carries the trace, request
// and owner of the command that issued the statement.
type GormLogger struct {
	logger        *zap.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets how long a statement may run before it is logged
// as slow. Zero turns slow statement logging off.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) {
		l.slowThreshold = threshold
	}
}

// NewGormLogger creates a GORM logger writing to a "gorm" child of zapLogger
func NewGormLogger(zapLogger *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	gl := &GormLogger{
		logger:        zapLogger.Named("gorm"),
		level:         level,
		slowThreshold: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(gl)
	}
	return gl
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, msg, data)
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, msg, data)
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, level gormlogger.LogLevel, msg string, data []any) {
	if l.level < level {
		return
	}
	WithLogger(ctx, l.logger).Zap().Log(zapLevel(level), fmt.Sprintf(msg, data...))
}

// Trace implements gormlogger.Interface. Missing rows and duplicate keys are
// answers the document store hands back to its callers, so they are logged
// at debug instead of as failures.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	expected := errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, gorm.ErrDuplicatedKey)

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil && !expected && l.level >= gormlogger.Error:
		lvl, msg = zapcore.ErrorLevel, "document store statement failed"
	case err != nil && expected:
		lvl, msg = zapcore.DebugLevel, "document store statement rejected"
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		lvl, msg = zapcore.WarnLevel, "slow document store statement"
	case l.level >= gormlogger.Info:
		lvl, msg = zapcore.DebugLevel, "document store statement"
	default:
		return
	}

	sql, rows := fc()
	fields := []zap.Field{
		zap.String("statement", statementKind(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
	if lvl == zapcore.WarnLevel {
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	WithLogger(ctx, l.logger).Zap().Log(lvl, msg, fields...)
}

// statementKind returns the leading SQL keyword, e.g. "UPDATE"
func statementKind(sql string) string {
	kind, _, _ := strings.Cut(strings.TrimSpace(sql), " ")
	return strings.ToUpper(kind)
}

func zapLevel(level gormlogger.LogLevel) zapcore.Level {
	switch level {
	case gormlogger.Error:
		return zapcore.ErrorLevel
	case gormlogger.Warn:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

// MapGormLogLevel maps the configured gorm mode to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
