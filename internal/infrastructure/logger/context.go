package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// contextKey is a type for context keys used by the logger package
type contextKey string

const (
	// LoggerKey is the context key for the logger
	LoggerKey contextKey = "logger"
	// RequestIDKey is the context key for the command / request ID
	RequestIDKey contextKey = "request_id"
	// OwnerIDKey is the context key for the user whose ledger is being changed
	OwnerIDKey contextKey = "owner_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context, returns a no-op logger if not found
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID adds a request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithOwnerID adds the owner ID to context
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, OwnerIDKey, ownerID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetOwnerID retrieves owner ID from context
func GetOwnerID(ctx context.Context) string {
	if ownerID, ok := ctx.Value(OwnerIDKey).(string); ok {
		return ownerID
	}
	return ""
}

// ContextLogger adds trace_id, span_id, request_id and owner_id from the
// context to every entry it writes
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger from the given context.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{
		ctx:    ctx,
		logger: FromContext(ctx),
	}
}

// WithLogger returns a ContextLogger using the provided logger instead of
// extracting it from the context
func WithLogger(ctx context.Context, logger *zap.Logger) *ContextLogger {
	return &ContextLogger{
		ctx:    ctx,
		logger: logger,
	}
}

func (cl *ContextLogger) enrichedLogger() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	if spanCtx := trace.SpanContextFromContext(cl.ctx); spanCtx.IsValid() {
		l = l.With(
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if requestID := GetRequestID(cl.ctx); requestID != "" {
		l = l.With(zap.String("request_id", requestID))
	}
	if ownerID := GetOwnerID(cl.ctx); ownerID != "" {
		l = l.With(zap.String("owner_id", ownerID))
	}
	return l
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{
		ctx:    cl.ctx,
		logger: base.With(fields...),
	}
}

// Debug logs a debug level message with trace context
func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Debug(msg, fields...)
}

// Info logs an info level message with trace context
func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Info(msg, fields...)
}

// Warn logs a warning level message with trace context
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Warn(msg, fields...)
}

// Error logs an error level message with trace context
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enrichedLogger().Error(msg, fields...)
}

// Zap returns the underlying zap.Logger enriched with trace context
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enrichedLogger()
}
