package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		assert.NotNil(t, FromContext(context.Background()))
	})
}

func TestContextLogger_InjectsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ctx := WithContext(context.Background(), zap.New(core))
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOwnerID(ctx, "user-1")

	L(ctx).With(zap.String("saga", "create_expense")).Info("step done", zap.String("step", "persist"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-1", fields["owner_id"])
	assert.Equal(t, "create_expense", fields["saga"])
	assert.Equal(t, "persist", fields["step"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextLogger_TraceCorrelation(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	core, logs := observer.New(zap.DebugLevel)
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	WithLogger(ctx, zap.New(core)).Warn("conflict")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestContextGetters(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetRequestID(ctx))
	assert.Empty(t, GetOwnerID(ctx))

	ctx = WithOwnerID(WithRequestID(ctx, "r"), "o")
	assert.Equal(t, "r", GetRequestID(ctx))
	assert.Equal(t, "o", GetOwnerID(ctx))
}
