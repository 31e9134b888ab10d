package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// setupTestTracer installs an in-memory span recorder as the global provider
func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(attrs []attribute.KeyValue) map[string]attribute.Value {
	m := make(map[string]attribute.Value, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value
	}
	return m
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartServiceSpan(context.Background(), "budget_ledger", "apply_expense",
		telemetry.WithAttribute(telemetry.SpanAttrRecordID, "e1"),
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "budget_ledger.apply_expense", spans[0].Name())
	assert.Equal(t, "e1", attrMap(spans[0].Attributes())[telemetry.SpanAttrRecordID].AsString())
	assert.Equal(t, trace.SpanKindInternal, spans[0].SpanKind())
}

func TestSetAttributes(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.attrs")
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBudgetID, "b1",
		telemetry.SpanAttrAttempts, 3,
		telemetry.SpanAttrBudgets, []string{"b1", "b2"},
		42, "non-string key is skipped",
	)
	telemetry.SetAttribute(span, "ok", true)
	span.End()

	attrs := attrMap(sr.Ended()[0].Attributes())
	assert.Equal(t, "b1", attrs[telemetry.SpanAttrBudgetID].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.SpanAttrAttempts].AsInt64())
	assert.Equal(t, []string{"b1", "b2"}, attrs[telemetry.SpanAttrBudgets].AsStringSlice())
	assert.True(t, attrs["ok"].AsBool())
	assert.Len(t, attrs, 4)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.error")
	telemetry.RecordError(span, errors.New("budget conflict"))
	telemetry.RecordError(span, nil)
	span.End()

	s := sr.Ended()[0]
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "budget conflict", s.Status().Description)
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "exception", s.Events()[0].Name)
}

func TestAddEvent(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := telemetry.StartSpan(context.Background(), "test.event")
	telemetry.AddEvent(span, "stage_done", telemetry.SpanAttrStage, "gather_expenses")
	telemetry.SetOK(span)
	span.End()

	s := sr.Ended()[0]
	require.Len(t, s.Events(), 1)
	assert.Equal(t, "stage_done", s.Events()[0].Name)
	assert.Equal(t, codes.Ok, s.Status().Code)
}

func TestSpanFromContext(t *testing.T) {
	setupTestTracer(t)

	assert.False(t, telemetry.SpanFromContext(context.Background()).SpanContext().IsValid())

	ctx, span := telemetry.StartSpan(context.Background(), "test.ids")
	defer span.End()

	assert.Equal(t, span, telemetry.SpanFromContext(ctx))
	assert.True(t, telemetry.SpanFromContext(ctx).SpanContext().IsValid())
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{Enabled: false}, zapNop())
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("x"))
	assert.NoError(t, tp.Shutdown(context.Background()))
}
