package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the default tracer name for business spans
	TracerName = "budget-ledger"
)

// SpanOption is a function that configures span start options
type SpanOption func(*spanOptions)

type spanOptions struct {
	attributes []attribute.KeyValue
}

// WithAttribute adds an attribute to the span
func WithAttribute(key string, value any) SpanOption {
	return func(opts *spanOptions) {
		opts.attributes = append(opts.attributes, toAttribute(key, value))
	}
}

// StartSpan starts a new span with the given name.
// It returns a new context containing the span and the span itself.
// The caller is responsible for calling span.End() when the operation completes.
func StartSpan(ctx context.Context, spanName string, opts ...SpanOption) (context.Context, trace.Span) {
	// Apply options
	options := &spanOptions{}
	for _, opt := range opts {
		opt(options)
	}

	// Get tracer
	tracer := otel.GetTracerProvider().Tracer(TracerName)

	// Build span start options
	startOpts := []trace.SpanStartOption{
		trace.WithSpanKind(trace.SpanKindInternal),
	}
	if len(options.attributes) > 0 {
		startOpts = append(startOpts, trace.WithAttributes(options.attributes...))
	}

	return tracer.Start(ctx, spanName, startOpts...)
}

// StartServiceSpan starts a span named {service}.{method}, e.g. "record_orchestrator.create_expense".
func StartServiceSpan(ctx context.Context, service, method string, opts ...SpanOption) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("%s.%s", service, method)
	return StartSpan(ctx, spanName, opts...)
}

// SetAttributes adds alternating key/value pairs to an existing span.
func SetAttributes(span trace.Span, keyValues ...any) {
	if span == nil {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}

	span.SetAttributes(attrs...)
}

// SetAttribute adds a single attribute to the span.
func SetAttribute(span trace.Span, key string, value any) {
	if span == nil {
		return
	}
	span.SetAttributes(toAttribute(key, value))
}

// RecordError records an error on the span and sets the span status to error.
func RecordError(span trace.Span, err error, opts ...trace.EventOption) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err, opts...)
	span.SetStatus(codes.Error, err.Error())
}

// SetOK marks the span as successful.
func SetOK(span trace.Span) {
	if span == nil {
		return
	}
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds a time-stamped event with alternating key/value attributes.
func AddEvent(span trace.Span, name string, keyValues ...any) {
	if span == nil {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(keyValues)/2)
	for i := 0; i+1 < len(keyValues); i += 2 {
		key, ok := keyValues[i].(string)
		if !ok {
			continue
		}
		attrs = append(attrs, toAttribute(key, keyValues[i+1]))
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SpanFromContext returns the current span from the context.
// This is useful when you need to add attributes or events to an existing span.
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// toAttribute converts a key-value pair to an attribute.KeyValue
func toAttribute(key string, value any) attribute.KeyValue {
	switch v := value.(type) {
	case string:
		return attribute.String(key, v)
	case int:
		return attribute.Int(key, v)
	case int64:
		return attribute.Int64(key, v)
	case float64:
		return attribute.Float64(key, v)
	case bool:
		return attribute.Bool(key, v)
	case []string:
		return attribute.StringSlice(key, v)
	case []int:
		return attribute.IntSlice(key, v)
	case []int64:
		return attribute.Int64Slice(key, v)
	case []float64:
		return attribute.Float64Slice(key, v)
	case []bool:
		return attribute.BoolSlice(key, v)
	case fmt.Stringer:
		return attribute.String(key, v.String())
	default:
		return attribute.String(key, fmt.Sprintf("%v", v))
	}
}

// Attribute keys for ledger spans
const (
	SpanAttrOwnerID    = "owner_id"
	SpanAttrRecordID   = "record_id"
	SpanAttrAccountID  = "account_id"
	SpanAttrBudgetID   = "budget_id"
	SpanAttrCategoryID = "category_id"
	SpanAttrAmount     = "amount"
	SpanAttrStage      = "stage"
	SpanAttrAttempts   = "attempts"
	SpanAttrBudgets    = "budgets_count"
)
