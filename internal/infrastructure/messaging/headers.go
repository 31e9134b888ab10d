package messaging

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel"
)

// Message headers set on every published event
const (
	HeaderOwnerID       = "owner_id"
	HeaderAggregateType = "aggregate_type"
	HeaderAggregateID   = "aggregate_id"
)

// headerCarrier adapts amqp.Table to propagation.TextMapCarrier
type headerCarrier amqp.Table

func (c headerCarrier) Get(key string) string {
	v, ok := c[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (c headerCarrier) Set(key, value string) {
	c[key] = value
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	return keys
}

// injectTrace writes the W3C trace context of ctx into headers
func injectTrace(ctx context.Context, headers amqp.Table) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier(headers))
}

// extractTrace returns ctx carrying the trace context found in headers
func extractTrace(ctx context.Context, headers amqp.Table) context.Context {
	if headers == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, headerCarrier(headers))
}
