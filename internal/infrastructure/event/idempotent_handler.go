package event

import (
	"context"
	"sync/atomic"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// IdempotencyMetrics counts what an IdempotentHandler did with each delivery
type IdempotencyMetrics struct {
	EventsProcessed atomic.Int64
	EventsDuplicate atomic.Int64
	EventsFailed    atomic.Int64
	EventsReleased  atomic.Int64
}

// Stats returns a snapshot of the current metrics
func (m *IdempotencyMetrics) Stats() IdempotencyStats {
	return IdempotencyStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
		EventsReleased:  m.EventsReleased.Load(),
	}
}

// IdempotencyStats is a snapshot of idempotency metrics
type IdempotencyStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
	EventsReleased  int64 `json:"events_released"`
}

// IdempotentHandler wraps an EventHandler so each event ID is handled once,
// even when the bus or broker delivers it several times.
type IdempotentHandler struct {
	handler shared.EventHandler
	store   shared.IdempotencyStore
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	metrics *IdempotencyMetrics
}

// IdempotentHandlerOption is a functional option for IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithIdempotencyConfig sets the idempotency configuration
func WithIdempotencyConfig(config shared.IdempotencyConfig) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.config = config
	}
}

// WithIdempotencyMetrics shares a metrics collector between handlers
func WithIdempotencyMetrics(metrics *IdempotencyMetrics) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		h.metrics = metrics
	}
}

// NewIdempotentHandler creates a new idempotent handler wrapper
func NewIdempotentHandler(
	handler shared.EventHandler,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentHandlerOption,
) *IdempotentHandler {
	h := &IdempotentHandler{
		handler: handler,
		store:   store,
		config:  shared.DefaultIdempotencyConfig(),
		logger:  logger,
		metrics: &IdempotencyMetrics{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes returns the wrapped handler's event types
func (h *IdempotentHandler) EventTypes() []string {
	return h.handler.EventTypes()
}

// Handle marks the event as processed and runs the wrapped handler.
// A store outage does not drop the event: it is handled anyway.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	if !h.config.Enabled {
		return h.handler.Handle(ctx, event)
	}

	key := idempotencyKey(event)
	log := h.logger.With(
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
		zap.String("owner_id", event.OwnerID()),
	)

	isNew, err := h.store.MarkProcessed(ctx, key, h.config.TTL)
	switch {
	case err != nil:
		log.Warn("idempotency store unavailable, handling event anyway", zap.Error(err))
	case !isNew:
		h.metrics.EventsDuplicate.Add(1)
		log.Debug("duplicate event skipped")
		return nil
	}

	if err := h.handler.Handle(ctx, event); err != nil {
		h.metrics.EventsFailed.Add(1)
		log.Error("event handler failed", zap.Error(err))
		if h.config.ReleaseOnFailure && isNew {
			if ferr := h.store.Forget(ctx, key); ferr != nil {
				log.Warn("failed to release idempotency key", zap.Error(ferr))
			} else {
				h.metrics.EventsReleased.Add(1)
			}
		}
		return err
	}

	h.metrics.EventsProcessed.Add(1)
	return nil
}

// GetMetrics returns the metrics for this handler
func (h *IdempotentHandler) GetMetrics() *IdempotencyMetrics {
	return h.metrics
}

// Unwrap returns the wrapped handler
func (h *IdempotentHandler) Unwrap() shared.EventHandler {
	return h.handler
}

func idempotencyKey(event shared.DomainEvent) string {
	return event.EventType() + ":" + event.EventID().String()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
