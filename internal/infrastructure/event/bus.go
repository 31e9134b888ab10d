package event

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBusStopped is returned by Publish after Stop
var ErrBusStopped = errors.New("event bus stopped")

// InMemoryEventBus dispatches ledger events synchronously to in-process
// handlers and then forwards them to any relays (for example the AMQP
// publisher). A failing handler never blocks the others.
type InMemoryEventBus struct {
	registry *HandlerRegistry
	logger   *zap.Logger
	stopped  atomic.Bool
	inflight sync.WaitGroup

	relayMu sync.RWMutex
	relays  []shared.EventPublisher
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	return &InMemoryEventBus{
		registry: NewHandlerRegistry(),
		logger:   logger,
	}
}

// AddRelay forwards every published event to p after local handlers ran
func (b *InMemoryEventBus) AddRelay(p shared.EventPublisher) {
	b.relayMu.Lock()
	defer b.relayMu.Unlock()
	b.relays = append(b.relays, p)
}

// Publish runs the handlers for each event. Handler errors and panics are
// logged and swallowed; relay errors are returned joined.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	if b.stopped.Load() {
		return ErrBusStopped
	}
	b.inflight.Add(1)
	defer b.inflight.Done()

	for _, event := range events {
		for _, handler := range b.registry.GetHandlers(event.EventType()) {
			if err := b.dispatch(ctx, handler, event); err != nil {
				b.logger.Error("event handler failed",
					zap.String("event_type", event.EventType()),
					zap.String("event_id", event.EventID().String()),
					zap.String("owner_id", event.OwnerID()),
					zap.String("aggregate_id", event.AggregateID()),
					zap.Error(err),
				)
			}
		}
	}
	return b.relay(ctx, events)
}

// Subscribe registers handler for eventTypes, falling back to handler.EventTypes()
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.registry.Register(handler, eventTypes...)
	b.logger.Debug("handler subscribed", zap.Strings("event_types", eventTypes))
}

// Unsubscribe removes a handler
func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.registry.Unregister(handler)
	b.logger.Debug("handler unsubscribed")
}

// Start (re)opens the bus for publishing
func (b *InMemoryEventBus) Start(ctx context.Context) error {
	b.stopped.Store(false)
	b.logger.Info("event bus started", zap.Int("handlers", b.registry.Len()))
	return nil
}

// Stop rejects new publishes and waits for in-flight ones, or for ctx
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.stopped.Store(true)

	done := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("event bus stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping event bus: %w", ctx.Err())
	}
}

func (b *InMemoryEventBus) relay(ctx context.Context, events []shared.DomainEvent) error {
	b.relayMu.RLock()
	relays := b.relays
	b.relayMu.RUnlock()

	var errs []error
	for _, r := range relays {
		if err := r.Publish(ctx, events...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *InMemoryEventBus) dispatch(ctx context.Context, handler shared.EventHandler, event shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return handler.Handle(ctx, event)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
