package messaging

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/event"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// ErrDeliveriesClosed is returned by Run when the broker closes the delivery stream
var ErrDeliveriesClosed = errors.New("delivery channel closed")

// Consumer decodes ledger events from a queue and hands them to a handler.
// Undecodable messages are dropped; handler failures are requeued, so the
// handler should be idempotent.
type Consumer struct {
	ch         Channel
	queue      string
	handler    shared.EventHandler
	serializer *event.EventSerializer
	prefetch   int
	logger     *zap.Logger
}

// ConsumerOption configures a Consumer
type ConsumerOption func(*Consumer)

// WithPrefetch limits unacknowledged deliveries in flight
func WithPrefetch(n int) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.prefetch = n
		}
	}
}

// NewConsumer creates a consumer for queue
func NewConsumer(ch Channel, queue string, handler shared.EventHandler, logger *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		ch:         ch,
		queue:      queue,
		handler:    handler,
		serializer: event.NewLedgerSerializer(),
		prefetch:   10,
		logger:     logger.With(zap.String("queue", queue)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run consumes until ctx is done or the broker closes the stream
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.ch.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	deliveries, err := c.ch.Consume(
		c.queue, // queue
		"",      // consumer
		false,   // auto-ack
		false,   // exclusive
		false,   // no-local
		false,   // no-wait
		nil,     // args
	)
	if err != nil {
		return fmt.Errorf("start consuming %s: %w", c.queue, err)
	}

	c.logger.Info("consuming ledger events")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("stopping consumer", zap.Error(ctx.Err()))
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.With(zap.String("message_id", d.MessageId), zap.String("type", d.Type))

	evt, err := c.serializer.Deserialize(d.Body)
	if err != nil {
		log.Error("dropping undecodable message", zap.Error(err))
		c.settle(log, d.Nack(false, false))
		return
	}

	if types := c.handler.EventTypes(); len(types) > 0 && !slices.Contains(types, evt.EventType()) {
		c.settle(log, d.Ack(false))
		return
	}

	if err := c.handler.Handle(extractTrace(ctx, d.Headers), evt); err != nil {
		log.Warn("handler failed, requeueing", zap.Error(err))
		c.settle(log, d.Nack(false, true))
		return
	}
	c.settle(log, d.Ack(false))
}

func (c *Consumer) settle(log *zap.Logger, err error) {
	if err != nil {
		log.Error("failed to settle delivery", zap.Error(err))
	}
}
