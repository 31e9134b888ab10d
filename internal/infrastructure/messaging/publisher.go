package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/domain/shared"
	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/event"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher errors
var (
	ErrPublishNacked   = errors.New("message was nacked by broker")
	ErrConfirmTimeout  = errors.New("broker confirmation timed out")
	ErrPublisherClosed = errors.New("publisher is closed")
)

// DefaultConfirmTimeout bounds the wait for a broker ack
const DefaultConfirmTimeout = 5 * time.Second

// AMQPPublisher publishes ledger events to a topic exchange with publisher
// confirms. Each event's routing key is its event type. Publishes are
// serialized so confirms arrive in order.
type AMQPPublisher struct {
	ch             Channel
	exchange       string
	serializer     *event.EventSerializer
	confirms       chan amqp.Confirmation
	confirmTimeout time.Duration
	logger         *zap.Logger

	mu     sync.Mutex
	closed bool
}

// PublisherOption configures an AMQPPublisher
type PublisherOption func(*AMQPPublisher)

// WithConfirmTimeout overrides DefaultConfirmTimeout
func WithConfirmTimeout(d time.Duration) PublisherOption {
	return func(p *AMQPPublisher) {
		if d > 0 {
			p.confirmTimeout = d
		}
	}
}

// WithSerializer replaces the ledger serializer
func WithSerializer(s *event.EventSerializer) PublisherOption {
	return func(p *AMQPPublisher) {
		if s != nil {
			p.serializer = s
		}
	}
}

// NewAMQPPublisher declares the exchange and puts ch into confirm mode
func NewAMQPPublisher(ch Channel, exchange string, logger *zap.Logger, opts ...PublisherOption) (*AMQPPublisher, error) {
	p := &AMQPPublisher{
		ch:             ch,
		exchange:       exchange,
		serializer:     event.NewLedgerSerializer(),
		confirmTimeout: DefaultConfirmTimeout,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := DeclareTopology(ch, exchange, "", ""); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable publisher confirms: %w", err)
	}
	p.confirms = ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	return p, nil
}

// Publish sends events in order and stops at the first one the broker does not confirm
func (p *AMQPPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}
	for _, e := range events {
		if err := p.publishOne(ctx, e); err != nil {
			p.logger.Error("failed to publish event",
				zap.String("event_type", e.EventType()),
				zap.String("event_id", e.EventID().String()),
				zap.String("exchange", p.exchange),
				zap.Error(err),
			)
			return fmt.Errorf("publish %s %s: %w", e.EventType(), e.EventID(), err)
		}
		p.logger.Debug("event published",
			zap.String("event_type", e.EventType()),
			zap.String("event_id", e.EventID().String()),
		)
	}
	return nil
}

func (p *AMQPPublisher) publishOne(ctx context.Context, e shared.DomainEvent) error {
	body, err := p.serializer.Serialize(e)
	if err != nil {
		return err
	}

	headers := amqp.Table{
		HeaderOwnerID:       e.OwnerID(),
		HeaderAggregateType: e.AggregateType(),
		HeaderAggregateID:   e.AggregateID(),
	}
	injectTrace(ctx, headers)

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    e.EventID().String(),
		Type:         e.EventType(),
		Timestamp:    e.OccurredAt(),
		Headers:      headers,
		Body:         body,
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	if err := p.ch.PublishWithContext(pubCtx, p.exchange, e.EventType(), false, false, msg); err != nil {
		return err
	}
	return p.waitForConfirm(pubCtx)
}

func (p *AMQPPublisher) waitForConfirm(ctx context.Context) error {
	select {
	case c, ok := <-p.confirms:
		if !ok {
			return ErrPublisherClosed
		}
		if !c.Ack {
			return ErrPublishNacked
		}
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrConfirmTimeout
		}
		return ctx.Err()
	}
}

// Close closes the channel. Later publishes fail with ErrPublisherClosed.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.ch.Close()
}

var _ shared.EventPublisher = (*AMQPPublisher)(nil)
