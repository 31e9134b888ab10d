// Package messaging moves ledger events over RabbitMQ: a confirming publisher
// that relays the in-process bus to a topic exchange, and a consumer that feeds
// deliveries back into event handlers.
package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/RafaelMoro/BE-Budget-Master-sub000/internal/infrastructure/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeKind is the exchange type ledger events are published to. Routing
// keys are event types, so consumers bind with patterns like "ledger.#".
const ExchangeKind = "topic"

// Channel is the subset of *amqp.Channel used here
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Confirm(noWait bool) error
	NotifyPublish(confirm chan amqp.Confirmation) chan amqp.Confirmation
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Qos(prefetchCount, prefetchSize int, global bool) error
	Close() error
}

// Connection owns the AMQP connection and hands out channels
type Connection struct {
	conn *amqp.Connection
	cfg  config.AMQPConfig
}

// Dial connects to the broker in cfg.URL
func Dial(cfg config.AMQPConfig) (*Connection, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	return &Connection{conn: conn, cfg: cfg}, nil
}

// Channel opens a new channel
func (c *Connection) Channel() (Channel, error) {
	ch, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return ch, nil
}

// Config returns the settings the connection was dialed with
func (c *Connection) Config() config.AMQPConfig {
	return c.cfg
}

// Close closes the connection and every channel on it
func (c *Connection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// DeclareTopology declares the durable exchange and, when queue is set, a
// durable queue bound to it with bindingKey.
func DeclareTopology(ch Channel, exchange, queue, bindingKey string) error {
	if exchange == "" {
		return errors.New("exchange name is required")
	}
	if err := ch.ExchangeDeclare(
		exchange,     // name
		ExchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if queue == "" {
		return nil
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := ch.QueueBind(queue, bindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", queue, exchange, err)
	}
	return nil
}
