// Package worker consumes promotion events from the fan-out exchange and
// dispatches notifications to their targets. Retry beyond the broker's
// redelivery is out of scope here; the core has already moved on.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campushub/class-enrollment/internal/notify"
)

// Config describes the consumer's broker wiring.
type Config struct {
	AMQPURL  string
	Exchange string
	Queue    string
	Prefetch int
}

// Handler processes one decoded promotion event.
type Handler interface {
	Handle(ctx context.Context, event notify.Event) error
}

// Consumer binds a durable queue to the fanout exchange and feeds
// deliveries to its handler. Failed deliveries are nacked for redelivery.
type Consumer struct {
	cfg     Config
	handler Handler

	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewConsumer constructs a Consumer.
func NewConsumer(cfg Config, h Handler) *Consumer {
	return &Consumer{cfg: cfg, handler: h}
}

// Connect dials the broker and declares the exchange, queue and binding.
func (c *Consumer) Connect() error {
	conn, err := amqp.Dial(c.cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	// Fanout exchanges ignore routing keys; an empty binding key suffices.
	if err := ch.QueueBind(q.Name, "", c.cfg.Exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("bind queue: %w", err)
	}

	prefetch := c.cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 8
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	c.conn = conn
	c.ch = ch
	return nil
}

// Close releases the channel and connection.
func (c *Consumer) Close() {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// Run consumes deliveries until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	msgs, err := c.ch.ConsumeWithContext(ctx, c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := c.handleDelivery(ctx, d); err != nil {
				log.Printf("notifier: handle error err=%v, nack and requeue", err)
				_ = d.Nack(false, true)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) error {
	var event notify.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		// Malformed payloads can never succeed; drop instead of requeue.
		log.Printf("notifier: drop undecodable payload: %v", err)
		return nil
	}
	if event.EventType != notify.EventTypePromoted {
		log.Printf("notifier: skip unknown event type %q", event.EventType)
		return nil
	}
	return c.handler.Handle(ctx, event)
}
