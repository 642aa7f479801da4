package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher pushes one event onto the fan-out channel.
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
	Close() error
}

// AMQPPublisher publishes to a RabbitMQ fanout exchange. Every queue
// bound to the exchange receives every event.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the fanout exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

// PublishJSON marshals v and publishes it. Fanout exchanges ignore the
// routing key.
func (p *AMQPPublisher) PublishJSON(ctx context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        b,
	})
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// LogPublisher writes events to the process log instead of a broker.
// Used when no AMQP_URL is configured (local development, tests).
type LogPublisher struct{}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

// PublishJSON logs the marshalled event.
func (p *LogPublisher) PublishJSON(_ context.Context, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	log.Printf("notify: %s", b)
	return nil
}

// Close is a no-op.
func (p *LogPublisher) Close() error { return nil }
