// Package queue publishes cycle summaries to an AMQP broker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"CatalogSync/internal/config"
	"CatalogSync/internal/ports"
)

// ErrNotConfigured is returned when no broker URL is set.
var ErrNotConfigured = errors.New("queue not configured")

type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type dialFunc func(url string) (channel, func() error, error)

// Publisher declares a durable queue and publishes persistent JSON messages.
type Publisher struct {
	url   string
	queue string
	dial  dialFunc
}

var _ ports.QueuePublisher = (*Publisher)(nil)

// NewPublisher builds a publisher; a connection is opened per message.
func NewPublisher(cfg config.QueueConfig) *Publisher {
	return &Publisher{url: cfg.URL, queue: cfg.Queue, dial: dialBroker}
}

// Publish marshals payload to JSON and sends it to the configured queue.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	if p.url == "" {
		return ErrNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	ch, closeConn, err := p.dial(p.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = closeConn() }()
	defer ch.Close()

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.queue, err)
	}
	return nil
}

func dialBroker(url string) (channel, func() error, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}
	return ch, conn.Close, nil
}
