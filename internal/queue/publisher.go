// Package queue publishes committed lifecycle audit entries to RabbitMQ so
// other services (notifications, reporting) can follow booking changes.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"booking-engine/models"
	"booking-engine/utils"

	amqp "github.com/rabbitmq/amqp091-go"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

var ErrNotConnected = errors.New("rabbitmq: publisher not connected")

type Publisher struct {
	url     string
	conn    *amqp.Connection
	ch      channel
	queue   string
	breaker *utils.CircuitBreaker
}

func NewPublisher(url, queue string) *Publisher {
	return &Publisher{url: url, queue: queue, breaker: utils.NewCircuitBreaker("rabbitmq:" + queue)}
}

// Connect dials the broker and declares the durable lifecycle queue. It must
// be called before the first Publish.
func (p *Publisher) Connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq: declare %s: %w", p.queue, err)
	}

	p.conn = conn
	p.ch = ch
	slog.Info("Connected to RabbitMQ", "queue", p.queue)
	return nil
}

// Publish sends entry as a persistent JSON message routed by queue name.
func (p *Publisher) Publish(ctx context.Context, entry models.AuditEntry) error {
	if p.ch == nil {
		return ErrNotConnected
	}

	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal %s: %w", entry.Action, err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    entry.ID,
		Type:         string(entry.Action),
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	_, err = p.breaker.Execute(ctx, func() (any, error) {
		return nil, p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg)
	})
	if err != nil {
		slog.Error("rabbitmq: publish failed", "error", err, "queue", p.queue, "action", entry.Action)
		return err
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch == nil {
		return nil
	}
	if err := p.ch.Close(); err != nil {
		return err
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
