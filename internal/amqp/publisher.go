// Package amqp publishes drained sync-queue entries to a RabbitMQ exchange.
// Each tenant gets its own routing key so downstream consumers can subscribe
// per tenant.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"finwave/internal/models"
)

// Publisher is a thin wrapper over one AMQP connection and channel. It is
// not safe for concurrent use; the sync drainer owns it exclusively.
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
}

// NewPublisher dials the broker and declares the sync exchange.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type: routing key is the tenant id
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange}, nil
}

// syncMessage is the wire envelope for one queue entry.
type syncMessage struct {
	TenantID   string               `json:"tenant_id"`
	EntityType string               `json:"entity_type"`
	EntityID   string               `json:"entity_id"`
	Operation  models.SyncOperation `json:"operation"`
	Revision   string               `json:"revision"`
	Payload    json.RawMessage      `json:"payload,omitempty"`
	QueuedAt   time.Time            `json:"queued_at"`
}

// PublishChange sends one sync-queue entry to the exchange, routed by tenant.
func (p *Publisher) PublishChange(ctx context.Context, tenantID string, entry *models.SyncQueueEntry) error {
	msg := syncMessage{
		TenantID:   tenantID,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Operation:  entry.Operation,
		Revision:   entry.Revision,
		Payload:    json.RawMessage(entry.Payload),
		QueuedAt:   entry.QueuedAt,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal sync message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		tenantID, // routing key
		false,    // mandatory
		false,    // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish sync message: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
