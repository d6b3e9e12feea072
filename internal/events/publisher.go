// Package events publishes status-change notifications to RabbitMQ.
// Publishing is best-effort: callers log failures and carry on.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"payoutdesk/internal/domain"
	"payoutdesk/pkg/logger"
)

// Routing keys.
const (
	WithdrawalStatusChanged = "withdrawal.status_changed"
	WorkStatusChanged       = "work.status_changed"
	WithdrawalOverdue       = "withdrawal.overdue"
)

// WithdrawalStatusEvent is emitted after every successful withdrawal advance.
type WithdrawalStatusEvent struct {
	WithdrawalID uuid.UUID               `json:"withdrawal_id"`
	WorkID       uuid.UUID               `json:"work_id"`
	ActorID      uuid.UUID               `json:"actor_id"`
	FromStatus   domain.WithdrawalStatus `json:"from_status"`
	ToStatus     domain.WithdrawalStatus `json:"to_status"`
	Comment      string                  `json:"comment,omitempty"`
	OccurredAt   time.Time               `json:"occurred_at"`
}

// WithdrawalOverdueEvent is emitted by the overdue sweep for every waiting
// withdrawal past its SLA.
type WithdrawalOverdueEvent struct {
	WithdrawalID uuid.UUID `json:"withdrawal_id"`
	WorkID       uuid.UUID `json:"work_id"`
	WaitingSince time.Time `json:"waiting_since"`
	DetectedAt   time.Time `json:"detected_at"`
}

// WorkStatusEvent is emitted after every successful work transition.
type WorkStatusEvent struct {
	WorkID     uuid.UUID         `json:"work_id"`
	ActorID    uuid.UUID         `json:"actor_id"`
	FromStatus domain.WorkStatus `json:"from_status"`
	ToStatus   domain.WorkStatus `json:"to_status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// Publisher sends an event under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// NopPublisher discards every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	return nil
}

// AMQPPublisher publishes JSON messages to a topic exchange.
type AMQPPublisher struct {
	conn     *amqp.Connection
	exchange string
	logger   logger.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string, log logger.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{conn: conn, exchange: exchange, ch: ch, logger: log}, nil
}

// Publish marshals payload and publishes it persistently.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", routingKey, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		return fmt.Errorf("publisher for %s is closed", p.exchange)
	}
	messageID := uuid.NewString()
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", routingKey, err)
	}
	p.logger.Debug("Event published", map[string]interface{}{
		"exchange":    p.exchange,
		"routing_key": routingKey,
		"message_id":  messageID,
	})
	return nil
}

// Close releases the channel and connection. A channel that fails to close
// is logged; the connection error is returned.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		if err := p.ch.Close(); err != nil {
			p.logger.Warn("Failed to close AMQP channel", map[string]interface{}{
				"exchange": p.exchange,
				"error":    err.Error(),
			})
		}
		p.ch = nil
	}
	return p.conn.Close()
}
