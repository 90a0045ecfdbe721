// Package notify publishes analysis status updates.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/fadilmartias/resume-insight/internal/config"
	"github.com/fadilmartias/resume-insight/internal/logger"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

type Update struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Notifier interface {
	Publish(ctx context.Context, u Update) error
	Close() error
}

// New returns an AMQP notifier when a broker URL is configured and a no-op
// notifier otherwise.
func New(cfg *config.BrokerConfig, log *zap.Logger) (Notifier, error) {
	if cfg.RabbitMQURL == "" {
		return NopNotifier{}, nil
	}
	return NewAMQPNotifier(cfg.RabbitMQURL, cfg.Exchange, log)
}

type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, Update) error { return nil }
func (NopNotifier) Close() error { return nil }

// AMQPNotifier publishes to a topic exchange with routing key analysis.<id>.
type AMQPNotifier struct {
	conn     *amqp.Connection
	exchange string
	log      *zap.Logger

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPNotifier(url, exchange string, log *zap.Logger) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &AMQPNotifier{conn: conn, exchange: exchange, log: logger.OrNop(log), ch: ch}, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, u Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, msg, err := encode(u)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Publish(n.exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", key, err)
	}
	n.log.Debug("published analysis update", zap.String("routing_key", key), zap.String("status", u.Status))
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.ch.Close(); err != nil {
		n.log.Warn("closing channel", zap.Error(err))
	}
	return n.conn.Close()
}

func RoutingKey(taskID string) string {
	return "analysis." + taskID
}

func encode(u Update) (string, amqp.Publishing, error) {
	if u.Timestamp.IsZero() {
		u.Timestamp = time.Now().UTC()
	}
	body, err := json.Marshal(u)
	if err != nil {
		return "", amqp.Publishing{}, fmt.Errorf("encode update: %w", err)
	}
	return RoutingKey(u.TaskID), amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    u.Timestamp,
		Body:         body,
	}, nil
}
