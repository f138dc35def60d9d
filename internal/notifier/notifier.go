package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"veridraws/internal/draw"
	"veridraws/internal/logger"
)

const (
	SyncedRoutingKey = "draws.synced"
	dialTimeout      = 10 * time.Second
)

// SyncedEvent is the body of a draws.synced message.
type SyncedEvent struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Source    string    `json:"source"`
	Total     int       `json:"total"`
	Mine      int       `json:"mine"`
	Joined    int       `json:"joined"`
	Available int       `json:"available"`
	Skipped   int       `json:"skipped"`
	SyncedAt  time.Time `json:"syncedAt"`
}

func NewSyncedEvent(snapshot *draw.Snapshot) SyncedEvent {
	return SyncedEvent{
		ID:        uuid.NewString(),
		Identity:  snapshot.Identity.String(),
		Source:    string(snapshot.Source),
		Total:     len(snapshot.Draws),
		Mine:      len(snapshot.Mine),
		Joined:    len(snapshot.Joined),
		Available: len(snapshot.Available),
		Skipped:   snapshot.Skipped,
		SyncedAt:  snapshot.SyncedAt.UTC(),
	}
}

// channel is the part of *amqp.Channel the producer uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// EventProducer publishes draw events to a topic exchange.
type EventProducer struct {
	conn     *amqp.Connection
	channel  channel
	exchange string
}

// NewEventProducer dials the broker and declares the exchange.
func NewEventProducer(amqpURL, exchange string) (*EventProducer, error) {
	cleanURL, err := sanitizeURL(amqpURL)
	if err != nil {
		return nil, err
	}

	conn, err := amqp.DialConfig(cleanURL, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	producer, err := newEventProducer(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	producer.conn = conn
	return producer, nil
}

func newEventProducer(ch channel, exchange string) (*EventProducer, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventProducer{channel: ch, exchange: exchange}, nil
}

func (p *EventProducer) Publish(ctx context.Context, routingKey string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}

	logger.Debug("notifier: event published", zap.String("exchange", p.exchange), zap.String("routing key", routingKey))
	return nil
}

// PublishSynced announces a published snapshot.
func (p *EventProducer) PublishSynced(ctx context.Context, snapshot *draw.Snapshot) error {
	return p.Publish(ctx, SyncedRoutingKey, NewSyncedEvent(snapshot))
}

func (p *EventProducer) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

func sanitizeURL(raw string) (string, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"'")
	if idx := strings.Index(strings.ToLower(clean), "amqp"); idx > 0 {
		clean = clean[idx:]
	}
	parsed, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}
