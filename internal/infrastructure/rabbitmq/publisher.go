package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/kitchen-ops/internal/domain/outbox"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability"
	"github.com/Zhima-Mochi/kitchen-ops/internal/observability/logctx"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	componentPublisher = "rabbitmq_publisher"
	DefaultExchange    = "kitchen.events"
	publishTimeout     = 5 * time.Second
)

// Channel is the part of *amqp.Channel the publisher uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher forwards domain events to a topic exchange, routed by event name.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       Channel
	exchange string
	log      observability.Logger
}

// Dial connects, declares the exchange, and returns a ready publisher.
func Dial(url, exchange string, tel observability.Observability) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq: declare exchange %s: %w", exchange, err)
	}
	p := NewPublisher(ch, exchange, tel)
	p.conn = conn
	return p, nil
}

func NewPublisher(ch Channel, exchange string, tel observability.Observability) *Publisher {
	_, logger, _ := observability.Resolve(tel)
	return &Publisher{
		ch:       ch,
		exchange: exchange,
		log:      logger.With(observability.F("component", componentPublisher)),
	}
}

type envelope struct {
	Event      string          `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

func (p *Publisher) Publish(ctx context.Context, e domoutbox.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("rabbitmq: encode %s: %w", e.EventName(), err)
	}
	now := time.Now().UTC()
	body, err := json.Marshal(envelope{Event: e.EventName(), Payload: payload, OccurredAt: now})
	if err != nil {
		return fmt.Errorf("rabbitmq: encode envelope: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, e.EventName(), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Body:         body,
		Timestamp:    now,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rabbitmq: publish %s: %w", e.EventName(), err)
	}
	logctx.FromOr(ctx, p.log).Debug("event_forwarded", observability.F("event", e.EventName()))
	return nil
}

// Forward subscribes the publisher to the named events on an in-process bus.
func (p *Publisher) Forward(sub domoutbox.Subscriber, eventNames ...string) {
	for _, name := range eventNames {
		sub.Subscribe(name, p.Publish)
	}
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil {
		return fmt.Errorf("rabbitmq: close channel: %w", err)
	}
	if p.conn != nil && !p.conn.IsClosed() {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("rabbitmq: close connection: %w", err)
		}
	}
	return nil
}
