package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/marcelsud/jobgate/alert"
	"github.com/rabbitmq/amqp091-go"
)

// publisher is the subset of *amqp091.Channel the AMQP channel uses
type publisher interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// AMQP publishes alerts to a topic exchange with routing key alerts.<severity>.<class>
type AMQP struct {
	exchange string
	conn     *amqp091.Connection
	mu       sync.Mutex
	ch       publisher
}

func sanitizeAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	if !strings.HasSuffix(clean, "/") {
		clean += "/"
	}
	u, err := url.Parse(clean)
	if err != nil {
		return "", err
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("AMQP scheme must be either 'amqp://' or 'amqps://'")
	}
	return clean, nil
}

// NewAMQP dials the broker and declares the exchange
func NewAMQP(amqpURL, exchange string) (*AMQP, error) {
	clean, err := sanitizeAMQPURL(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("parsing AMQP url: %w", err)
	}

	conn, err := amqp091.Dial(clean)
	if err != nil {
		return nil, fmt.Errorf("dialing AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening AMQP channel: %w", err)
	}

	a, err := newAMQP(ch, exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.conn = conn
	return a, nil
}

func newAMQP(ch publisher, exchange string) (*AMQP, error) {
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declaring exchange: %w", err)
	}
	return &AMQP{exchange: exchange, ch: ch}, nil
}

func (a *AMQP) Name() string { return "amqp" }

func (a *AMQP) Send(ctx context.Context, m alert.Message) error {
	body, err := json.Marshal(m.Record)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	key := RoutingKey(m.Record)

	a.mu.Lock()
	defer a.mu.Unlock()
	err = a.ch.PublishWithContext(ctx, a.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    m.Record.ID,
		Timestamp:    m.Record.At,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publishing alert: %w", err)
	}
	return nil
}

// RoutingKey returns alerts.<severity>.<class>
func RoutingKey(r alert.Record) string {
	return fmt.Sprintf("alerts.%s.%s", r.Severity, r.Class)
}

// Close closes the channel and the connection
func (a *AMQP) Close() {
	if a.ch != nil {
		a.ch.Close()
	}
	if a.conn != nil {
		a.conn.Close()
	}
}
