package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/crowdlunch/admission/internal/shared/config"
	"github.com/crowdlunch/admission/internal/shared/contracts"
	"github.com/crowdlunch/admission/internal/shared/logger"
)

const (
	ordersExchange = "orders_topic"

	admittedRoutingPrefix = "orders.admitted."
)

// Publisher sends admitted-order events to the orders exchange. Publishing is
// downstream notification only; admission correctness never depends on it.
type Publisher struct {
	url    string
	logger *logger.Logger

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials RabbitMQ, opens the publish channel, and declares the
// exchange topology idempotently.
func Connect(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Publisher, error) {
	url := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQ.User, cfg.RabbitMQ.Password, cfg.RabbitMQ.Host, cfg.RabbitMQ.Port)

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(10 * time.Second),
	})
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}

	if err := ch.ExchangeDeclare(ordersExchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", ordersExchange, err)
	}

	log.Info(ctx, "rabbitmq_connected", "Connected to RabbitMQ", map[string]any{
		"host": cfg.RabbitMQ.Host,
		"port": cfg.RabbitMQ.Port,
	})

	return &Publisher{url: url, logger: log, conn: conn, ch: ch}, nil
}

// PublishAdmitted publishes the event as a persistent JSON message routed by
// delivery type ("orders.admitted.pickup" / "orders.admitted.desk").
func (p *Publisher) PublishAdmitted(ctx context.Context, msg contracts.OrderAdmittedMessage) error {
	p.mu.RLock()
	conn, ch := p.conn, p.ch
	p.mu.RUnlock()

	if conn == nil || conn.IsClosed() {
		return errors.New("rabbitmq: connection is not open")
	}
	if ch == nil || ch.IsClosed() {
		return errors.New("rabbitmq: publish channel is not open")
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal admitted event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return ch.PublishWithContext(pubCtx,
		ordersExchange, admittedRoutingPrefix+msg.DeliveryType, false, false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
		})
}

// Close releases the channel and connection.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
