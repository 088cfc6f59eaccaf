package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/cafe-backend/internal/model"
)

const defaultDialTimeout = 2 * time.Second

// Publisher sends account events to RabbitMQ. It opens a connection per
// publish: registrations are rare and this keeps no broker state in the
// request path.
type Publisher struct {
	url         string
	queue       string
	dialTimeout time.Duration
	log         *zap.Logger
}

// NewPublisher returns nil when url is empty so callers can skip wiring it.
func NewPublisher(url, queue string, log *zap.Logger) *Publisher {
	if url == "" {
		return nil
	}
	if queue == "" {
		queue = UserRegisteredQueue
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{url: url, queue: queue, dialTimeout: defaultDialTimeout, log: log}
}

// UserRegistered publishes a UserRegisteredEvent for u.
func (p *Publisher) UserRegistered(ctx context.Context, u *model.User) error {
	return p.publish(ctx, NewUserRegisteredEvent(u))
}

func (p *Publisher) publish(ctx context.Context, event interface{}) error {
	conn, err := amqp.DialConfig(p.url, amqp.Config{Dial: amqp.DefaultDial(p.dialTimeout)})
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// durable, so events survive a broker restart
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	p.log.Debug("event published", zap.String("queue", p.queue))
	return nil
}
