package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"book_harvester/internal/domain"
)

// NotificationCoverSearchExhausted names the event emitted when cover
// lookup retries run out for an item.
const NotificationCoverSearchExhausted = "cover_search.exhausted"

type RabbitMQ struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		cfg.QueueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	err = ch.QueueBind(
		q.Name,
		cfg.RoutingKey,
		cfg.Exchange,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &RabbitMQ{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger,
	}, nil
}

// BookMessage announces a newly persisted book to downstream consumers.
type BookMessage struct {
	Action    string      `json:"action"` // always "ingested"
	Book      domain.Book `json:"book"`
	Timestamp time.Time   `json:"timestamp"`
}

// NotificationMessage carries a named operational event.
type NotificationMessage struct {
	Action    string            `json:"action"` // always "notification"
	Name      string            `json:"name"`
	Payload   map[string]string `json:"payload,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

func (r *RabbitMQ) PublishBookIngested(ctx context.Context, book *domain.Book) error {
	msg := BookMessage{
		Action:    "ingested",
		Book:      *book,
		Timestamp: time.Now().UTC(),
	}

	if err := r.publish(ctx, msg); err != nil {
		return err
	}

	r.logger.Debug("published book",
		"source", book.SourceID,
		"source_item_id", book.SourceItemID,
	)

	return nil
}

func (r *RabbitMQ) PublishNotification(ctx context.Context, name string, payload map[string]string) error {
	msg := NotificationMessage{
		Action:    "notification",
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}

	if err := r.publish(ctx, msg); err != nil {
		return err
	}

	r.logger.Debug("published notification", "name", name)

	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		r.routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
