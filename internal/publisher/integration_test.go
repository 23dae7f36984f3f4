//go:build integration

package publisher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"

	"book_harvester/internal/domain"
	"book_harvester/testdata/utils"
)

type RabbitMQIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *rabbitmq.RabbitMQContainer
	amqpURL   string
	logger    *slog.Logger
}

func (s *RabbitMQIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	container, err := rabbitmq.Run(s.ctx,
		"rabbitmq:3.13-management-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	amqpURL, err := container.AmqpURL(s.ctx)
	s.Require().NoError(err)
	s.amqpURL = amqpURL
}

func (s *RabbitMQIntegrationSuite) TearDownSuite() {
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func TestRabbitMQIntegrationSuite(t *testing.T) {
	suite.Run(t, new(RabbitMQIntegrationSuite))
}

func (s *RabbitMQIntegrationSuite) TestPublisher_Connection() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange",
		RoutingKey: "test-routing-key",
		QueueName:  "test-queue",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.NoError(err)
	s.NotNil(pub)

	err = pub.Close()
	s.NoError(err)
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishBookIngested() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-book",
		RoutingKey: "test-routing-key-book",
		QueueName:  "test-queue-book",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	book := &domain.Book{
		ID:           1,
		Title:        "Moby-Dick",
		Author:       "Herman Melville",
		Year:         utils.Ptr(1851),
		Language:     utils.Ptr("en"),
		SourceID:     "gutendex",
		SourceItemID: "2701",
		AssetURL:     "https://cdn.example.com/gutendex/2701.pdf",
		Genres:       []string{"Fiction", "Adventure"},
		Category:     "Fiction",
		CreatedAt:    time.Now().Truncate(time.Millisecond),
	}

	err = pub.PublishBookIngested(s.ctx, book)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	var received BookMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("ingested", received.Action)
	s.Equal("gutendex", received.Book.SourceID)
	s.Equal("2701", received.Book.SourceItemID)
	s.Equal("Moby-Dick", received.Book.Title)
	s.NotNil(received.Book.Year)
	s.Equal(1851, *received.Book.Year)
	s.Len(received.Book.Genres, 2)
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_PublishNotification() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-notify",
		RoutingKey: "test-routing-key-notify",
		QueueName:  "test-queue-notify",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	err = pub.PublishNotification(s.ctx, NotificationCoverSearchExhausted, map[string]string{
		"source_id": "openlibrary",
		"item_id":   "OL123W",
	})
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	s.Equal("application/json", msg.ContentType)

	var received NotificationMessage
	err = json.Unmarshal(msg.Body, &received)
	s.NoError(err)
	s.Equal("notification", received.Action)
	s.Equal(NotificationCoverSearchExhausted, received.Name)
	s.Equal("openlibrary", received.Payload["source_id"])
	s.Equal("OL123W", received.Payload["item_id"])
	s.False(received.Timestamp.IsZero())
}

func (s *RabbitMQIntegrationSuite) TestPublisher_MessagePersistence() {
	cfg := Config{
		URL:        s.amqpURL,
		Exchange:   "test-exchange-persist",
		RoutingKey: "test-routing-key-persist",
		QueueName:  "test-queue-persist",
	}

	pub, err := NewRabbitMQ(cfg, s.logger)
	s.Require().NoError(err)
	defer pub.Close()

	book := &domain.Book{
		Title:        "Persistent Book",
		Author:       "Unknown",
		SourceID:     "openlibrary",
		SourceItemID: "OL999W",
		AssetURL:     "https://cdn.example.com/openlibrary/OL999W.pdf",
		Category:     domain.UncategorizedCategory,
	}

	err = pub.PublishBookIngested(s.ctx, book)
	s.NoError(err)

	msg := s.consumeMessage(cfg)
	s.NotNil(msg)

	s.Equal(uint8(amqp.Persistent), msg.DeliveryMode)
}

func (s *RabbitMQIntegrationSuite) consumeMessage(cfg Config) *amqp.Delivery {
	conn, err := amqp.Dial(s.amqpURL)
	s.Require().NoError(err)
	defer conn.Close()

	ch, err := conn.Channel()
	s.Require().NoError(err)
	defer ch.Close()

	msgs, err := ch.Consume(cfg.QueueName, "", true, false, false, false, nil)
	s.Require().NoError(err)

	select {
	case msg := <-msgs:
		return &msg
	case <-time.After(5 * time.Second):
		s.Fail("Timeout waiting for message")
		return nil
	}
}
