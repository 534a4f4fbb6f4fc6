package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teerapat-ch/eventhub/internal/dto"
	"github.com/teerapat-ch/eventhub/pkg/kafka"
	"github.com/teerapat-ch/eventhub/pkg/logger"
	"go.uber.org/zap"
)

// RSVP actions published to the stream
const (
	RSVPActionJoined = "joined"
	RSVPActionLeft   = "left"
)

// RSVPPublisher defines the interface for publishing membership changes
type RSVPPublisher interface {
	// PublishJoined publishes a member admission
	PublishJoined(ctx context.Context, msg *dto.RSVPEventMessage) error

	// PublishLeft publishes a member departure
	PublishLeft(ctx context.Context, msg *dto.RSVPEventMessage) error

	// Close closes the publisher
	Close() error
}

// KafkaRSVPPublisher implements RSVPPublisher using Kafka. Messages are keyed
// by event ID so all changes to one event land on the same partition in
// order.
type KafkaRSVPPublisher struct {
	producer    *kafka.Producer
	topic       string
	serviceName string
}

// RSVPPublisherConfig contains configuration for the RSVP publisher
type RSVPPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaRSVPPublisher creates a new Kafka RSVP publisher
func NewKafkaRSVPPublisher(ctx context.Context, cfg *RSVPPublisherConfig) (*KafkaRSVPPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("rsvp publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "rsvp-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "eventhub"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "eventhub-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaRSVPPublisher{
		producer:    producer,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishJoined publishes a member admission
func (p *KafkaRSVPPublisher) PublishJoined(ctx context.Context, msg *dto.RSVPEventMessage) error {
	msg.Action = RSVPActionJoined
	return p.publish(ctx, msg)
}

// PublishLeft publishes a member departure
func (p *KafkaRSVPPublisher) PublishLeft(ctx context.Context, msg *dto.RSVPEventMessage) error {
	msg.Action = RSVPActionLeft
	return p.publish(ctx, msg)
}

func (p *KafkaRSVPPublisher) publish(ctx context.Context, msg *dto.RSVPEventMessage) error {
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = time.Now().UTC()
	}

	headers := map[string]string{
		"message_id": uuid.New().String(),
		"source":     p.serviceName,
		"action":     msg.Action,
	}

	if err := p.producer.ProduceJSON(ctx, p.topic, msg.EventID, msg, headers); err != nil {
		return fmt.Errorf("failed to publish rsvp event: %w", err)
	}

	logger.Get().Debug("published rsvp event",
		zap.String("event_id", msg.EventID),
		zap.String("action", msg.Action),
	)
	return nil
}

// Close closes the underlying producer
func (p *KafkaRSVPPublisher) Close() error {
	return p.producer.Close()
}

// NoOpRSVPPublisher implements RSVPPublisher without a broker. Used when
// Kafka is not configured and in tests.
type NoOpRSVPPublisher struct{}

// NewNoOpRSVPPublisher creates a publisher that drops all messages
func NewNoOpRSVPPublisher() *NoOpRSVPPublisher {
	return &NoOpRSVPPublisher{}
}

// PublishJoined drops the message
func (p *NoOpRSVPPublisher) PublishJoined(ctx context.Context, msg *dto.RSVPEventMessage) error {
	return nil
}

// PublishLeft drops the message
func (p *NoOpRSVPPublisher) PublishLeft(ctx context.Context, msg *dto.RSVPEventMessage) error {
	return nil
}

// Close is a no-op
func (p *NoOpRSVPPublisher) Close() error {
	return nil
}
