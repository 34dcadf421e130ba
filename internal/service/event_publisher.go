package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/queueflow/queue-core/internal/domain"
	"github.com/queueflow/queue-core/pkg/logger"
)

// EventPublisher publishes ticket lifecycle events for downstream
// consumers (analytics, audit). Publishing is best-effort: a failure is
// logged and never surfaced to the lifecycle operation that produced it.
type EventPublisher interface {
	// PublishTicketEvent publishes one lifecycle event
	PublishTicketEvent(ctx context.Context, eventType string, ticket *domain.Ticket) error

	// Close flushes and closes the publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher on a Kafka topic
type KafkaEventPublisher struct {
	client *kgo.Client
	topic  string
	log    *logger.Logger
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// NewKafkaEventPublisher creates a Kafka event publisher and verifies
// broker connectivity
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil || len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "ticket-events"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "queue-core"
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ClientID(clientID),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach kafka brokers: %w", err)
	}

	return &KafkaEventPublisher{
		client: client,
		topic:  topic,
		log:    logger.Get(),
	}, nil
}

// PublishTicketEvent publishes one lifecycle event, keyed by queue so a
// queue's events stay ordered within a partition
func (p *KafkaEventPublisher) PublishTicketEvent(ctx context.Context, eventType string, ticket *domain.Ticket) error {
	event := domain.TicketEvent{
		EventID:      uuid.New().String(),
		EventType:    eventType,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		QueueID:      ticket.QueueID,
		UserID:       ticket.UserID,
		Status:       ticket.Status,
		Position:     ticket.Position,
		Timestamp:    time.Now().UTC(),
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(ticket.QueueID),
		Value: value,
	}

	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.log.Warn("ticket event publish failed",
				zap.String("event_type", eventType),
				zap.String("ticket_id", ticket.ID),
				zap.Error(err),
			)
		}
	})
	return nil
}

// Close flushes outstanding records and closes the client
func (p *KafkaEventPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.client.Close()
		return fmt.Errorf("failed to flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}

// NoOpEventPublisher is used when no brokers are configured
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a publisher that discards events
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishTicketEvent discards the event
func (p *NoOpEventPublisher) PublishTicketEvent(_ context.Context, _ string, _ *domain.Ticket) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}

// Ensure implementations satisfy EventPublisher
var (
	_ EventPublisher = (*KafkaEventPublisher)(nil)
	_ EventPublisher = (*NoOpEventPublisher)(nil)
)
