package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/communa-labs/ticketing/internal/domain"
	"github.com/communa-labs/ticketing/pkg/kafka"
	"github.com/communa-labs/ticketing/pkg/logger"
	"github.com/communa-labs/ticketing/pkg/retry"
)

// EventPublisher defines the interface for publishing ticket lifecycle events
type EventPublisher interface {
	// PublishTicketReserved publishes a ticket reserved event
	PublishTicketReserved(ctx context.Context, ticket *domain.Ticket) error

	// PublishTicketPaid publishes a payment confirmed event
	PublishTicketPaid(ctx context.Context, ticket *domain.Ticket) error

	// PublishTicketCancelled publishes a ticket cancelled event
	PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error

	// PublishTicketExpired publishes a hold expired event
	PublishTicketExpired(ctx context.Context, ticket *domain.Ticket) error

	// PublishTicketRedeemed publishes a gate redemption event
	PublishTicketRedeemed(ctx context.Context, ticket *domain.Ticket) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka. Failed
// publishes are retried with backoff and land on a dead letter topic
// when the retries run out.
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	dlq         *retry.DLQHandler
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "ticket-events"
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "ticketing"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "ticketing-producer"
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

	dlqPublisher := retry.NewKafkaDLQPublisher(
		&retry.KafkaProducerAdapter{Producer: producer},
		&retry.DLQConfig{TopicSuffix: ".dlq", Source: serviceName},
	)
	dlqHandler := retry.NewDLQHandler(dlqPublisher, &retry.DLQHandlerConfig{
		// The client already retries at the request level, so the
		// application-level retries stay short.
		RetryConfig: &retry.Config{
			MaxRetries:      2,
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
		Source: serviceName,
		OnDLQ: func(msg *retry.DLQMessage) {
			logger.Get().Warn("ticket event moved to dead letter queue",
				"event_id", msg.ID,
				"topic", msg.OriginalTopic,
				"error", msg.Error,
				"attempts", msg.Attempts,
			)
		},
	})

	return &KafkaEventPublisher{
		producer:    producer,
		dlq:         dlqHandler,
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishTicketReserved publishes a ticket reserved event
func (p *KafkaEventPublisher) PublishTicketReserved(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.TicketEventReserved, ticket)
}

// PublishTicketPaid publishes a payment confirmed event
func (p *KafkaEventPublisher) PublishTicketPaid(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.TicketEventPaid, ticket)
}

// PublishTicketCancelled publishes a ticket cancelled event
func (p *KafkaEventPublisher) PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.TicketEventCancelled, ticket)
}

// PublishTicketExpired publishes a hold expired event
func (p *KafkaEventPublisher) PublishTicketExpired(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.TicketEventExpired, ticket)
}

// PublishTicketRedeemed publishes a gate redemption event
func (p *KafkaEventPublisher) PublishTicketRedeemed(ctx context.Context, ticket *domain.Ticket) error {
	return p.publishEvent(ctx, domain.TicketEventRedeemed, ticket)
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func (p *KafkaEventPublisher) publishEvent(ctx context.Context, eventType domain.TicketEventType, ticket *domain.Ticket) error {
	eventID := uuid.New().String()
	event := domain.NewTicketEvent(eventType, ticket, eventID)

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(eventType),
		"event_id":     eventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	msgCtx := &retry.MessageContext{
		ID:      eventID,
		Topic:   p.topic,
		Key:     event.Key(),
		Payload: value,
		Headers: headers,
	}
	err = p.dlq.ProcessWithDLQ(ctx, msgCtx, func(ctx context.Context) error {
		return p.producer.Produce(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", eventType, err)
	}

	return nil
}

// NoOpEventPublisher is a no-op implementation of EventPublisher used
// when no broker is reachable and in tests
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishTicketReserved(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (p *NoOpEventPublisher) PublishTicketPaid(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (p *NoOpEventPublisher) PublishTicketCancelled(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (p *NoOpEventPublisher) PublishTicketExpired(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (p *NoOpEventPublisher) PublishTicketRedeemed(ctx context.Context, ticket *domain.Ticket) error {
	return nil
}

func (p *NoOpEventPublisher) Close() error {
	return nil
}
