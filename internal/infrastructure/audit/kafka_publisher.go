// Package audit streams admission decision events to Kafka for offline
// analysis. Publishing is fire-and-forget from the decision path's point of
// view; a slow broker never delays an admission.
package audit

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"github.com/turtacn/limitgate/internal/config"
	"github.com/turtacn/limitgate/internal/domain/models"
	"github.com/turtacn/limitgate/internal/domain/service"
	"github.com/turtacn/limitgate/pkg/logger"
)

var _ service.AuditPublisher = (*KafkaPublisher)(nil)

// KafkaPublisher writes decision events to a Kafka topic.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers and topic.
// Async mode keeps WriteMessages from blocking on broker round trips.
func NewKafkaPublisher(cfg config.AuditConfig, log logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers...),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
		Async:    true,
	}
	return &KafkaPublisher{
		writer: writer,
		logger: log.WithComponent("kafka_publisher"),
	}
}

// Publish sends one decision event, keyed by the counter key so events for the
// same counter land on the same partition in order.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error(ctx, "failed to marshal decision event", err,
			logger.String("event_id", event.EventID.String()),
		)
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key),
		Value: payload,
	})
	if err != nil {
		p.logger.Error(ctx, "failed to publish decision event", err,
			logger.String("event_id", event.EventID.String()),
		)
	}
	return err
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
