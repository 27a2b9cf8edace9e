// Package notify provides the durable-bus backends for the notification
// publisher: Kafka by default, Google Pub/Sub as an alternative.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/message-gateway/pkg/notify"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes notification events to Kafka. The event key becomes
// the message key, so all events for one receiver hash to the same partition
// and keep their order downstream.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher over the given brokers. The topic is
// set per message from the event, so one writer serves both logical topics.
func NewKafkaPublisher(brokers []string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Balancer: &kafka.Hash{},
		},
		logger: logger.With().Str("component", "kafka-publisher").Logger(),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e notify.Event) error {
	payload, err := json.Marshal(e.Notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	msg := kafka.Message{
		Topic: e.Topic,
		Value: payload,
	}
	if e.Key != "" {
		msg.Key = []byte(e.Key)
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification to %s: %w", e.Topic, err)
	}
	return nil
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
