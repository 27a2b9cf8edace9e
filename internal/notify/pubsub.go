package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub/v2"
	"github.com/illmade-knight/message-gateway/pkg/notify"
	"github.com/rs/zerolog"
)

// PubSubPublisher writes notification events to Google Pub/Sub topics. The
// event key becomes the message ordering key, which plays the role Kafka
// partition keys play: per-receiver order is preserved downstream.
type PubSubPublisher struct {
	client *pubsub.Client
	logger zerolog.Logger

	mu     sync.Mutex
	topics map[string]*pubsub.Publisher
}

// NewPubSubPublisher creates a publisher over an existing Pub/Sub client. The
// caller owns the client's lifecycle.
func NewPubSubPublisher(client *pubsub.Client, logger zerolog.Logger) *PubSubPublisher {
	return &PubSubPublisher{
		client: client,
		logger: logger.With().Str("component", "pubsub-publisher").Logger(),
		topics: make(map[string]*pubsub.Publisher),
	}
}

func (p *PubSubPublisher) Publish(ctx context.Context, e notify.Event) error {
	payload, err := json.Marshal(e.Notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	topic := p.publisher(e.Topic)
	msg := &pubsub.Message{Data: payload}
	if e.Key != "" {
		msg.OrderingKey = e.Key
	}
	result := topic.Publish(ctx, msg)
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish notification to %s: %w", e.Topic, err)
	}
	return nil
}

// publisher returns a cached per-topic publisher so ordering state survives
// across publishes.
func (p *PubSubPublisher) publisher(topicID string) *pubsub.Publisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	topic, ok := p.topics[topicID]
	if !ok {
		topic = p.client.Publisher(topicID)
		topic.EnableMessageOrdering = true
		p.topics[topicID] = topic
	}
	return topic
}

// Close stops all per-topic publishers, flushing pending messages.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Publisher)
	return nil
}
