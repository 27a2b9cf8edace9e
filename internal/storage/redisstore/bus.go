package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/illmade-knight/message-gateway/pkg/relay"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RelayBus carries cross-pod payloads over one shared Redis pub/sub channel.
// Every pod publishes and subscribes on the same channel; pods not holding
// the target's socket drop the payload.
type RelayBus struct {
	client  *redis.Client
	channel string
	logger  zerolog.Logger
}

// NewRelayBus creates a bus on the given channel name; empty uses the shared
// default.
func NewRelayBus(client *redis.Client, channel string, logger zerolog.Logger) *RelayBus {
	if channel == "" {
		channel = relay.DefaultChannel
	}
	return &RelayBus{
		client:  client,
		channel: channel,
		logger:  logger.With().Str("component", "relay-bus").Str("channel", channel).Logger(),
	}
}

func (b *RelayBus) Publish(ctx context.Context, p relay.Payload) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode relay payload: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish relay payload: %w", err)
	}
	return nil
}

// Subscribe consumes the shared channel until ctx is done. Undecodable
// payloads are logged and skipped.
func (b *RelayBus) Subscribe(ctx context.Context, h relay.Handler) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer func() {
		_ = sub.Close()
	}()

	// Confirm the subscription before consuming so a broken connection
	// surfaces immediately.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to relay channel: %w", err)
	}
	b.logger.Info().Msg("Subscribed to relay channel")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay subscription channel closed")
			}
			var p relay.Payload
			if err := json.Unmarshal([]byte(msg.Payload), &p); err != nil {
				b.logger.Error().Err(err).Msg("Skipping undecodable relay payload")
				continue
			}
			h(ctx, p)
		}
	}
}
