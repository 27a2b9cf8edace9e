package redisstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OfflineStore keeps each receiver's undelivered messages in one hash, one
// field per message ID. The retention TTL is re-applied on every store.
type OfflineStore struct {
	client    *redis.Client
	retention time.Duration
	logger    zerolog.Logger
}

// NewOfflineStore creates a store with the given retention window. retention
// <= 0 uses the default.
func NewOfflineStore(client *redis.Client, retention time.Duration, logger zerolog.Logger) *OfflineStore {
	if retention <= 0 {
		retention = offline.Retention(offline.DefaultRetentionDays)
	}
	return &OfflineStore{
		client:    client,
		retention: retention,
		logger:    logger.With().Str("component", "offline-store").Logger(),
	}
}

func (s *OfflineStore) Store(ctx context.Context, receiverID string, env message.Envelope) error {
	if receiverID == "" {
		return offline.ErrMissingReceiver
	}
	if env.MessageID == "" {
		return offline.ErrMissingMessageID
	}
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode envelope %s: %w", env.MessageID, err)
	}

	key := offline.Key(receiverID)
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, env.MessageID, payload)
	pipe.Expire(ctx, key, s.retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store undelivered message %s: %w", env.MessageID, err)
	}
	s.logger.Info().
		Str("receiver_id", receiverID).
		Str("message_id", env.MessageID).
		Msg("Stored undelivered message")
	return nil
}

// Fetch returns all stored envelopes. Redis hashes have no field order, so
// results are sorted by envelope timestamp ascending. Undecodable fields are
// skipped with a log line.
func (s *OfflineStore) Fetch(ctx context.Context, receiverID string) ([]message.Envelope, error) {
	fields, err := s.client.HGetAll(ctx, offline.Key(receiverID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch undelivered messages for %s: %w", receiverID, err)
	}

	envelopes := make([]message.Envelope, 0, len(fields))
	for messageID, raw := range fields {
		env, err := message.Decode([]byte(raw))
		if err != nil {
			s.logger.Error().Err(err).
				Str("receiver_id", receiverID).
				Str("message_id", messageID).
				Msg("Skipping undecodable stored message")
			continue
		}
		envelopes = append(envelopes, env)
	}
	sort.Slice(envelopes, func(i, j int) bool {
		return envelopes[i].Timestamp < envelopes[j].Timestamp
	})
	return envelopes, nil
}

func (s *OfflineStore) DeleteAll(ctx context.Context, receiverID string) error {
	if err := s.client.Del(ctx, offline.Key(receiverID)).Err(); err != nil {
		return fmt.Errorf("failed to delete undelivered messages for %s: %w", receiverID, err)
	}
	s.logger.Info().Str("receiver_id", receiverID).Msg("Deleted all undelivered messages")
	return nil
}

func (s *OfflineStore) DeleteOne(ctx context.Context, receiverID, messageID string) error {
	if err := s.client.HDel(ctx, offline.Key(receiverID), messageID).Err(); err != nil {
		return fmt.Errorf("failed to delete undelivered message %s: %w", messageID, err)
	}
	return nil
}

func (s *OfflineStore) Has(ctx context.Context, receiverID string) (bool, error) {
	n, err := s.client.HLen(ctx, offline.Key(receiverID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check undelivered messages for %s: %w", receiverID, err)
	}
	return n > 0, nil
}
