// Package redisstore provides the Redis-backed implementations of the shared
// presence directory, the undelivered message store, and the cross-pod relay
// bus.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// PresenceDirectory stores presence entries as plain keys with no TTL; an
// entry lives until the owning pod unregisters it.
type PresenceDirectory struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewPresenceDirectory creates a directory over the given Redis client.
func NewPresenceDirectory(client *redis.Client, logger zerolog.Logger) *PresenceDirectory {
	return &PresenceDirectory{
		client: client,
		logger: logger.With().Str("component", "presence-directory").Logger(),
	}
}

func (d *PresenceDirectory) Register(ctx context.Context, userID, pod string) error {
	if err := d.client.Set(ctx, presence.Key(userID), pod, 0).Err(); err != nil {
		return fmt.Errorf("failed to register presence for %s: %w", userID, err)
	}
	d.logger.Info().Str("user_id", userID).Str("pod", pod).Msg("Registered presence")
	return nil
}

func (d *PresenceDirectory) Unregister(ctx context.Context, userID string) error {
	if err := d.client.Del(ctx, presence.Key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to unregister presence for %s: %w", userID, err)
	}
	d.logger.Info().Str("user_id", userID).Msg("Unregistered presence")
	return nil
}

func (d *PresenceDirectory) Lookup(ctx context.Context, userID string) (string, error) {
	pod, err := d.client.Get(ctx, presence.Key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", presence.ErrNotRegistered
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up presence for %s: %w", userID, err)
	}
	return pod, nil
}

func (d *PresenceDirectory) Has(ctx context.Context, userID string) (bool, error) {
	n, err := d.client.Exists(ctx, presence.Key(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence for %s: %w", userID, err)
	}
	return n > 0, nil
}

// Refresh re-asserts the user's entry with its current pod value. Entries are
// persistent, so this only repairs a key lost to an external flush.
func (d *PresenceDirectory) Refresh(ctx context.Context, userID string) error {
	pod, err := d.Lookup(ctx, userID)
	if errors.Is(err, presence.ErrNotRegistered) {
		return nil
	}
	if err != nil {
		return err
	}
	return d.Register(ctx, userID, pod)
}
