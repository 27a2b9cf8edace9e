// Package offline is the durable per-receiver store for messages that could
// not be delivered to a live socket.
package offline

import (
	"context"
	"errors"
	"time"

	"github.com/illmade-knight/message-gateway/pkg/message"
)

// DefaultRetentionDays bounds how long undelivered messages are kept.
const DefaultRetentionDays = 30

var (
	// ErrMissingReceiver rejects stores with an empty receiver.
	ErrMissingReceiver = errors.New("offline: receiver is required")
	// ErrMissingMessageID rejects stores with an unpopulated message ID.
	ErrMissingMessageID = errors.New("offline: message ID is required")
)

// Key returns the store key for a receiver's undelivered hash.
func Key(receiverID string) string {
	return "undelivered:" + receiverID
}

// Store holds undelivered envelopes per receiver, one field per message ID.
// The retention TTL is re-applied on every store so activity refreshes the
// window. Retrieval is at-most-once: the fetch endpoint deletes immediately
// after a successful fetch.
type Store interface {
	// Store persists the envelope under the receiver's hash.
	Store(ctx context.Context, receiverID string, env message.Envelope) error
	// Fetch returns all stored envelopes in insertion order. Implementations
	// that cannot preserve insertion order sort by envelope timestamp
	// ascending. A single undecodable record is skipped, not fatal.
	Fetch(ctx context.Context, receiverID string) ([]message.Envelope, error)
	// DeleteAll removes every stored message for the receiver.
	DeleteAll(ctx context.Context, receiverID string) error
	// DeleteOne removes a single message by ID.
	DeleteOne(ctx context.Context, receiverID, messageID string) error
	// Has reports whether any messages are stored for the receiver.
	Has(ctx context.Context, receiverID string) (bool, error)
}

// Retention converts a configured day count into the TTL applied on store.
func Retention(days int) time.Duration {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}
