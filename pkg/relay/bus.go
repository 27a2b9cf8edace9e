// Package relay carries serialized payloads between pods over a single
// shared pub/sub channel.
package relay

import (
	"context"
	"sync"
)

// DefaultChannel is the shared channel name all pods publish and subscribe on.
const DefaultChannel = "websocket:messages"

// Payload is the cross-pod delivery unit. Message may itself be a serialized
// envelope or a raw body; the consuming pod writes it to the target's socket
// verbatim.
type Payload struct {
	FromUserID   string `json:"fromUserId"`
	TargetUserID string `json:"targetUserId"`
	Message      string `json:"message"`
}

// Handler consumes one relayed payload on the subscribing pod.
type Handler func(ctx context.Context, p Payload)

// Bus is the cross-pod pub/sub channel. Every pod subscribes once; publishes
// fan out to all pods, and pods not holding the target's socket drop
// silently. The bus does not deduplicate.
type Bus interface {
	// Publish sends the payload to every subscriber, including this pod.
	Publish(ctx context.Context, p Payload) error
	// Subscribe delivers payloads to the handler until ctx is done.
	Subscribe(ctx context.Context, h Handler) error
}

// InMemoryBus is a process-local Bus. Several in-process pods sharing one
// instance see each other's publishes, which is exactly the shape needed for
// multi-pod tests.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewInMemoryBus creates a bus with no subscribers.
func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{}
}

func (b *InMemoryBus) Publish(ctx context.Context, p Payload) error {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, p)
	}
	return nil
}

func (b *InMemoryBus) Subscribe(ctx context.Context, h Handler) error {
	b.mu.Lock()
	b.handlers = append(b.handlers, h)
	b.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}
