// Package presence is the shared user → pod directory consulted for
// cross-pod routing decisions.
package presence

import (
	"context"
	"errors"
	"sync"
)

// ErrNotRegistered is returned by Lookup when the user has no presence entry,
// which the router treats as "offline".
var ErrNotRegistered = errors.New("presence: user not registered")

// Key returns the shared-store key for a user's presence entry.
func Key(userID string) string {
	return "presence:" + userID
}

// Directory answers "is user U connected, and to which pod?". Entries persist
// until explicit unregister; at most one entry exists per user. All
// operations are best-effort: callers log failures and continue, a directory
// outage must never close client sockets.
type Directory interface {
	// Register sets the user's presence entry to the given pod.
	Register(ctx context.Context, userID, pod string) error
	// Unregister deletes the user's presence entry.
	Unregister(ctx context.Context, userID string) error
	// Lookup returns the pod holding the user's socket, or ErrNotRegistered.
	Lookup(ctx context.Context, userID string) (string, error)
	// Has reports whether a presence entry exists for the user.
	Has(ctx context.Context, userID string) (bool, error)
	// Refresh re-validates the user's entry. With persistent entries this is
	// a no-op but must remain safe to call from the periodic sweep.
	Refresh(ctx context.Context, userID string) error
}

// InMemoryDirectory is a process-local Directory for tests and single-pod
// runs. Multiple in-process pods can share one instance to exercise cross-pod
// routing without external infrastructure.
type InMemoryDirectory struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewInMemoryDirectory creates an empty directory.
func NewInMemoryDirectory() *InMemoryDirectory {
	return &InMemoryDirectory{entries: make(map[string]string)}
}

func (d *InMemoryDirectory) Register(_ context.Context, userID, pod string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[userID] = pod
	return nil
}

func (d *InMemoryDirectory) Unregister(_ context.Context, userID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.entries, userID)
	return nil
}

func (d *InMemoryDirectory) Lookup(_ context.Context, userID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	pod, ok := d.entries[userID]
	if !ok {
		return "", ErrNotRegistered
	}
	return pod, nil
}

func (d *InMemoryDirectory) Has(_ context.Context, userID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[userID]
	return ok, nil
}

func (d *InMemoryDirectory) Refresh(_ context.Context, _ string) error {
	return nil
}
