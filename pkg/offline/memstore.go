package offline

import (
	"context"
	"sync"

	"github.com/illmade-knight/message-gateway/pkg/message"
)

type record struct {
	messageID string
	env       message.Envelope
}

// InMemoryStore keeps undelivered messages in process memory, preserving
// insertion order. Used by tests and single-pod development runs; it ignores
// the retention window.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string][]record
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]record)}
}

func (s *InMemoryStore) Store(_ context.Context, receiverID string, env message.Envelope) error {
	if receiverID == "" {
		return ErrMissingReceiver
	}
	if env.MessageID == "" {
		return ErrMissingMessageID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[receiverID]
	for i, r := range recs {
		if r.messageID == env.MessageID {
			recs[i].env = env
			return nil
		}
	}
	s.records[receiverID] = append(recs, record{messageID: env.MessageID, env: env})
	return nil
}

func (s *InMemoryStore) Fetch(_ context.Context, receiverID string) ([]message.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[receiverID]
	envs := make([]message.Envelope, 0, len(recs))
	for _, r := range recs {
		envs = append(envs, r.env)
	}
	return envs, nil
}

func (s *InMemoryStore) DeleteAll(_ context.Context, receiverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, receiverID)
	return nil
}

func (s *InMemoryStore) DeleteOne(_ context.Context, receiverID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[receiverID]
	for i, r := range recs {
		if r.messageID == messageID {
			s.records[receiverID] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *InMemoryStore) Has(_ context.Context, receiverID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[receiverID]) > 0, nil
}
