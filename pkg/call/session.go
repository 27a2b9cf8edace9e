// Package call implements the WebRTC call-signaling state machine with
// ICE-candidate buffering until both sides of the handshake have been
// delivered.
package call

import (
	"sort"
	"sync"
)

// State is the lifecycle position of a call session.
type State string

const (
	StateOffered       State = "OFFERED"
	StateRinging       State = "RINGING"
	StateAnswered      State = "ANSWERED"
	StateConnected     State = "CONNECTED"
	StateRenegotiating State = "RENEGOTIATING"
	StateRejected      State = "REJECTED"
	StateEnded         State = "ENDED"
	StateBusy          State = "BUSY"
	StateTimeout       State = "TIMEOUT"
)

// Terminal reports whether the state schedules the session for removal.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateEnded, StateBusy, StateTimeout:
		return true
	}
	return false
}

// Session is one tracked call, keyed by its session ID. Mutation happens
// under the session's own lock; the design assumes one logical caller per
// session at a time.
type Session struct {
	ID          string
	CallType    string
	InitiatedBy string

	mu           sync.Mutex
	state        State
	participants map[string]struct{}
}

func newSession(id, callType, from, to string) *Session {
	s := &Session{
		ID:           id,
		CallType:     callType,
		InitiatedBy:  from,
		state:        StateOffered,
		participants: make(map[string]struct{}),
	}
	s.participants[from] = struct{}{}
	s.participants[to] = struct{}{}
	return s
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// AddParticipant inserts a user into the call roster.
func (s *Session) AddParticipant(userID string) {
	s.mu.Lock()
	s.participants[userID] = struct{}{}
	s.mu.Unlock()
}

// RemoveParticipant drops a user from the call roster.
func (s *Session) RemoveParticipant(userID string) {
	s.mu.Lock()
	delete(s.participants, userID)
	s.mu.Unlock()
}

// Participants returns the roster in stable sorted order.
func (s *Session) Participants() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.participants))
	for p := range s.participants {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
