package call

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCleanupDelay is how long a terminal session stays retrievable
// before the scheduled removal fires.
const DefaultCleanupDelay = 5 * time.Second

// Registry tracks live call sessions by session ID.
type Registry struct {
	mu           sync.RWMutex
	sessions     map[string]*Session
	cleanupDelay time.Duration
	onRemove     func(sessionID string)
	logger       zerolog.Logger
}

// NewRegistry creates a registry. delay <= 0 uses DefaultCleanupDelay.
func NewRegistry(delay time.Duration, logger zerolog.Logger) *Registry {
	if delay <= 0 {
		delay = DefaultCleanupDelay
	}
	return &Registry{
		sessions:     make(map[string]*Session),
		cleanupDelay: delay,
		logger:       logger.With().Str("component", "call-registry").Logger(),
	}
}

// Create inserts a new session for a CALL_OFFER, replacing any stale one
// under the same ID.
func (r *Registry) Create(sessionID, callType, from, to string) *Session {
	s := newSession(sessionID, callType, from, to)
	r.mu.Lock()
	r.sessions[sessionID] = s
	r.mu.Unlock()
	r.logger.Info().Str("session_id", sessionID).Str("call_type", callType).Msg("Call session created")
	return s
}

// Get returns the session, if tracked.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// OnRemove registers a hook run after a session is removed, whether directly
// or by the delayed cleanup.
func (r *Registry) OnRemove(hook func(sessionID string)) {
	r.mu.Lock()
	r.onRemove = hook
	r.mu.Unlock()
}

// Remove deletes the session immediately.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	hook := r.onRemove
	r.mu.Unlock()
	if hook != nil {
		hook(sessionID)
	}
	r.logger.Info().Str("session_id", sessionID).Msg("Call session removed")
}

// MarkForCleanup schedules removal after the cleanup delay. The timer is not
// cancelled by later signals: if the session was already removed when it
// fires, the removal is a no-op.
func (r *Registry) MarkForCleanup(sessionID string) {
	if _, ok := r.Get(sessionID); !ok {
		r.logger.Warn().Str("session_id", sessionID).Msg("Cleanup requested for unknown session")
		return
	}
	r.logger.Info().
		Str("session_id", sessionID).
		Dur("delay", r.cleanupDelay).
		Msg("Call session marked for cleanup")
	time.AfterFunc(r.cleanupDelay, func() {
		r.Remove(sessionID)
	})
}
