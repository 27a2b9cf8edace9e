// Package session tracks the open client sockets attached to this pod.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Conn is the transport handle for one client socket. The concrete adapter
// (a websocket connection) must serialize its own writes.
type Conn interface {
	// WriteText writes a single text frame.
	WriteText(ctx context.Context, payload []byte) error
	// Close closes the transport with the given close code and reason.
	Close(code int, reason string) error
	// IsOpen reports whether the transport can still accept writes.
	IsOpen() bool
}

// Session binds a user to the socket they are connected on.
type Session struct {
	UserID   string
	Conn     Conn
	OpenedAt time.Time
}

// Registry is the per-pod session table: at most one session per user. A
// second handshake for the same user replaces (and closes) the older session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   zerolog.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		logger:   logger.With().Str("component", "session-registry").Logger(),
	}
}

// Register inserts a session for the user, replacing any existing one. The
// replaced socket is closed so the client reconnect wins.
func (r *Registry) Register(userID string, conn Conn) *Session {
	if userID == "" || conn == nil {
		return nil
	}
	s := &Session{UserID: userID, Conn: conn, OpenedAt: time.Now()}

	r.mu.Lock()
	old := r.sessions[userID]
	r.sessions[userID] = s
	r.mu.Unlock()

	if old != nil {
		_ = old.Conn.Close(1000, "replaced by newer connection")
		r.logger.Info().Str("user_id", userID).Msg("Replaced existing session")
	} else {
		r.logger.Info().Str("user_id", userID).Msg("Registered session")
	}
	return s
}

// Unregister removes the user's session if present.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	delete(r.sessions, userID)
	r.mu.Unlock()
	r.logger.Info().Str("user_id", userID).Msg("Unregistered session")
}

// RemoveByConn removes the session owning the given transport and returns the
// user it belonged to. Linear scan; used only on disconnect.
func (r *Registry) RemoveByConn(conn Conn) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, s := range r.sessions {
		if s.Conn == conn {
			delete(r.sessions, userID)
			return userID, true
		}
	}
	return "", false
}

// Get returns the user's session on this pod, if any.
func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// IsOnline reports whether the user has a session on this pod.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Get(userID)
	return ok
}

// Users returns a snapshot of the connected user IDs, for the presence
// refresh sweep.
func (r *Registry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		users = append(users, userID)
	}
	return users
}

// Len returns the number of open sessions on this pod.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
