package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/session"
	"github.com/rs/zerolog"
)

// Verifier checks a signed token and returns its subject.
type Verifier interface {
	Verify(token string) (string, error)
}

// FrameDispatcher consumes one inbound text frame.
type FrameDispatcher interface {
	Dispatch(ctx context.Context, frame []byte)
}

var pongFrame = []byte(`{"type":"pong"}`)

// WebSocketHandler owns the connection lifecycle: handshake authentication,
// session and presence registration, the read loop, and teardown. It never
// does message-routing work itself.
type WebSocketHandler struct {
	upgrader   websocket.Upgrader
	verifier   Verifier
	sessions   *session.Registry
	directory  presence.Directory
	dispatcher FrameDispatcher
	pod        string
	maxFrame   int64
	logger     zerolog.Logger
}

// NewWebSocketHandler creates the handler for the root websocket endpoint.
func NewWebSocketHandler(
	verifier Verifier,
	sessions *session.Registry,
	directory presence.Directory,
	dispatcher FrameDispatcher,
	pod string,
	maxFrame int64,
	logger zerolog.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		verifier:   verifier,
		sessions:   sessions,
		directory:  directory,
		dispatcher: dispatcher,
		pod:        pod,
		maxFrame:   maxFrame,
		logger:     logger.With().Str("component", "websocket").Logger(),
	}
}

// ServeHTTP upgrades the request and runs the connection to completion.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to upgrade connection")
		return
	}
	conn := NewWSConn(raw)

	userID, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Handshake token rejected")
		_ = conn.Close(websocket.CloseUnsupportedData, "authentication failed")
		return
	}

	logger := h.logger.With().Str("user_id", userID).Logger()
	h.sessions.Register(userID, conn)
	if err := h.directory.Register(r.Context(), userID, h.pod); err != nil {
		logger.Error().Err(err).Msg("Failed to register presence, continuing")
	}
	logger.Info().Msg("Client connected")

	h.readLoop(r.Context(), raw, conn, userID, logger)
}

// readLoop consumes frames until the connection dies, then tears the session
// and presence entry down.
func (h *WebSocketHandler) readLoop(ctx context.Context, raw *websocket.Conn, conn *WSConn, userID string, logger zerolog.Logger) {
	defer h.teardown(conn, logger)

	raw.SetReadLimit(h.maxFrame)
	for {
		messageType, frame, err := raw.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("Connection closed unexpectedly")
			} else {
				logger.Info().Msg("Client disconnected")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		if h.isPing(frame) {
			if err := conn.WriteText(ctx, pongFrame); err != nil {
				logger.Warn().Err(err).Msg("Failed to answer ping")
				return
			}
			if err := h.directory.Refresh(ctx, userID); err != nil {
				logger.Error().Err(err).Msg("Failed to refresh presence")
			}
			continue
		}

		h.dispatcher.Dispatch(ctx, frame)
	}
}

// isPing detects the application-level heartbeat frame, which is answered
// locally and never forwarded.
func (h *WebSocketHandler) isPing(frame []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(frame, &probe); err != nil {
		return false
	}
	return probe.Type == "ping"
}

func (h *WebSocketHandler) teardown(conn *WSConn, logger zerolog.Logger) {
	conn.markClosed()
	userID, ok := h.sessions.RemoveByConn(conn)
	if !ok {
		// Already replaced by a newer connection for the same user.
		return
	}
	if err := h.directory.Unregister(context.Background(), userID); err != nil {
		logger.Error().Err(err).Msg("Failed to unregister presence")
	}
	logger.Info().Msg("Session torn down")
}
