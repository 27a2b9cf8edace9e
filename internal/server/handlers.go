package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/illmade-knight/message-gateway/internal/auth"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/rs/zerolog"
)

// RestHandlers serves the thin HTTP surface over the core: presence checks,
// out-of-band sends, and undelivered message retrieval.
type RestHandlers struct {
	verifier  Verifier
	directory presence.Directory
	store     offline.Store
	router    *route.Router
	logger    zerolog.Logger
}

// NewRestHandlers creates the REST handler set.
func NewRestHandlers(
	verifier Verifier,
	directory presence.Directory,
	store offline.Store,
	router *route.Router,
	logger zerolog.Logger,
) *RestHandlers {
	return &RestHandlers{
		verifier:  verifier,
		directory: directory,
		store:     store,
		router:    router,
		logger:    logger.With().Str("component", "rest").Logger(),
	}
}

// Register attaches all REST routes to the mux.
func (h *RestHandlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/websocket/user-status/{userId}", h.userStatus)
	mux.HandleFunc("POST /v1/websocket/send-message", h.sendMessage)
	mux.HandleFunc("GET /v1/messages/undelivered", h.fetchUndelivered)
	mux.HandleFunc("DELETE /v1/messages/undelivered", h.deleteUndelivered)
	mux.HandleFunc("GET /v1/messages/undelivered/check", h.checkUndelivered)
	mux.HandleFunc("DELETE /v1/messages/undelivered/{messageId}", h.deleteOneUndelivered)
}

// userStatus reports whether a user is connected anywhere, and to which pod.
func (h *RestHandlers) userStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	pod, err := h.directory.Lookup(r.Context(), userID)
	if err != nil && !errors.Is(err, presence.ErrNotRegistered) {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("Presence lookup failed")
		writeError(w, http.StatusInternalServerError, "presence lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"online": err == nil,
		"pod":    pod,
	})
}

type sendMessageRequest struct {
	TargetUserID string `json:"targetUserId"`
	Message      string `json:"message"`
}

// sendMessage delivers a pre-formed body to an online user. An offline
// target is the caller's problem here, reported as 404.
func (h *RestHandlers) sendMessage(w http.ResponseWriter, r *http.Request) {
	fromID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TargetUserID == "" {
		writeError(w, http.StatusBadRequest, "targetUserId and message are required")
		return
	}

	err := h.router.Deliver(r.Context(), fromID, req.TargetUserID, []byte(req.Message))
	switch {
	case errors.Is(err, route.ErrReceiverOffline):
		writeError(w, http.StatusNotFound, "target user is offline")
	case err != nil:
		h.logger.Error().Err(err).Str("target_user_id", req.TargetUserID).Msg("Out-of-band delivery failed")
		writeError(w, http.StatusConflict, "delivery failed")
	default:
		writeJSON(w, http.StatusOK, map[string]any{"status": "sent", "targetUserId": req.TargetUserID})
	}
}

// fetchUndelivered returns all stored messages for the caller and deletes
// them immediately, giving at-most-once retrieval.
func (h *RestHandlers) fetchUndelivered(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := h.authenticate(w, r)
	if !ok {
		return
	}

	envelopes, err := h.store.Fetch(r.Context(), receiverID)
	if err != nil {
		h.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("Failed to fetch undelivered messages")
		writeError(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if len(envelopes) > 0 {
		if err := h.store.DeleteAll(r.Context(), receiverID); err != nil {
			h.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("Failed to delete fetched messages")
			writeError(w, http.StatusInternalServerError, "failed to acknowledge messages")
			return
		}
	}
	if envelopes == nil {
		envelopes = []message.Envelope{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":    envelopes,
		"totalCount":  len(envelopes),
		"hasMessages": len(envelopes) > 0,
	})
}

func (h *RestHandlers) deleteUndelivered(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	if err := h.store.DeleteAll(r.Context(), receiverID); err != nil {
		h.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("Failed to delete undelivered messages")
		writeError(w, http.StatusInternalServerError, "failed to delete messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (h *RestHandlers) checkUndelivered(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	has, err := h.store.Has(r.Context(), receiverID)
	if err != nil {
		h.logger.Error().Err(err).Str("receiver_id", receiverID).Msg("Failed to check undelivered messages")
		writeError(w, http.StatusInternalServerError, "failed to check messages")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"hasMessages": has,
		"receiverId":  receiverID,
	})
}

func (h *RestHandlers) deleteOneUndelivered(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := h.authenticate(w, r)
	if !ok {
		return
	}
	messageID := r.PathValue("messageId")
	if err := h.store.DeleteOne(r.Context(), receiverID, messageID); err != nil {
		h.logger.Error().Err(err).
			Str("receiver_id", receiverID).
			Str("message_id", messageID).
			Msg("Failed to delete undelivered message")
		writeError(w, http.StatusInternalServerError, "failed to delete message")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "messageId": messageID})
}

// authenticate extracts and verifies the bearer token, writing a 401 on
// failure.
func (h *RestHandlers) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := auth.FromAuthorizationHeader(r.Header.Get("Authorization"))
	userID, err := h.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or missing token")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
