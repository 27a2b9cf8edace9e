// Package route decides how each outbound message reaches its receiver:
// straight onto a local socket, across the relay bus to another pod, or into
// the undelivered store with a downstream push notification.
package route

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/illmade-knight/message-gateway/pkg/relay"
	"github.com/illmade-knight/message-gateway/pkg/session"
	"github.com/rs/zerolog"
)

// Result is the routing outcome reported to callers.
type Result string

const (
	// ResultDelivered means the envelope was written to a local socket.
	ResultDelivered Result = "Delivered"
	// ResultQueued means the envelope was handed to the relay bus or the
	// undelivered store for later delivery.
	ResultQueued Result = "Queued"
	// ResultDropped means the message was discarded.
	ResultDropped Result = "Dropped"
)

// ErrReceiverOffline is returned by Deliver when the target has no presence
// entry anywhere. The out-of-band send contract treats offline as the
// caller's problem rather than storing on their behalf.
var ErrReceiverOffline = errors.New("route: receiver is offline")

// FilesAvailable is the notification marker carried in a file-ready envelope.
const FilesAvailable = "FILES_AVAILABLE"

// Flags enable the offline branches independently so storage and push
// notifications can be toggled without affecting each other.
type Flags struct {
	OfflineMessaging     bool
	OfflineStorage       bool
	OfflineNotifications bool
}

// Notifier publishes downstream push events. Implementations log their own
// failures; the router never sees them.
type Notifier interface {
	SampleMessage(ctx context.Context, receiverID, sampleMessage string)
	OfflineMessage(ctx context.Context, receiverID, senderID, sampleMessage, messageID string, timestamp int64)
	UndeliveredMessage(ctx context.Context, receiverID string, env message.Envelope)
}

// ProfileSource supplies sender enrichment for outbound envelopes.
type ProfileSource interface {
	GetOrLoad(ctx context.Context, rawID string) (profile.Profile, bool)
}

// FileNotice announces that uploaded files are ready for a receiver.
type FileNotice struct {
	SenderID   string
	ReceiverID string
	FolderName string
	FileCount  int
	TotalSize  int64
}

// Router implements the delivery decision for every outbound message and is
// the outbound sink the signaling engine forwards through.
type Router struct {
	pod       string
	sessions  *session.Registry
	directory presence.Directory
	bus       relay.Bus
	store     offline.Store
	notifier  Notifier
	profiles  ProfileSource
	flags     Flags
	logger    zerolog.Logger
}

// NewRouter wires the router over the pod's session table, the shared
// presence directory, the relay bus, and the offline store.
func NewRouter(
	pod string,
	sessions *session.Registry,
	directory presence.Directory,
	bus relay.Bus,
	store offline.Store,
	notifier Notifier,
	profiles ProfileSource,
	flags Flags,
	logger zerolog.Logger,
) *Router {
	return &Router{
		pod:       pod,
		sessions:  sessions,
		directory: directory,
		bus:       bus,
		store:     store,
		notifier:  notifier,
		profiles:  profiles,
		flags:     flags,
		logger:    logger.With().Str("component", "router").Str("pod", pod).Logger(),
	}
}

// Route handles one inbound chat request: enrich with the sender's profile,
// fire any sample notification, then deliver locally, relay cross-pod, or
// store offline.
func (r *Router) Route(ctx context.Context, req message.Request) Result {
	logger := r.logger.With().
		Str("sender_id", req.SenderID).
		Str("receiver_id", req.ReceiverID).
		Str("message_id", req.MessageID).
		Logger()

	prof, ok := r.profiles.GetOrLoad(ctx, req.SenderID)
	if !ok {
		logger.Warn().Msg("Sender profile unavailable, dropping message")
		return ResultDropped
	}

	if req.SampleMessage != "" {
		r.notifier.SampleMessage(ctx, req.ReceiverID, req.SampleMessage)
	}

	if !req.HasContent() {
		logger.Info().Msg("Request has no message text or files, nothing to deliver")
		return ResultDropped
	}

	env := r.buildEnvelope(req, prof)

	// Local socket first.
	if s, online := r.sessions.Get(req.ReceiverID); online && s.Conn.IsOpen() {
		env.Delivered = true
		env.DeliveryTimestamp = time.Now().UnixMilli()
		payload, err := env.Encode()
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode envelope")
			return ResultDropped
		}
		if err := s.Conn.WriteText(ctx, payload); err != nil {
			logger.Error().Err(err).Msg("Failed to write envelope to local socket")
			return ResultDropped
		}
		logger.Info().Msg("Delivered message locally")
		return ResultDelivered
	}

	payload, err := env.Encode()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode envelope")
		return ResultDropped
	}

	online, err := r.directory.Has(ctx, req.ReceiverID)
	if err != nil {
		logger.Error().Err(err).Msg("Presence lookup failed, treating receiver as offline")
		online = false
	}
	if online {
		p := relay.Payload{
			FromUserID:   req.SenderID,
			TargetUserID: req.ReceiverID,
			Message:      string(payload),
		}
		if err := r.bus.Publish(ctx, p); err != nil {
			logger.Error().Err(err).Msg("Failed to publish envelope to relay bus")
			return ResultDropped
		}
		logger.Info().Msg("Relayed message to receiver's pod")
		return ResultQueued
	}

	return r.handleOffline(ctx, req, env, logger)
}

// handleOffline stores and notifies for a receiver with no presence anywhere.
// Storage and notification are independently gated.
func (r *Router) handleOffline(ctx context.Context, req message.Request, env message.Envelope, logger zerolog.Logger) Result {
	if !r.flags.OfflineMessaging {
		logger.Info().Msg("Receiver offline and offline messaging disabled, dropping")
		return ResultDropped
	}

	if r.flags.OfflineStorage {
		if err := r.store.Store(ctx, req.ReceiverID, env); err != nil {
			logger.Error().Err(err).Msg("Failed to store undelivered message")
		} else {
			logger.Info().Msg("Stored message for offline receiver")
		}
	}

	if r.flags.OfflineNotifications {
		if req.SampleMessage != "" {
			r.notifier.OfflineMessage(ctx, req.ReceiverID, req.SenderID, req.SampleMessage, env.MessageID, env.Timestamp)
		} else {
			r.notifier.UndeliveredMessage(ctx, req.ReceiverID, env)
		}
	}

	return ResultQueued
}

// Deliver is the out-of-band send path: the caller supplies a pre-formed body
// and no profile enrichment happens. An offline receiver is an error here,
// not a store.
func (r *Router) Deliver(ctx context.Context, fromID, targetID string, body []byte) error {
	if s, online := r.sessions.Get(targetID); online && s.Conn.IsOpen() {
		if err := s.Conn.WriteText(ctx, body); err != nil {
			return fmt.Errorf("failed to write message to local socket: %w", err)
		}
		return nil
	}

	online, err := r.directory.Has(ctx, targetID)
	if err != nil {
		return fmt.Errorf("failed to look up presence for %s: %w", targetID, err)
	}
	if !online {
		return ErrReceiverOffline
	}

	p := relay.Payload{FromUserID: fromID, TargetUserID: targetID, Message: string(body)}
	if err := r.bus.Publish(ctx, p); err != nil {
		return fmt.Errorf("failed to publish message to relay bus: %w", err)
	}
	return nil
}

// DeliverLocal is the relay-consumer entry: write the payload to the target's
// socket if this pod holds it, otherwise drop silently.
func (r *Router) DeliverLocal(ctx context.Context, p relay.Payload) {
	s, online := r.sessions.Get(p.TargetUserID)
	if !online || !s.Conn.IsOpen() {
		r.logger.Debug().
			Str("target_user_id", p.TargetUserID).
			Msg("Relayed message target not on this pod")
		return
	}
	if err := s.Conn.WriteText(ctx, []byte(p.Message)); err != nil {
		r.logger.Error().Err(err).
			Str("target_user_id", p.TargetUserID).
			Msg("Failed to write relayed message")
		return
	}
	r.logger.Info().
		Str("from_user_id", p.FromUserID).
		Str("target_user_id", p.TargetUserID).
		Msg("Delivered relayed message")
}

// Forward sends a signaling payload to a user: local socket when this pod
// holds it, relay bus otherwise. Pods without the target's socket drop the
// relayed copy silently.
func (r *Router) Forward(ctx context.Context, from, to string, payload []byte) error {
	if s, online := r.sessions.Get(to); online && s.Conn.IsOpen() {
		if err := s.Conn.WriteText(ctx, payload); err != nil {
			return fmt.Errorf("failed to write signal to local socket: %w", err)
		}
		return nil
	}
	p := relay.Payload{FromUserID: from, TargetUserID: to, Message: string(payload)}
	if err := r.bus.Publish(ctx, p); err != nil {
		return fmt.Errorf("failed to publish signal to relay bus: %w", err)
	}
	return nil
}

// NotifyFiles pushes a file-ready envelope to the receiver's local socket.
// Offline receivers get nothing; they pick the files up on next login.
func (r *Router) NotifyFiles(ctx context.Context, n FileNotice) bool {
	s, online := r.sessions.Get(n.ReceiverID)
	if !online || !s.Conn.IsOpen() {
		r.logger.Info().
			Str("receiver_id", n.ReceiverID).
			Msg("Receiver not connected, skipping file notification")
		return false
	}

	env := message.Envelope{
		Delivered:         true,
		DeliveryTimestamp: time.Now().UnixMilli(),
		SenderID:          n.SenderID,
		ReceiverID:        n.ReceiverID,
		MessageID:         uuid.NewString(),
		Timestamp:         time.Now().UnixMilli(),
		MessageType:       message.TypeFileNotification,
		Files: map[string]string{
			"notification": FilesAvailable,
			"folderName":   n.FolderName,
			"fileCount":    strconv.Itoa(n.FileCount),
			"totalSize":    strconv.FormatInt(n.TotalSize, 10),
		},
	}
	if prof, ok := r.profiles.GetOrLoad(ctx, n.SenderID); ok {
		env.SenderMobile = prof.Mobile
		env.SenderName = prof.DisplayName()
	}

	payload, err := env.Encode()
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode file notification")
		return false
	}
	if err := s.Conn.WriteText(ctx, payload); err != nil {
		r.logger.Error().Err(err).
			Str("receiver_id", n.ReceiverID).
			Msg("Failed to write file notification")
		return false
	}
	r.logger.Info().
		Str("receiver_id", n.ReceiverID).
		Str("folder", n.FolderName).
		Int("file_count", n.FileCount).
		Msg("Sent file notification")
	return true
}

// buildEnvelope shapes the outbound envelope from the inbound request plus
// sender enrichment. A missing message ID is generated so the store key is
// always populated.
func (r *Router) buildEnvelope(req message.Request, prof profile.Profile) message.Envelope {
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	timestamp := req.Timestamp
	if timestamp == 0 {
		timestamp = time.Now().UnixMilli()
	}
	return message.Envelope{
		SenderID:      req.SenderID,
		SenderMobile:  prof.Mobile,
		SenderName:    prof.DisplayName(),
		ReceiverID:    req.ReceiverID,
		MessageID:     messageID,
		ActualMessage: req.ActualMessage,
		Files:         req.Files,
		Timestamp:     timestamp,
		MessageType:   message.TypeChat,
	}
}
