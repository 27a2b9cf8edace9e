package notify

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/rs/zerolog"
)

// Service shapes notification events and hands them to a Publisher. Publish
// failures are logged and never propagated: a broken push bus must not fail
// message storage or delivery.
type Service struct {
	pub          Publisher
	channel      Channel
	sampleTopic  string
	offlineTopic string
	logger       zerolog.Logger
}

// NewService creates a notification service. channel selects the downstream
// path for offline events (default SMS); empty topic names fall back to the
// package defaults.
func NewService(pub Publisher, channel Channel, sampleTopic, offlineTopic string, logger zerolog.Logger) *Service {
	if channel == "" {
		channel = ChannelSMS
	}
	if sampleTopic == "" {
		sampleTopic = SampleTopic
	}
	if offlineTopic == "" {
		offlineTopic = OfflineTopic
	}
	return &Service{
		pub:          pub,
		channel:      channel,
		sampleTopic:  sampleTopic,
		offlineTopic: offlineTopic,
		logger:       logger.With().Str("component", "notifier").Logger(),
	}
}

// SampleMessage publishes a legacy in-app notification on the sample topic.
// Sent whenever a chat request carries a sampleMessage, online or not.
func (s *Service) SampleMessage(ctx context.Context, receiverID, sampleMessage string) {
	e := Event{
		Topic: s.sampleTopic,
		Notification: Notification{
			CustomerID:     s.numericID(receiverID),
			NotificationID: s.numericID(receiverID) + time.Now().UnixMilli(),
			Channel:        ChannelInApp,
			Map:            map[string]string{mapKeySampleMessage: sampleMessage},
		},
	}
	s.publish(ctx, e, receiverID)
}

// OfflineMessage publishes the stored-message push event on the offline
// topic, keyed per receiver so downstream ordering holds per customer.
func (s *Service) OfflineMessage(ctx context.Context, receiverID, senderID, sampleMessage, messageID string, timestamp int64) {
	if messageID == "" {
		messageID = uuid.NewString()
	}
	m := map[string]string{
		mapKeySampleMessage: sampleMessage,
		mapKeyMessageID:     messageID,
	}
	if senderID != "" {
		m[mapKeySenderID] = senderID
	}
	e := Event{
		Topic: s.offlineTopic,
		Key:   OfflineKey(receiverID),
		Notification: Notification{
			CustomerID:     s.numericID(receiverID),
			NotificationID: offlineNotificationID,
			Channel:        s.channel,
			Map:            m,
		},
	}
	s.publish(ctx, e, receiverID)
}

// UndeliveredMessage publishes the envelope-derived variant used when a
// message is stored without a sample text: the map carries the sender's
// mobile and customer ID plus either the chat text or the generic file
// sentinel.
func (s *Service) UndeliveredMessage(ctx context.Context, receiverID string, env message.Envelope) {
	m := make(map[string]string)
	if env.SenderMobile != "" {
		m[mapKeySenderMobile] = env.SenderMobile
	}
	if env.SenderID != "" {
		m[mapKeySenderCustomerID] = env.SenderID
	}
	text := GenericFileMessage
	if env.IsChat() && env.ActualMessage != "" {
		text = env.ActualMessage
	}
	m[mapKeyMessage] = text

	e := Event{
		Topic: s.offlineTopic,
		Key:   OfflineKey(receiverID),
		Notification: Notification{
			CustomerID:     s.numericID(receiverID),
			NotificationID: undeliveredNotificationID,
			Channel:        ChannelInApp,
			Map:            m,
		},
	}
	s.publish(ctx, e, receiverID)
}

func (s *Service) publish(ctx context.Context, e Event, receiverID string) {
	if err := s.pub.Publish(ctx, e); err != nil {
		s.logger.Error().Err(err).
			Str("topic", e.Topic).
			Str("receiver_id", receiverID).
			Msg("Failed to publish notification")
		return
	}
	s.logger.Info().
		Str("topic", e.Topic).
		Str("key", e.Key).
		Int64("customer_id", e.Notification.CustomerID).
		Msg("Published notification")
}

// numericID converts a customer ID to the numeric form the downstream
// consumer expects. Non-numeric IDs fall back to zero; historical behavior
// kept deliberately.
func (s *Service) numericID(receiverID string) int64 {
	id, err := strconv.ParseInt(receiverID, 10, 64)
	if err != nil {
		s.logger.Warn().Str("receiver_id", receiverID).Msg("Receiver ID is not numeric, using 0")
		return 0
	}
	return id
}
