// Package notify publishes push-notification events to the downstream
// durable bus so the notification processor can reach offline users.
package notify

import "context"

// Channel selects the downstream delivery path for a notification.
type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelEmail Channel = "EMAIL"
	ChannelInApp Channel = "INAPP"
)

// Topic names. The sample topic is the legacy in-app/OTP path; the offline
// topic is keyed per receiver so all events for one receiver share a
// partition and keep their order downstream.
const (
	SampleTopic  = "sample-message-topic"
	OfflineTopic = "undelivered.notification.message"
)

// Fixed notification-kind identifiers understood by the downstream consumer.
const (
	offlineNotificationID     = 2001
	undeliveredNotificationID = 1
)

// GenericFileMessage is the sentinel text used in place of file content.
const GenericFileMessage = "Sent a file"

// Map keys understood by the notification consumer.
const (
	mapKeySampleMessage    = "sampleMessage"
	mapKeyMessageID        = "messageId"
	mapKeySenderID         = "senderId"
	mapKeySenderMobile     = "senderMobile"
	mapKeySenderCustomerID = "senderCustomerId"
	mapKeyMessage          = "message"
)

// OfflineKey builds the partition key for offline events.
func OfflineKey(receiverID string) string {
	return "undelivered:" + receiverID
}

// Notification is the bus payload consumed by the notification processor.
type Notification struct {
	CustomerID     int64             `json:"customerId"`
	NotificationID int64             `json:"notificationId"`
	Channel        Channel           `json:"channel"`
	Map            map[string]string `json:"map,omitempty"`
	Mobile         string            `json:"mobile,omitempty"`
	Email          string            `json:"email,omitempty"`
}

// Event is one publish: a notification bound for a topic, optionally with a
// partition key.
type Event struct {
	Topic        string
	Key          string
	Notification Notification
}

// Publisher sends events to the durable bus. Implementations must not block
// indefinitely; failures are surfaced as errors and swallowed by the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
