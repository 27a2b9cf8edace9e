// Package message defines the wire types carried between the gateway and its
// clients: the inbound chat request and the outbound message envelope.
package message

import (
	"encoding/json"
	"strings"
)

// Message type discriminators carried in the outbound envelope.
const (
	TypeChat             = "chat"
	TypeFileNotification = "FILE_UPLOAD_NOTIFICATION"
)

// Request is the inbound chat payload a client writes on its socket (or posts
// to the out-of-band send endpoint).
type Request struct {
	SenderID      string            `json:"senderId"`
	ReceiverID    string            `json:"receiverId"`
	MessageID     string            `json:"messageId"`
	ActualMessage string            `json:"actualMessage"`
	SampleMessage string            `json:"sampleMessage"`
	Files         map[string]string `json:"files"`
	Timestamp     int64             `json:"timestamp"`
}

// HasContent reports whether the request carries anything deliverable: either
// message text or at least one file. Requests with neither are rejected.
func (r Request) HasContent() bool {
	return strings.TrimSpace(r.ActualMessage) != "" || len(r.Files) > 0
}

// Envelope is the outbound JSON object handed to a client socket. Undelivered
// messages are stored in exactly this form so that offline retrieval is
// indistinguishable from a live socket push.
type Envelope struct {
	Delivered         bool              `json:"delivered"`
	DeliveryTimestamp int64             `json:"deliveryTimestamp,omitempty"`
	ReadTimestamp     int64             `json:"readTimestamp,omitempty"`
	Read              bool              `json:"read"`
	SenderID          string            `json:"senderId,omitempty"`
	SenderMobile      string            `json:"senderMobile,omitempty"`
	SenderName        string            `json:"senderName,omitempty"`
	ReceiverID        string            `json:"receiverId,omitempty"`
	MessageID         string            `json:"messageId,omitempty"`
	ActualMessage     string            `json:"actualMessage,omitempty"`
	Files             map[string]string `json:"files,omitempty"`
	Timestamp         int64             `json:"timestamp,omitempty"`
	MessageType       string            `json:"messageType,omitempty"`
}

// IsChat reports whether the envelope is a plain text message. Envelopes with
// no explicit type are treated as chat when they carry text.
func (e Envelope) IsChat() bool {
	if e.MessageType == "" {
		return e.ActualMessage != ""
	}
	return strings.EqualFold(e.MessageType, TypeChat)
}

// Encode serializes the envelope for a socket write or a store field.
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses a serialized envelope.
func Decode(data []byte) (Envelope, error) {
	var e Envelope
	err := json.Unmarshal(data, &e)
	return e, err
}
