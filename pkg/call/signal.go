package call

import "encoding/json"

// Signal names the engine recognizes.
const (
	SignalOffer             = "CALL_OFFER"
	SignalRinging           = "CALL_RINGING"
	SignalAnswer            = "CALL_ANSWER"
	SignalConnected         = "CALL_CONNECTED"
	SignalRenegotiate       = "CALL_RENEGOTIATE"
	SignalReject            = "CALL_REJECT"
	SignalEnd               = "CALL_END"
	SignalBusy              = "CALL_BUSY"
	SignalTimeout           = "CALL_TIMEOUT"
	SignalParticipantAdd    = "CALL_PARTICIPANT_ADD"
	SignalParticipantRemove = "CALL_PARTICIPANT_REMOVE"
	SignalICECandidate      = "ICE_CANDIDATE"
)

var signalNames = map[string]struct{}{
	SignalOffer:             {},
	SignalRinging:           {},
	SignalAnswer:            {},
	SignalConnected:         {},
	SignalRenegotiate:       {},
	SignalReject:            {},
	SignalEnd:               {},
	SignalBusy:              {},
	SignalTimeout:           {},
	SignalParticipantAdd:    {},
	SignalParticipantRemove: {},
	SignalICECandidate:      {},
}

// IsSignalName reports whether the dispatcher should hand a frame with this
// signal value to the engine.
func IsSignalName(name string) bool {
	_, ok := signalNames[name]
	return ok
}

// Signal is one parsed inbound signaling frame.
type Signal struct {
	Signal         string          `json:"signal"`
	From           string          `json:"from"`
	To             string          `json:"to"`
	SessionID      string          `json:"sessionId"`
	CallType       string          `json:"callType"`
	Payload        json.RawMessage `json:"payload"`
	NewParticipant string          `json:"newParticipant"`
	UserID         string          `json:"userId"`
}

// Outbound is the signaling envelope forwarded to the peer. Optional fields
// are omitted so the wire shape mirrors the inbound frame plus enrichment.
type Outbound struct {
	Signal       string          `json:"signal"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	SessionID    string          `json:"sessionId,omitempty"`
	CallType     string          `json:"callType,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	SenderMobile string          `json:"senderMobile,omitempty"`
	SenderName   string          `json:"senderName,omitempty"`
	State        string          `json:"state,omitempty"`
	Participants []string        `json:"participants,omitempty"`
	Renegotiate  bool            `json:"renegotiate,omitempty"`
}
