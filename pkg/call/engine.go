package call

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/rs/zerolog"
)

// Forwarder is the outbound sink: it delivers a serialized payload to a user,
// locally or over the cross-pod relay. Both the engine and the delivery
// router depend on this abstraction rather than on each other.
type Forwarder interface {
	Forward(ctx context.Context, from, to string, payload []byte) error
}

// ProfileSource enriches outbound signals with the sender's display details.
type ProfileSource interface {
	GetOrLoad(ctx context.Context, rawID string) (profile.Profile, bool)
}

// iceBuffer holds candidates for one call until both offer and answer have
// been delivered, then releases them in arrival order.
type iceBuffer struct {
	offerDelivered  bool
	answerDelivered bool
	queued          []bufferedCandidate
}

// bufferedCandidate keeps only the originator: the flush re-targets every
// buffered candidate at whoever the answer names.
type bufferedCandidate struct {
	from    string
	payload []byte
}

// Engine drives the per-call state machine. Signals for unknown sessions are
// dropped with a warning, except CALL_OFFER which creates the session.
type Engine struct {
	registry *Registry
	profiles ProfileSource
	sink     Forwarder

	mu      sync.Mutex
	buffers map[string]*iceBuffer

	logger zerolog.Logger
}

// NewEngine creates a signaling engine over the given registry and sink.
// Session removal, scheduled or direct, also discards the session's ICE
// buffer so late candidates cannot resurrect it.
func NewEngine(registry *Registry, profiles ProfileSource, sink Forwarder, logger zerolog.Logger) *Engine {
	e := &Engine{
		registry: registry,
		profiles: profiles,
		sink:     sink,
		buffers:  make(map[string]*iceBuffer),
		logger:   logger.With().Str("component", "call-engine").Logger(),
	}
	registry.OnRemove(e.dropBuffer)
	return e
}

// HandleSignal applies one inbound signal to the state machine and forwards
// the resulting envelope to the peer.
func (e *Engine) HandleSignal(ctx context.Context, sig Signal) {
	if sig.SessionID == "" {
		e.logger.Warn().Str("signal", sig.Signal).Msg("Signal missing sessionId, dropping")
		return
	}
	logger := e.logger.With().
		Str("signal", sig.Signal).
		Str("session_id", sig.SessionID).
		Str("from", sig.From).
		Str("to", sig.To).
		Logger()
	logger.Info().Msg("Received signal")

	out := Outbound{
		Signal:    sig.Signal,
		From:      sig.From,
		To:        sig.To,
		SessionID: sig.SessionID,
		CallType:  sig.CallType,
		Payload:   sig.Payload,
	}
	if sig.From != "" {
		if p, ok := e.profiles.GetOrLoad(ctx, sig.From); ok {
			out.SenderMobile = p.Mobile
			out.SenderName = p.DisplayName()
		}
	}

	session, _ := e.registry.Get(sig.SessionID)

	switch sig.Signal {
	case SignalOffer:
		session = e.registry.Create(sig.SessionID, sig.CallType, sig.From, sig.To)
		e.buffer(sig.SessionID).offerDelivered = true

	case SignalRinging:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		session.setState(StateRinging)

	case SignalAnswer:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		session.setState(StateAnswered)
		e.forward(ctx, sig.From, sig.To, out, logger)
		e.flushCandidates(ctx, sig.SessionID, sig.To, logger)
		return

	case SignalConnected:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		session.setState(StateConnected)
		out.State = string(StateConnected)
		out.Participants = session.Participants()
		out.CallType = session.CallType

	case SignalRenegotiate:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		session.setState(StateRenegotiating)
		out.State = string(StateRenegotiating)
		out.Participants = session.Participants()
		out.CallType = session.CallType
		out.Renegotiate = true

	case SignalReject, SignalEnd, SignalBusy, SignalTimeout:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		state := terminalState(sig.Signal)
		session.setState(state)
		out.State = string(state)
		e.registry.MarkForCleanup(sig.SessionID)
		e.dropBuffer(sig.SessionID)

	case SignalParticipantAdd:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		if sig.NewParticipant == "" {
			logger.Warn().Msg("CALL_PARTICIPANT_ADD without newParticipant, dropping")
			return
		}
		session.AddParticipant(sig.NewParticipant)
		out.Participants = session.Participants()

	case SignalParticipantRemove:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		if sig.UserID == "" {
			logger.Warn().Msg("CALL_PARTICIPANT_REMOVE without userId, dropping")
			return
		}
		session.RemoveParticipant(sig.UserID)
		out.Participants = session.Participants()

	case SignalICECandidate:
		if !e.require(session, sig.SessionID, logger) {
			return
		}
		e.handleCandidate(ctx, sig, logger)
		return

	default:
		logger.Warn().Msg("Unrecognized signal, dropping")
		return
	}

	e.forward(ctx, sig.From, sig.To, out, logger)
}

// handleCandidate forwards a candidate immediately once both offer and
// answer are delivered, otherwise appends it to the session's buffer.
func (e *Engine) handleCandidate(ctx context.Context, sig Signal, logger zerolog.Logger) {
	candidate := Outbound{
		Signal:    SignalICECandidate,
		From:      sig.From,
		To:        sig.To,
		SessionID: sig.SessionID,
		Payload:   sig.Payload,
	}
	payload, err := json.Marshal(candidate)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode ICE candidate")
		return
	}

	e.mu.Lock()
	buf := e.bufferLocked(sig.SessionID)
	ready := buf.offerDelivered && buf.answerDelivered
	if !ready {
		buf.queued = append(buf.queued, bufferedCandidate{from: sig.From, payload: payload})
		e.mu.Unlock()
		logger.Debug().Msg("Buffered ICE candidate until handshake completes")
		return
	}
	e.mu.Unlock()

	if err := e.sink.Forward(ctx, sig.From, sig.To, payload); err != nil {
		logger.Error().Err(err).Msg("Failed to forward ICE candidate")
	}
}

// flushCandidates marks the answer delivered and releases any buffered
// candidates in arrival order.
func (e *Engine) flushCandidates(ctx context.Context, sessionID, answerTo string, logger zerolog.Logger) {
	e.mu.Lock()
	buf := e.bufferLocked(sessionID)
	buf.answerDelivered = true
	queued := buf.queued
	buf.queued = nil
	e.mu.Unlock()

	for _, c := range queued {
		if err := e.sink.Forward(ctx, c.from, answerTo, c.payload); err != nil {
			logger.Error().Err(err).Msg("Failed to flush buffered ICE candidate")
		}
	}
	if len(queued) > 0 {
		logger.Info().Int("count", len(queued)).Msg("Flushed buffered ICE candidates")
	}
}

func (e *Engine) forward(ctx context.Context, from, to string, out Outbound, logger zerolog.Logger) {
	payload, err := json.Marshal(out)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to encode signal envelope")
		return
	}
	if err := e.sink.Forward(ctx, from, to, payload); err != nil {
		logger.Error().Err(err).Msg("Failed to forward signal")
	}
}

func (e *Engine) require(s *Session, sessionID string, logger zerolog.Logger) bool {
	if s == nil {
		logger.Warn().Str("session_id", sessionID).Msg("Signal for unknown session, dropping")
		return false
	}
	return true
}

func (e *Engine) buffer(sessionID string) *iceBuffer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bufferLocked(sessionID)
}

// bufferLocked must be called with e.mu held.
func (e *Engine) bufferLocked(sessionID string) *iceBuffer {
	buf, ok := e.buffers[sessionID]
	if !ok {
		buf = &iceBuffer{}
		e.buffers[sessionID] = buf
	}
	return buf
}

func (e *Engine) dropBuffer(sessionID string) {
	e.mu.Lock()
	delete(e.buffers, sessionID)
	e.mu.Unlock()
}

func terminalState(signal string) State {
	switch signal {
	case SignalReject:
		return StateRejected
	case SignalEnd:
		return StateEnded
	case SignalBusy:
		return StateBusy
	default:
		return StateTimeout
	}
}
