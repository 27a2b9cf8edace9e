package route

import (
	"context"
	"encoding/json"

	"github.com/illmade-knight/message-gateway/pkg/call"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/rs/zerolog"
)

// SignalHandler consumes one parsed call signal.
type SignalHandler interface {
	HandleSignal(ctx context.Context, sig call.Signal)
}

// ChatRouter consumes one parsed chat request.
type ChatRouter interface {
	Route(ctx context.Context, req message.Request) Result
}

// Dispatcher parses inbound text frames and hands them to the signaling
// engine or the delivery router. Malformed frames are logged and dropped
// without closing the socket.
type Dispatcher struct {
	signals SignalHandler
	chats   ChatRouter
	logger  zerolog.Logger
}

// NewDispatcher creates a dispatcher over the two frame consumers.
func NewDispatcher(signals SignalHandler, chats ChatRouter, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		signals: signals,
		chats:   chats,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
	}
}

// probe reads just the discriminator fields of a frame.
type probe struct {
	Signal string `json:"signal"`
}

// Dispatch routes one inbound frame. Frames with a recognized signal value go
// to the call engine; everything else is treated as a chat request.
func (d *Dispatcher) Dispatch(ctx context.Context, frame []byte) {
	var p probe
	if err := json.Unmarshal(frame, &p); err != nil {
		d.logger.Warn().Err(err).Msg("Unparseable frame, dropping")
		return
	}

	if p.Signal != "" {
		if !call.IsSignalName(p.Signal) {
			d.logger.Warn().Str("signal", p.Signal).Msg("Unknown signal name, dropping")
			return
		}
		var sig call.Signal
		if err := json.Unmarshal(frame, &sig); err != nil {
			d.logger.Warn().Err(err).Msg("Malformed signal frame, dropping")
			return
		}
		d.signals.HandleSignal(ctx, sig)
		return
	}

	var req message.Request
	if err := json.Unmarshal(frame, &req); err != nil {
		d.logger.Warn().Err(err).Msg("Malformed chat frame, dropping")
		return
	}
	if req.SenderID == "" || req.ReceiverID == "" {
		d.logger.Warn().
			Str("sender_id", req.SenderID).
			Str("receiver_id", req.ReceiverID).
			Msg("Chat frame missing sender or receiver, dropping")
		return
	}
	d.chats.Route(ctx, req)
}
