package route_test

import (
	"context"
	"testing"

	"github.com/illmade-knight/message-gateway/pkg/call"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingEngine captures signals handed to the call engine.
type recordingEngine struct {
	signals []call.Signal
}

func (e *recordingEngine) HandleSignal(_ context.Context, sig call.Signal) {
	e.signals = append(e.signals, sig)
}

// recordingRouter captures chat requests handed to the delivery router.
type recordingRouter struct {
	requests []message.Request
}

func (r *recordingRouter) Route(_ context.Context, req message.Request) route.Result {
	r.requests = append(r.requests, req)
	return route.ResultDelivered
}

func newDispatcher() (*route.Dispatcher, *recordingEngine, *recordingRouter) {
	engine := &recordingEngine{}
	router := &recordingRouter{}
	return route.NewDispatcher(engine, router, zerolog.Nop()), engine, router
}

func TestDispatcher_SignalFrame(t *testing.T) {
	dispatcher, engine, router := newDispatcher()

	frame := []byte(`{"signal":"CALL_OFFER","from":"a","to":"b","sessionId":"s1","callType":"video"}`)
	dispatcher.Dispatch(context.Background(), frame)

	require.Len(t, engine.signals, 1)
	sig := engine.signals[0]
	assert.Equal(t, call.SignalOffer, sig.Signal)
	assert.Equal(t, "a", sig.From)
	assert.Equal(t, "s1", sig.SessionID)
	assert.Empty(t, router.requests)
}

func TestDispatcher_ChatFrame(t *testing.T) {
	dispatcher, engine, router := newDispatcher()

	frame := []byte(`{"senderId":"1","receiverId":"2","messageId":"m1","actualMessage":"hi","timestamp":1000}`)
	dispatcher.Dispatch(context.Background(), frame)

	require.Len(t, router.requests, 1)
	req := router.requests[0]
	assert.Equal(t, "1", req.SenderID)
	assert.Equal(t, "hi", req.ActualMessage)
	assert.Empty(t, engine.signals)
}

func TestDispatcher_DropsBadFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
	}{
		{name: "unparseable JSON", frame: `{not json`},
		{name: "unknown signal name", frame: `{"signal":"CALL_WAVE","from":"a","to":"b","sessionId":"s1"}`},
		{name: "missing sender", frame: `{"receiverId":"2","actualMessage":"hi"}`},
		{name: "missing receiver", frame: `{"senderId":"1","actualMessage":"hi"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dispatcher, engine, router := newDispatcher()
			dispatcher.Dispatch(context.Background(), []byte(tc.frame))
			assert.Empty(t, engine.signals)
			assert.Empty(t, router.requests)
		})
	}
}
