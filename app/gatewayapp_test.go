package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/illmade-knight/message-gateway/app"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/illmade-knight/message-gateway/pkg/relay"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockConn implements session.Conn and records written frames.
type mockConn struct {
	mu     sync.Mutex
	writes [][]byte
}

func (c *mockConn) WriteText(_ context.Context, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, payload)
	return nil
}

func (c *mockConn) Close(int, string) error { return nil }
func (c *mockConn) IsOpen() bool            { return true }

func (c *mockConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

// staticProfiles serves the same profile for every user.
type staticProfiles struct{}

func (staticProfiles) GetOrLoad(_ context.Context, rawID string) (profile.Profile, bool) {
	return profile.Profile{Mobile: "+1555" + rawID, FirstName: "User", LastName: rawID}, true
}

// noopNotifier satisfies route.Notifier.
type noopNotifier struct{}

func (noopNotifier) SampleMessage(context.Context, string, string)                         {}
func (noopNotifier) OfflineMessage(context.Context, string, string, string, string, int64) {}
func (noopNotifier) UndeliveredMessage(context.Context, string, message.Envelope)          {}

// newPod builds one pod over shared infrastructure, mirroring how several
// gateway instances share one Redis.
func newPod(name string, directory presence.Directory, bus relay.Bus, store offline.Store) *app.App {
	return app.New(
		name, directory, bus, store,
		noopNotifier{}, staticProfiles{},
		route.Flags{OfflineMessaging: true, OfflineStorage: true, OfflineNotifications: true},
		time.Minute, time.Hour, zerolog.Nop(),
	)
}

func TestApp_CrossPodDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := presence.NewInMemoryDirectory()
	bus := relay.NewInMemoryBus()
	store := offline.NewInMemoryStore()

	pod1 := newPod("p1", directory, bus, store)
	pod2 := newPod("p2", directory, bus, store)
	go func() { _ = pod1.ConsumeRelay(ctx) }()
	go func() { _ = pod2.ConsumeRelay(ctx) }()
	time.Sleep(20 * time.Millisecond)

	// Sender on pod 1, receiver on pod 2.
	sender := &mockConn{}
	receiver := &mockConn{}
	pod1.Sessions.Register("1", sender)
	require.NoError(t, directory.Register(ctx, "1", "p1"))
	pod2.Sessions.Register("2", receiver)
	require.NoError(t, directory.Register(ctx, "2", "p2"))

	result := pod1.Router.Route(ctx, message.Request{
		SenderID: "1", ReceiverID: "2", MessageID: "m1", ActualMessage: "hi", Timestamp: 1000,
	})
	assert.Equal(t, route.ResultQueued, result)

	assert.Eventually(t, func() bool {
		return len(receiver.written()) == 1
	}, time.Second, 10*time.Millisecond)

	env, err := message.Decode(receiver.written()[0])
	require.NoError(t, err)
	assert.Equal(t, "m1", env.MessageID)
	assert.Equal(t, "hi", env.ActualMessage)

	// Nothing was stored: the receiver was present.
	has, err := store.Has(ctx, "2")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestApp_OfflineReceiverIsStored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := presence.NewInMemoryDirectory()
	bus := relay.NewInMemoryBus()
	store := offline.NewInMemoryStore()

	pod1 := newPod("p1", directory, bus, store)
	go func() { _ = pod1.ConsumeRelay(ctx) }()
	time.Sleep(20 * time.Millisecond)

	result := pod1.Router.Route(ctx, message.Request{
		SenderID: "1", ReceiverID: "2", MessageID: "m1", ActualMessage: "hi",
	})
	assert.Equal(t, route.ResultQueued, result)

	envelopes, err := store.Fetch(ctx, "2")
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "m1", envelopes[0].MessageID)
}

func TestApp_CrossPodCallSignaling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	directory := presence.NewInMemoryDirectory()
	bus := relay.NewInMemoryBus()
	store := offline.NewInMemoryStore()

	pod1 := newPod("p1", directory, bus, store)
	pod2 := newPod("p2", directory, bus, store)
	go func() { _ = pod1.ConsumeRelay(ctx) }()
	go func() { _ = pod2.ConsumeRelay(ctx) }()
	time.Sleep(20 * time.Millisecond)

	callee := &mockConn{}
	pod2.Sessions.Register("2", callee)
	require.NoError(t, directory.Register(ctx, "2", "p2"))

	// The offer arrives as a frame on pod 1 and reaches the callee on pod 2.
	pod1.Dispatcher.Dispatch(ctx, []byte(`{"signal":"CALL_OFFER","from":"1","to":"2","sessionId":"s1","callType":"audio"}`))

	assert.Eventually(t, func() bool {
		return len(callee.written()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, string(callee.written()[0]), `"signal":"CALL_OFFER"`)
}
