package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/illmade-knight/message-gateway/internal/auth"
	"github.com/illmade-knight/message-gateway/internal/server"
	"github.com/illmade-knight/message-gateway/pkg/message"
	"github.com/illmade-knight/message-gateway/pkg/offline"
	"github.com/illmade-knight/message-gateway/pkg/presence"
	"github.com/illmade-knight/message-gateway/pkg/profile"
	"github.com/illmade-knight/message-gateway/pkg/relay"
	"github.com/illmade-knight/message-gateway/pkg/route"
	"github.com/illmade-knight/message-gateway/pkg/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "rest-test-secret"

// emptyProfiles satisfies route.ProfileSource for paths that never enrich.
type emptyProfiles struct{}

func (emptyProfiles) GetOrLoad(context.Context, string) (profile.Profile, bool) {
	return profile.Profile{}, false
}

// noopNotifier satisfies route.Notifier.
type noopNotifier struct{}

func (noopNotifier) SampleMessage(context.Context, string, string)                      {}
func (noopNotifier) OfflineMessage(context.Context, string, string, string, string, int64) {}
func (noopNotifier) UndeliveredMessage(context.Context, string, message.Envelope)       {}

type restFixture struct {
	server    *httptest.Server
	sessions  *session.Registry
	directory *presence.InMemoryDirectory
	store     *offline.InMemoryStore
}

func newRestFixture(t *testing.T) *restFixture {
	t.Helper()
	f := &restFixture{
		sessions:  session.NewRegistry(zerolog.Nop()),
		directory: presence.NewInMemoryDirectory(),
		store:     offline.NewInMemoryStore(),
	}
	router := route.NewRouter(
		"p1", f.sessions, f.directory, relay.NewInMemoryBus(), f.store,
		noopNotifier{}, emptyProfiles{}, route.Flags{}, zerolog.Nop(),
	)
	verifier := auth.NewTokenVerifier(testSecret)
	rest := server.NewRestHandlers(verifier, f.directory, f.store, router, zerolog.Nop())

	mux := http.NewServeMux()
	rest.Register(mux)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func bearerToken(t *testing.T, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func doRequest(t *testing.T, method, url, token string, body []byte) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestUserStatus(t *testing.T) {
	f := newRestFixture(t)
	require.NoError(t, f.directory.Register(context.Background(), "42", "p2"))

	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/v1/websocket/user-status/42", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["online"])
	assert.Equal(t, "p2", body["pod"])

	resp, body = doRequest(t, http.MethodGet, f.server.URL+"/v1/websocket/user-status/99", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["online"])
}

func TestFetchUndelivered_AtMostOnce(t *testing.T) {
	f := newRestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Store(ctx, "2", message.Envelope{MessageID: "m1", ActualMessage: "hi", Timestamp: 1000}))
	token := bearerToken(t, "2")

	// First fetch returns the message and deletes it.
	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/v1/messages/undelivered", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["totalCount"])
	assert.Equal(t, true, body["hasMessages"])
	messages, ok := body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)

	// Second fetch is empty.
	resp, body = doRequest(t, http.MethodGet, f.server.URL+"/v1/messages/undelivered", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(0), body["totalCount"])
	assert.Equal(t, false, body["hasMessages"])
}

func TestCheckAndDeleteUndelivered(t *testing.T) {
	f := newRestFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.Store(ctx, "2", message.Envelope{MessageID: "m1"}))
	require.NoError(t, f.store.Store(ctx, "2", message.Envelope{MessageID: "m2"}))
	token := bearerToken(t, "2")

	resp, body := doRequest(t, http.MethodGet, f.server.URL+"/v1/messages/undelivered/check", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["hasMessages"])
	assert.Equal(t, "2", body["receiverId"])

	// Selective delete removes one message.
	resp, _ = doRequest(t, http.MethodDelete, f.server.URL+"/v1/messages/undelivered/m1", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	envelopes, err := f.store.Fetch(ctx, "2")
	require.NoError(t, err)
	require.Len(t, envelopes, 1)
	assert.Equal(t, "m2", envelopes[0].MessageID)

	// Bulk delete clears the rest.
	resp, _ = doRequest(t, http.MethodDelete, f.server.URL+"/v1/messages/undelivered", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	has, err := f.store.Has(ctx, "2")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSendMessage(t *testing.T) {
	f := newRestFixture(t)
	token := bearerToken(t, "1")

	t.Run("offline target returns 404", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]string{"targetUserId": "2", "message": "hi"})
		resp, _ := doRequest(t, http.MethodPost, f.server.URL+"/v1/websocket/send-message", token, payload)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("local target is delivered", func(t *testing.T) {
		conn := newMockConn()
		f.sessions.Register("2", conn)
		payload, _ := json.Marshal(map[string]string{"targetUserId": "2", "message": "hi"})
		resp, body := doRequest(t, http.MethodPost, f.server.URL+"/v1/websocket/send-message", token, payload)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "sent", body["status"])
		require.Len(t, conn.written(), 1)
		assert.Equal(t, "hi", string(conn.written()[0]))
	})

	t.Run("missing target is rejected", func(t *testing.T) {
		payload, _ := json.Marshal(map[string]string{"message": "hi"})
		resp, _ := doRequest(t, http.MethodPost, f.server.URL+"/v1/websocket/send-message", token, payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthenticationRequired(t *testing.T) {
	f := newRestFixture(t)

	endpoints := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/v1/websocket/send-message"},
		{http.MethodGet, "/v1/messages/undelivered"},
		{http.MethodDelete, "/v1/messages/undelivered"},
		{http.MethodGet, "/v1/messages/undelivered/check"},
		{http.MethodDelete, "/v1/messages/undelivered/m1"},
	}
	for _, e := range endpoints {
		t.Run(e.method+" "+e.path, func(t *testing.T) {
			resp, _ := doRequest(t, e.method, f.server.URL+e.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}
