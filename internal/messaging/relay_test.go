package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sic_device_agent/internal/common"
	"sic_device_agent/internal/config"
	"sic_device_agent/internal/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRelay(cfg *config.Config) *Relay {
	if cfg == nil {
		cfg = &config.Config{PushListenAddr: "127.0.0.1:0"}
	}
	return NewRelay(cfg, logger.NewDefaultLogger())
}

func postPush(t *testing.T, relay *Relay, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/push", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	relay.router.ServeHTTP(w, req)
	return w
}

func TestRelay_DispatchesToBackgroundHandlerByDefault(t *testing.T) {
	relay := newTestRelay(nil)

	received := make(chan Message, 1)
	relay.OnBackgroundMessage(func(ctx context.Context, msg Message) {
		received <- msg
	})
	relay.OnMessage(func(ctx context.Context, msg Message) {
		t.Error("foreground handler must not fire while backgrounded")
	})

	w := postPush(t, relay, `{"messageId":"msg-1","notification":{"title":"Hi","body":"There"},"data":{"k":"v"}}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case msg := <-received:
		assert.Equal(t, "msg-1", msg.MessageID)
		require.NotNil(t, msg.Notification)
		assert.Equal(t, "Hi", msg.Notification.Title)
		assert.Equal(t, map[string]string{"k": "v"}, msg.Data)
	case <-time.After(2 * time.Second):
		t.Fatal("background handler was not invoked")
	}
}

func TestRelay_DispatchesToForegroundHandlerWhenForegrounded(t *testing.T) {
	relay := newTestRelay(nil)
	relay.SetForeground(true)

	received := make(chan Message, 1)
	relay.OnMessage(func(ctx context.Context, msg Message) {
		received <- msg
	})
	relay.OnBackgroundMessage(func(ctx context.Context, msg Message) {
		t.Error("background handler must not fire while foregrounded")
	})

	w := postPush(t, relay, `{"messageId":"msg-2"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	select {
	case msg := <-received:
		assert.Equal(t, "msg-2", msg.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("foreground handler was not invoked")
	}
}

func TestRelay_AssignsMessageIDWhenAbsent(t *testing.T) {
	relay := newTestRelay(nil)

	received := make(chan Message, 1)
	relay.OnBackgroundMessage(func(ctx context.Context, msg Message) {
		received <- msg
	})

	postPush(t, relay, `{"notification":{"title":"x","body":"y"}}`)

	select {
	case msg := <-received:
		assert.NotEmpty(t, msg.MessageID)
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}
}

func TestRelay_RejectsInvalidPayload(t *testing.T) {
	relay := newTestRelay(nil)
	w := postPush(t, relay, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRelay_DropsPushWithoutHandlers(t *testing.T) {
	relay := newTestRelay(nil)
	w := postPush(t, relay, `{"messageId":"msg-3"}`)
	// Delivery always resolves normally even with nobody listening.
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRelay_RequestTokenMintsLocalTokenWithoutRelay(t *testing.T) {
	relay := newTestRelay(&config.Config{PushListenAddr: "127.0.0.1:0"})

	token, err := relay.RequestToken(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	again, err := relay.RequestToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, again, "token is cached until deleted")

	require.NoError(t, relay.DeleteToken(context.Background()))
	fresh, err := relay.RequestToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)
}

func TestRelay_RequestTokenFromRelayEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "127.0.0.1:9090", body["address"])
		w.Write([]byte(`{"token":"relay-tok-1"}`))
	}))
	defer server.Close()

	relay := newTestRelay(&config.Config{
		PushListenAddr: "127.0.0.1:9090",
		PushRelayURL:   server.URL,
	})

	token, err := relay.RequestToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "relay-tok-1", token)
}

func TestRelay_RequestTokenRelayFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	relay := newTestRelay(&config.Config{
		PushListenAddr: "127.0.0.1:9090",
		PushRelayURL:   server.URL,
	})

	_, err := relay.RequestToken(context.Background())
	require.Error(t, err)

	clientErr, ok := common.IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, common.CategoryUnavailable, clientErr.Category)
}

func TestUnavailable_RequestTokenFails(t *testing.T) {
	svc := NewUnavailable(logger.NewDefaultLogger())

	_, err := svc.RequestToken(context.Background())
	require.Error(t, err)

	clientErr, ok := common.IsClientError(err)
	require.True(t, ok)
	assert.Equal(t, common.CategoryUnavailable, clientErr.Category)

	// The rest of the surface is inert but safe.
	assert.NoError(t, svc.Start())
	assert.NoError(t, svc.DeleteToken(context.Background()))
	assert.NoError(t, svc.Stop(context.Background()))
}

func TestNewFromConfig_SelectsVariant(t *testing.T) {
	log := logger.NewDefaultLogger()

	svc := NewFromConfig(&config.Config{}, log)
	_, isRelay := svc.(*Relay)
	assert.False(t, isRelay, "no listen address means unavailable variant")

	svc = NewFromConfig(&config.Config{PushListenAddr: "127.0.0.1:0"}, log)
	_, isRelay = svc.(*Relay)
	assert.True(t, isRelay)
}
