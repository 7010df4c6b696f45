package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	chatmetrics "agenda/internal/chat/metrics"
	chatservice "agenda/internal/chat/service"
	chatstore "agenda/internal/chat/store"
	"agenda/internal/token"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type memberAccess map[id.UserID]bool

func (a memberAccess) CheckRoomAccess(_ context.Context, _ id.TenantID, userID id.UserID, _ id.EventID) error {
	if !a[userID] {
		return dErrors.New(dErrors.CodeForbidden, "you are not participating in this event")
	}
	return nil
}

func (a memberAccess) CheckHistoryAccess(ctx context.Context, tenantID id.TenantID, userID id.UserID, eventID id.EventID) error {
	return a.CheckRoomAccess(ctx, tenantID, userID, eventID)
}

type emailNames struct{}

func (emailNames) DisplayName(_ context.Context, userID id.UserID, _ string) string {
	return userID.String()[:4] + "@example.com"
}

func (n emailNames) DisplayNames(ctx context.Context, userIDs []id.UserID, cred string) map[id.UserID]string {
	out := make(map[id.UserID]string, len(userIDs))
	for _, u := range userIDs {
		out[u] = n.DisplayName(ctx, u, cred)
	}
	return out
}

type testEnv struct {
	srv     *httptest.Server
	tokens  *token.Service
	hub     *Hub
	store   *chatstore.InMemory
	metrics *chatmetrics.Metrics
	eventID id.EventID
}

func newEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		tokens:  token.NewService("realtime-secret", "agenda", time.Hour),
		store:   chatstore.NewInMemory(),
		metrics: chatmetrics.New(prometheus.NewRegistry()),
		eventID: id.NewEventID(),
	}
	access := memberAccess{testutil.TestIDs.Alice: true, testutil.TestIDs.Bob: true}
	chat := chatservice.New(env.store, access, emailNames{}, chatservice.WithLogger(discard))
	opts = append([]Option{WithLogger(discard), WithMetrics(env.metrics)}, opts...)
	env.hub = NewHub(chat, token.NewValidator(env.tokens), opts...)

	mux := http.NewServeMux()
	mux.Handle("/ws", env.hub)
	env.srv = httptest.NewServer(mux)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws" + query
}

func (e *testEnv) dial(t *testing.T, user id.UserID) *websocket.Conn {
	t.Helper()
	raw, err := e.tokens.Issue(user, testutil.TestIDs.TenantA, id.RoleMember)
	require.NoError(t, err)
	ws, err := websocket.Dial(e.wsURL("?token="+raw), "", e.srv.URL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func send(t *testing.T, ws *websocket.Conn, frameType string, payload any) {
	t.Helper()
	require.NoError(t, websocket.JSON.Send(ws, newFrame(frameType, payload)))
}

func read(t *testing.T, ws *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f Frame
	require.NoError(t, websocket.JSON.Receive(ws, &f))
	return f
}

func (e *testEnv) join(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	send(t, ws, FrameJoin, joinPayload{EventID: e.eventID.String()})
	f := read(t, ws)
	require.Equal(t, FrameJoined, f.Type, string(f.Payload))
}

func decode[T any](t *testing.T, f Frame) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(f.Payload, &out))
	return out
}

func TestHandshakeRequiresToken(t *testing.T) {
	env := newEnv(t)

	resp, err := http.Get(env.srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, err = websocket.Dial(env.wsURL("?token=forged"), "", env.srv.URL)
	assert.Error(t, err)
}

func TestNeverInvitedUserCannotJoin(t *testing.T) {
	env := newEnv(t)
	carol := env.dial(t, testutil.TestIDs.Carol)

	send(t, carol, FrameJoin, joinPayload{EventID: env.eventID.String()})
	f := read(t, carol)
	require.Equal(t, FrameError, f.Type)
	assert.Equal(t, "you are not participating in this event", decode[errorPayload](t, f).Reason)

	send(t, carol, FrameSend, sendPayload{Text: "let me in", EventID: env.eventID.String()})
	f = read(t, carol)
	require.Equal(t, FrameError, f.Type)
	assert.Contains(t, decode[errorPayload](t, f).Reason, "join the event chat")

	msgs, err := env.store.ListByEvent(context.Background(), testutil.TestIDs.TenantA, env.eventID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Zero(t, promtest.ToFloat64(env.metrics.Rooms))
}

func TestBroadcastReachesEveryMemberIncludingSender(t *testing.T) {
	env := newEnv(t)
	alice := env.dial(t, testutil.TestIDs.Alice)
	bob := env.dial(t, testutil.TestIDs.Bob)
	env.join(t, alice)
	env.join(t, bob)

	send(t, alice, FrameSend, sendPayload{Text: "  welcome  "})

	for _, ws := range []*websocket.Conn{alice, bob} {
		f := read(t, ws)
		require.Equal(t, FrameMessage, f.Type)
		msg := decode[messagePayload](t, f)
		assert.Equal(t, "welcome", msg.Text)
		assert.Equal(t, testutil.TestIDs.Alice.String(), msg.SenderID)
		assert.Equal(t, "1111@example.com", msg.SenderEmail)
		assert.Equal(t, env.eventID.String(), msg.EventID)
		assert.NotEmpty(t, msg.ID)
	}

	stored, err := env.store.ListByEvent(context.Background(), testutil.TestIDs.TenantA, env.eventID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
}

func TestDeliveryOrderMatchesPersistenceOrder(t *testing.T) {
	env := newEnv(t, WithFrameRate(100, 100))
	alice := env.dial(t, testutil.TestIDs.Alice)
	bob := env.dial(t, testutil.TestIDs.Bob)
	env.join(t, alice)
	env.join(t, bob)

	for i := range 5 {
		send(t, alice, FrameSend, sendPayload{Text: string(rune('a' + i))})
	}
	var received []string
	for range 5 {
		f := read(t, bob)
		require.Equal(t, FrameMessage, f.Type)
		received = append(received, decode[messagePayload](t, f).ID)
	}

	stored, err := env.store.ListByEvent(context.Background(), testutil.TestIDs.TenantA, env.eventID)
	require.NoError(t, err)
	require.Len(t, stored, 5)
	for i, m := range stored {
		assert.Equal(t, m.ID.String(), received[i])
		assert.Equal(t, string(rune('a'+i)), m.Text)
	}
}

func TestInvalidFramesAreAnswered(t *testing.T) {
	env := newEnv(t)
	alice := env.dial(t, testutil.TestIDs.Alice)

	require.NoError(t, websocket.Message.Send(alice, "not json"))
	assert.Equal(t, FrameError, read(t, alice).Type)

	send(t, alice, "dance", nil)
	f := read(t, alice)
	assert.Equal(t, "unsupported frame type", decode[errorPayload](t, f).Reason)

	env.join(t, alice)
	send(t, alice, FrameSend, sendPayload{Text: "   "})
	f = read(t, alice)
	assert.Equal(t, "text is required", decode[errorPayload](t, f).Reason)
}

func TestFrameRateLimit(t *testing.T) {
	env := newEnv(t, WithFrameRate(0.001, 1))
	alice := env.dial(t, testutil.TestIDs.Alice)

	env.join(t, alice)
	send(t, alice, FrameSend, sendPayload{Text: "too fast"})
	f := read(t, alice)
	require.Equal(t, FrameError, f.Type)
	assert.Equal(t, "rate limit exceeded", decode[errorPayload](t, f).Reason)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.FramesRejected.WithLabelValues("rate_limited")))
}

func TestPushReachesAllUserConnections(t *testing.T) {
	env := newEnv(t)
	first := env.dial(t, testutil.TestIDs.Bob)
	second := env.dial(t, testutil.TestIDs.Bob)
	alice := env.dial(t, testutil.TestIDs.Alice)

	require.Eventually(t, func() bool {
		return promtest.ToFloat64(env.metrics.Connections) == 3
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, env.hub.PushToUser(context.Background(), testutil.TestIDs.Bob, "You were invited."))
	for _, ws := range []*websocket.Conn{first, second} {
		f := read(t, ws)
		require.Equal(t, FrameNotification, f.Type)
		assert.Equal(t, "You were invited.", decode[notificationPayload](t, f).Message)
	}

	// alice got nothing: her next frame is the answer to her own request
	send(t, alice, "ping", nil)
	assert.Equal(t, FrameError, read(t, alice).Type)

	assert.NoError(t, env.hub.PushToUser(context.Background(), testutil.TestIDs.Carol, "offline"))
}

func TestDisconnectTearsDownRoom(t *testing.T) {
	env := newEnv(t)
	alice := env.dial(t, testutil.TestIDs.Alice)
	env.join(t, alice)
	assert.Equal(t, 1.0, promtest.ToFloat64(env.metrics.Rooms))

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(env.metrics.Rooms) == 0 &&
			promtest.ToFloat64(env.metrics.Connections) == 0
	}, 2*time.Second, 10*time.Millisecond)

	bob := env.dial(t, testutil.TestIDs.Bob)
	env.join(t, bob)
	send(t, bob, FrameSend, sendPayload{Text: "anyone?"})
	assert.Equal(t, FrameMessage, read(t, bob).Type)
}

func TestRelayDispatchDeliversLocally(t *testing.T) {
	env := newEnv(t)
	bob := env.dial(t, testutil.TestIDs.Bob)
	require.Eventually(t, func() bool {
		return promtest.ToFloat64(env.metrics.Connections) == 1
	}, 2*time.Second, 10*time.Millisecond)

	relay := NewRelay(nil, "", env.hub, discard)
	relay.dispatch("{broken")
	relay.dispatch(`{"user_id":"nope","message":"x"}`)
	relay.dispatch(`{"user_id":"` + testutil.TestIDs.Bob.String() + `","message":"relayed"}`)

	f := read(t, bob)
	require.Equal(t, FrameNotification, f.Type)
	assert.Equal(t, "relayed", decode[notificationPayload](t, f).Message)
}
