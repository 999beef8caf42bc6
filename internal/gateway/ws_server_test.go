package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rolevoice/signaling-relay/internal/relay"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) (*httptest.Server, *relay.Relay) {
	t.Helper()

	r, err := relay.New(relay.Options{Logger: testLogger()})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	ws := NewWSServer(r, Config{
		PingInterval: 10 * time.Second,
		PingTimeout:  30 * time.Second,
	}, testLogger())

	e := echo.New()
	ws.RegisterRoutes(e)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	return server, r
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws"+server.URL[4:]+"/ws", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func sendEnvelope(t *testing.T, ws *websocket.Conn, event string, data any) {
	t.Helper()
	env := map[string]any{"event": event}
	if data != nil {
		env["data"] = data
	}
	if err := ws.WriteJSON(env); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

func readEnvelope(t *testing.T, ws *websocket.Conn) relay.Envelope {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env relay.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read error: %v", err)
	}
	return env
}

func TestWSServer_PingPong(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dialWS(t, server)

	sendEnvelope(t, ws, relay.EventPing, nil)

	env := readEnvelope(t, ws)
	if env.Event != relay.EventPong {
		t.Errorf("expected pong, got %s", env.Event)
	}
}

func TestWSServer_MalformedEnvelopeRejected(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dialWS(t, server)

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write error: %v", err)
	}

	env := readEnvelope(t, ws)
	if env.Event != relay.EventError {
		t.Fatalf("expected error event, got %s", env.Event)
	}
	var payload relay.ErrorPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload.Code != relay.RejectCodeInvalidPayload {
		t.Errorf("expected invalid_payload, got %s", payload.Code)
	}
}

func TestWSServer_UnknownEventRejected(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dialWS(t, server)

	sendEnvelope(t, ws, "make_coffee", map[string]any{})

	env := readEnvelope(t, ws)
	if env.Event != relay.EventError {
		t.Fatalf("expected error event, got %s", env.Event)
	}
	var payload relay.ErrorPayload
	_ = json.Unmarshal(env.Data, &payload)
	if payload.Code != relay.RejectCodeUnknownEvent {
		t.Errorf("expected unknown_event, got %s", payload.Code)
	}
}

func TestWSServer_InvalidPayloadRejected(t *testing.T) {
	server, _ := newTestServer(t)
	ws := dialWS(t, server)

	sendEnvelope(t, ws, relay.EventJoinCall, map[string]any{"roleId": "7"})

	env := readEnvelope(t, ws)
	if env.Event != relay.EventError {
		t.Fatalf("expected error event, got %s", env.Event)
	}
}

func TestWSServer_JoinAndPeerNotification(t *testing.T) {
	server, r := newTestServer(t)

	first := dialWS(t, server)
	sendEnvelope(t, first, relay.EventJoinCall, map[string]any{
		"roleId": 7, "sessionId": "s1", "userId": 42,
	})

	waitFor(t, func() bool { return r.SessionCount() == 1 })

	second := dialWS(t, server)
	sendEnvelope(t, second, relay.EventJoinCall, map[string]any{
		"roleId": 7, "sessionId": "s1", "userId": 43,
	})

	env := readEnvelope(t, first)
	if env.Event != relay.EventUserJoined {
		t.Fatalf("expected user_joined at first client, got %s", env.Event)
	}
	var payload relay.UserJoinedPayload
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.UserID != "43" || payload.RoleID != "7" {
		t.Errorf("unexpected join payload: %+v", payload)
	}
}

func TestWSServer_DisconnectNotifiesRoom(t *testing.T) {
	server, r := newTestServer(t)

	first := dialWS(t, server)
	sendEnvelope(t, first, relay.EventJoinCall, map[string]any{
		"roleId": "7", "sessionId": "s1", "userId": "42",
	})
	waitFor(t, func() bool { return r.SessionCount() == 1 })

	second := dialWS(t, server)
	sendEnvelope(t, second, relay.EventJoinCall, map[string]any{
		"roleId": "7", "sessionId": "s1", "userId": "43",
	})

	// first sees the join, then the departure
	if env := readEnvelope(t, first); env.Event != relay.EventUserJoined {
		t.Fatalf("expected user_joined, got %s", env.Event)
	}

	second.Close()

	env := readEnvelope(t, first)
	if env.Event != relay.EventUserLeft {
		t.Fatalf("expected user_left, got %s", env.Event)
	}

	waitFor(t, func() bool { return r.SessionCount() == 1 && r.ConnectionCount() == 1 })
}

func TestWSServer_SignalRoundTrip(t *testing.T) {
	server, r := newTestServer(t)

	first := dialWS(t, server)
	sendEnvelope(t, first, relay.EventJoinCall, map[string]any{
		"roleId": "7", "sessionId": "s1", "userId": "42",
	})
	waitFor(t, func() bool { return r.SessionCount() == 1 })

	second := dialWS(t, server)
	sendEnvelope(t, second, relay.EventJoinCall, map[string]any{
		"roleId": "7", "sessionId": "s1", "userId": "43",
	})
	if env := readEnvelope(t, first); env.Event != relay.EventUserJoined {
		t.Fatalf("expected user_joined, got %s", env.Event)
	}
	waitFor(t, func() bool { return r.SessionCount() == 2 })

	sendEnvelope(t, second, relay.EventPeerSignal, map[string]any{
		"roleId": "7", "sessionId": "s1",
		"signalData": map[string]any{"type": "offer", "sdp": "v=0"},
	})

	env := readEnvelope(t, first)
	if env.Event != relay.EventPeerSignal {
		t.Fatalf("expected peer_signal, got %s", env.Event)
	}
	var forward relay.PeerSignalForward
	if err := json.Unmarshal(env.Data, &forward); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if forward.FromSocketID == "" {
		t.Error("forwarded signal must carry fromSocketId")
	}
}

func TestWSServer_OriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:8000"})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if !check(req) {
		t.Error("requests without an Origin header should be allowed")
	}

	req.Header.Set("Origin", "http://localhost:8000")
	if !check(req) {
		t.Error("allow-listed origin rejected")
	}

	req.Header.Set("Origin", "http://evil.example.com")
	if check(req) {
		t.Error("unlisted origin accepted")
	}

	wildcard := originChecker([]string{"*"})
	if !wildcard(req) {
		t.Error("wildcard should accept any origin")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
