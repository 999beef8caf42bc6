package admin

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rolevoice/signaling-relay/internal/relay"
)

type fakeConn struct{ id string }

func (f *fakeConn) SocketID() string { return f.id }
func (f *fakeConn) Send(string, any) {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T) (*echo.Echo, *relay.Relay, *clock.Mock) {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.UnixMilli(1_700_000_000_000))

	r, err := relay.New(relay.Options{
		StatsCapacity: 100,
		Clock:         clk,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	reg := prometheus.NewRegistry()
	h := NewHandler(r, reg, testLogger())

	e := echo.New()
	h.RegisterRoutes(e)
	return e, r, clk
}

func doGet(t *testing.T, e *echo.Echo, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func joinCall(r *relay.Relay, id, userID, roleID, sessionID string) *fakeConn {
	conn := &fakeConn{id: id}
	r.Connect(conn)
	r.JoinCall(conn, relay.JoinCallPayload{
		RoleID:    relay.ID(roleID),
		SessionID: relay.ID(sessionID),
		UserID:    relay.ID(userID),
	})
	return conn
}

func TestHandler_Health(t *testing.T) {
	e, r, clk := newTestHandler(t)

	joinCall(r, "x", "42", "7", "s1")
	clk.Add(30 * time.Second)

	rec := doGet(t, e, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("expected ok, got %s", body.Status)
	}
	if body.Connections != 1 || body.UserSessions != 1 || body.ActiveCalls != 0 {
		t.Errorf("unexpected counts: %+v", body)
	}
	if body.Uptime != 30 {
		t.Errorf("expected 30s uptime, got %f", body.Uptime)
	}
}

func TestHandler_ActiveCalls(t *testing.T) {
	e, r, clk := newTestHandler(t)

	joinCall(r, "x", "42", "7", "s1")
	r.StartCall("x", relay.VoiceCallStartPayload{RoleID: "7", SessionID: "s1", CallMode: "realtime"})
	clk.Add(12 * time.Second)

	rec := doGet(t, e, "/api/active-calls")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body struct {
		Success bool         `json:"success"`
		Data    []ActiveCall `json:"data"`
		Total   int          `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !body.Success || body.Total != 1 {
		t.Fatalf("unexpected envelope: %+v", body)
	}

	call := body.Data[0]
	if call.CallKey != "7_s1" {
		t.Errorf("expected callKey 7_s1, got %s", call.CallKey)
	}
	if call.DurationMS != 12000 {
		t.Errorf("expected live duration 12000ms, got %d", call.DurationMS)
	}
	if call.ParticipantCount != 1 {
		t.Errorf("expected participantCount 1, got %d", call.ParticipantCount)
	}
	if call.State != string(relay.CallStarting) {
		t.Errorf("expected starting state, got %s", call.State)
	}
}

func TestHandler_CallStatsLimit(t *testing.T) {
	e, r, clk := newTestHandler(t)

	joinCall(r, "x", "42", "7", "s1")
	for i := 0; i < 3; i++ {
		r.StartCall("x", relay.VoiceCallStartPayload{RoleID: "7", SessionID: "s1", CallMode: "realtime"})
		clk.Add(time.Duration(i+1) * time.Second)
		r.EndCall("x", relay.VoiceCallEndPayload{RoleID: "7", SessionID: "s1"})
		clk.Add(time.Millisecond)
	}

	rec := doGet(t, e, "/api/call-stats?limit=1")
	var body struct {
		Success bool       `json:"success"`
		Data    []CallStat `json:"data"`
		Total   int        `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(body.Data) != 1 {
		t.Fatalf("expected exactly 1 stat, got %d", len(body.Data))
	}
	if body.Total != 3 {
		t.Errorf("total must report the archive size, got %d", body.Total)
	}

	stat := body.Data[0]
	if stat.DurationMS != 3000 {
		t.Errorf("expected most recent stat (3000ms), got %d", stat.DurationMS)
	}
	if stat.DurationSeconds != 3 {
		t.Errorf("expected durationSeconds 3, got %d", stat.DurationSeconds)
	}
	if stat.EndedBy != "x" {
		t.Errorf("expected endedBy x, got %s", stat.EndedBy)
	}
}

func TestHandler_CallStatsDefaultLimit(t *testing.T) {
	e, r, clk := newTestHandler(t)

	joinCall(r, "x", "42", "7", "s1")
	for i := 0; i < 15; i++ {
		r.StartCall("x", relay.VoiceCallStartPayload{RoleID: "7", SessionID: "s1", CallMode: "realtime"})
		clk.Add(time.Second)
		r.EndCall("x", relay.VoiceCallEndPayload{RoleID: "7", SessionID: "s1"})
		clk.Add(time.Millisecond)
	}

	for _, path := range []string{"/api/call-stats", "/api/call-stats?limit=bogus"} {
		rec := doGet(t, e, path)
		var body struct {
			Data  []CallStat `json:"data"`
			Total int        `json:"total"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if len(body.Data) != 10 {
			t.Errorf("%s: expected default limit 10, got %d", path, len(body.Data))
		}
		if body.Total != 15 {
			t.Errorf("%s: expected total 15, got %d", path, body.Total)
		}
	}
}

func TestHandler_OnlineUsers(t *testing.T) {
	e, r, clk := newTestHandler(t)

	joinCall(r, "x", "42", "7", "s1")
	clk.Add(90 * time.Second)

	rec := doGet(t, e, "/api/online-users")
	var body struct {
		Success bool         `json:"success"`
		Data    []OnlineUser `json:"data"`
		Total   int          `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Total != 1 {
		t.Fatalf("expected 1 user, got %d", body.Total)
	}

	user := body.Data[0]
	if user.SocketID != "x" || user.UserID != "42" || user.RoomName != "call_7_s1" {
		t.Errorf("unexpected user: %+v", user)
	}
	if user.OnlineDuration != 90000 {
		t.Errorf("expected 90000ms online, got %d", user.OnlineDuration)
	}

	r.Disconnect("x", "client disconnect")
	rec = doGet(t, e, "/api/online-users")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Total != 0 {
		t.Errorf("disconnected user still listed: %+v", body.Data)
	}
}

func TestHandler_Metrics(t *testing.T) {
	e, _, _ := newTestHandler(t)

	rec := doGet(t, e, "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 from /metrics, got %d", rec.Code)
	}
}
