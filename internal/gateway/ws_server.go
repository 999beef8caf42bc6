package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rolevoice/signaling-relay/internal/relay"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 60 * time.Second
)

type Config struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	PingTimeout    time.Duration
}

// WSServer upgrades HTTP requests to WebSocket connections and dispatches
// inbound envelopes into the relay.
type WSServer struct {
	relay    *relay.Relay
	upgrader websocket.Upgrader
	log      *slog.Logger

	pingInterval time.Duration
	pingTimeout  time.Duration
}

func NewWSServer(r *relay.Relay, cfg Config, logger *slog.Logger) *WSServer {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = defaultPingTimeout
	}

	s := &WSServer{
		relay:        r,
		log:          logger.With("component", "ws_server"),
		pingInterval: cfg.PingInterval,
		pingTimeout:  cfg.PingTimeout,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.AllowedOrigins),
	}
	return s
}

// originChecker allows non-browser clients (no Origin header) and any
// origin on the configured allow list. "*" opens the list entirely.
func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

func (s *WSServer) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws", s.HandleConnection)
}

func (s *WSServer) HandleConnection(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return err
	}

	socketID := uuid.NewString()
	conn := newConn(ws, socketID, s.pingInterval, s.pingTimeout, s.log)

	s.relay.Connect(conn)

	go conn.writePump()
	reason := conn.readPump(s.dispatch)

	s.relay.Disconnect(socketID, reason)
	return nil
}

// dispatch validates one inbound envelope and routes it to the relay.
// Anything malformed comes back to the sender as a structured error event
// instead of being silently swallowed.
func (s *WSServer) dispatch(conn *Conn, raw []byte) {
	var env relay.Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		s.reject(conn, &relay.Reject{
			Code:    relay.RejectCodeInvalidPayload,
			Message: "malformed envelope, expected {event, data}",
		})
		return
	}

	if !relay.KnownEvent(env.Event) {
		s.reject(conn, &relay.Reject{
			Code:    relay.RejectCodeUnknownEvent,
			Message: "unknown event: " + env.Event,
		})
		return
	}

	s.relay.Metrics().Events.WithLabelValues(env.Event).Inc()

	switch env.Event {
	case relay.EventJoinCall:
		p, rej := relay.DecodeJoinCall(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.JoinCall(conn, p)

	case relay.EventPeerSignal:
		p, rej := relay.DecodePeerSignal(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.RelaySignal(conn.SocketID(), p)

	case relay.EventVoiceCallStart:
		p, rej := relay.DecodeVoiceCallStart(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.StartCall(conn.SocketID(), p)

	case relay.EventVoiceCallStatus:
		p, rej := relay.DecodeVoiceCallStatus(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.UpdateCallStatus(conn.SocketID(), p)

	case relay.EventVoiceCallEnd:
		p, rej := relay.DecodeVoiceCallEnd(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.EndCall(conn.SocketID(), p)

	case relay.EventChatMessage:
		p, rej := relay.DecodeChatMessage(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.ChatMessage(conn.SocketID(), p)

	case relay.EventTypingStart, relay.EventTypingStop:
		p, rej := relay.DecodeTyping(env.Data)
		if rej != nil {
			s.reject(conn, rej)
			return
		}
		s.relay.Typing(conn.SocketID(), env.Event, p)

	case relay.EventPing:
		s.relay.Ping(conn)
	}
}

func (s *WSServer) reject(conn *Conn, rej *relay.Reject) {
	s.relay.Metrics().InvalidMessages.Inc()
	s.log.Warn("rejected inbound message",
		"socket_id", conn.SocketID(), "code", rej.Code, "reason", rej.Message)
	conn.Send(relay.EventError, rej.Payload())
}
