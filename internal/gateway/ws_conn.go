package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rolevoice/signaling-relay/internal/relay"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
	sendBuffer     = 128
)

type outboundFrame struct {
	event   string
	payload any
}

// Conn is one client connection. It satisfies relay.Sender: Send enqueues
// onto a buffered channel drained by writePump, so delivery never blocks
// the relay.
type Conn struct {
	ws       *websocket.Conn
	socketID string
	log      *slog.Logger

	pingPeriod time.Duration
	pongWait   time.Duration

	send   chan outboundFrame
	done   chan struct{}
	closed bool
	mu     sync.Mutex
}

func newConn(ws *websocket.Conn, socketID string, pingPeriod, pongWait time.Duration, logger *slog.Logger) *Conn {
	return &Conn{
		ws:         ws,
		socketID:   socketID,
		log:        logger.With("socket_id", socketID),
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		send:       make(chan outboundFrame, sendBuffer),
		done:       make(chan struct{}),
	}
}

func (c *Conn) SocketID() string {
	return c.socketID
}

// Send is fire-and-forget. A full buffer drops the frame; a slow reader
// must not stall the rest of the room.
func (c *Conn) Send(event string, payload any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- outboundFrame{event: event, payload: payload}:
	default:
		c.log.Warn("send buffer full, dropping frame", "event", event)
	}
}

func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.ws.Close()
}

// readPump reads envelopes until the connection drops and hands each one to
// dispatch. It returns the disconnect reason.
func (c *Conn) readPump(dispatch func(*Conn, []byte)) string {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return "client disconnect"
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseAbnormalClosure) {
				c.log.Error("websocket read error", "error", err)
			}
			return "transport error"
		}
		dispatch(c, message)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))

			env := relay.Envelope{Event: frame.event}
			if frame.payload != nil {
				data, err := json.Marshal(frame.payload)
				if err != nil {
					c.log.Error("failed to marshal payload", "event", frame.event, "error", err)
					continue
				}
				env.Data = data
			}

			data, err := json.Marshal(env)
			if err != nil {
				c.log.Error("failed to marshal envelope", "event", frame.event, "error", err)
				continue
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Error("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
