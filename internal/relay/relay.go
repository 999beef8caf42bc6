package relay

import (
	"encoding/json"
	"log/slog"

	"github.com/benbjohnson/clock"
)

// Outbound payloads. Every event forwarded to a room carries the sender's
// socket id so recipients can address replies.

type UserJoinedPayload struct {
	SocketID  string `json:"socketId"`
	UserID    string `json:"userId"`
	RoleID    string `json:"roleId"`
	SessionID string `json:"sessionId"`
}

type UserLeftPayload struct {
	SocketID  string `json:"socketId"`
	RoleID    string `json:"roleId"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

type PeerSignalForward struct {
	RoleID       string          `json:"roleId"`
	SessionID    string          `json:"sessionId"`
	SignalData   json.RawMessage `json:"signalData"`
	FromSocketID string          `json:"fromSocketId"`
}

type VoiceCallStartForward struct {
	RoleID       string `json:"roleId"`
	SessionID    string `json:"sessionId"`
	CallMode     string `json:"callMode"`
	FromSocketID string `json:"fromSocketId"`
}

type VoiceCallStatusForward struct {
	RoleID       string `json:"roleId"`
	SessionID    string `json:"sessionId"`
	Status       string `json:"status"`
	Quality      string `json:"quality,omitempty"`
	FromSocketID string `json:"fromSocketId"`
}

type VoiceCallEndForward struct {
	RoleID       string `json:"roleId"`
	SessionID    string `json:"sessionId"`
	DurationMS   int64  `json:"duration"`
	Reason       string `json:"reason,omitempty"`
	FromSocketID string `json:"fromSocketId"`
}

// Relay coordinates the registry, room router, tracker and archive behind
// the transport. All state is owned by this instance; tests construct as
// many isolated relays as they need.
type Relay struct {
	registry *SessionRegistry
	rooms    *RoomRouter
	tracker  *CallTracker
	archive  *StatsArchive
	metrics  *Metrics
	clock    clock.Clock
	log      *slog.Logger
}

type Options struct {
	StatsCapacity int
	Clock         clock.Clock
	Metrics       *Metrics
	Logger        *slog.Logger
}

func New(opts Options) (*Relay, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}

	archive, err := NewStatsArchive(opts.StatsCapacity)
	if err != nil {
		return nil, err
	}

	log := opts.Logger.With("component", "relay")
	return &Relay{
		registry: NewSessionRegistry(opts.Clock),
		rooms:    NewRoomRouter(opts.Logger),
		tracker:  NewCallTracker(archive, opts.Clock, opts.Logger),
		archive:  archive,
		metrics:  opts.Metrics,
		clock:    opts.Clock,
		log:      log,
	}, nil
}

// Connect makes the connection addressable. It happens before join_call, so
// targeted signals can reach sockets that have not entered a room yet.
func (r *Relay) Connect(conn Sender) {
	r.rooms.Attach(conn)
	r.metrics.Connections.Inc()
	r.log.Info("client connected", "socket_id", conn.SocketID())
}

// Disconnect reconciles everything the connection touched: registry entry,
// room membership, and any active call for its session key.
func (r *Relay) Disconnect(socketID, reason string) {
	sess, ok := r.registry.Remove(socketID)
	r.log.Info("client disconnected", "socket_id", socketID, "reason", reason)

	if ok {
		r.rooms.Broadcast(sess.RoomName, socketID, EventUserLeft, UserLeftPayload{
			SocketID:  socketID,
			RoleID:    sess.RoleID,
			SessionID: sess.SessionID,
			Reason:    reason,
		})

		outcome := r.tracker.End(sess.RoleID, sess.SessionID, socketID, EndReasonDisconnect)
		if outcome.Ended {
			r.metrics.CallsEnded.WithLabelValues(EndReasonDisconnect).Inc()
			r.rooms.Broadcast(sess.RoomName, socketID, EventVoiceCallEnd, VoiceCallEndForward{
				RoleID:       sess.RoleID,
				SessionID:    sess.SessionID,
				DurationMS:   outcome.DurationMS,
				Reason:       EndReasonDisconnect,
				FromSocketID: socketID,
			})
			r.log.Info("call ended by disconnect",
				"call_key", CallKey(sess.RoleID, sess.SessionID),
				"duration_ms", outcome.DurationMS)
		}
		r.rooms.Leave(socketID, sess.RoomName)
	}

	r.rooms.Detach(socketID)
	r.metrics.Connections.Dec()
	r.metrics.ActiveCalls.Set(float64(r.tracker.ActiveCount()))
}

// JoinCall registers the session, subscribes the connection to its room and
// notifies the existing members. Join does not echo existing members back
// to the newcomer; peers introduce themselves via signaling.
func (r *Relay) JoinCall(conn Sender, p JoinCallPayload) {
	sess := r.registry.Register(conn.SocketID(), p.UserID.String(), p.RoleID.String(), p.SessionID.String())
	r.rooms.Join(conn, sess.RoomName)

	r.log.Info("client joined call room",
		"socket_id", conn.SocketID(),
		"user_id", sess.UserID,
		"call_key", CallKey(sess.RoleID, sess.SessionID),
		"room", sess.RoomName)

	r.rooms.Broadcast(sess.RoomName, conn.SocketID(), EventUserJoined, UserJoinedPayload{
		SocketID:  conn.SocketID(),
		UserID:    sess.UserID,
		RoleID:    sess.RoleID,
		SessionID: sess.SessionID,
	})
}

// RelaySignal forwards the opaque payload either point-to-point or to the
// sender's room. A sender with no registered session is logged and dropped.
func (r *Relay) RelaySignal(fromSocketID string, p PeerSignalPayload) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		r.log.Warn("signal from unregistered connection", "socket_id", fromSocketID)
		return
	}

	forward := PeerSignalForward{
		RoleID:       p.RoleID.String(),
		SessionID:    p.SessionID.String(),
		SignalData:   p.SignalData,
		FromSocketID: fromSocketID,
	}

	if p.TargetSocketID != "" {
		r.rooms.SendTo(p.TargetSocketID, EventPeerSignal, forward)
	} else {
		r.rooms.Broadcast(sess.RoomName, fromSocketID, EventPeerSignal, forward)
	}
	r.metrics.SignalsRelayed.Inc()

	r.log.Debug("signal relayed",
		"call_key", CallKey(p.RoleID.String(), p.SessionID.String()),
		"from", fromSocketID,
		"target", p.TargetSocketID)
}

func (r *Relay) StartCall(fromSocketID string, p VoiceCallStartPayload) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		r.log.Warn("call start from unregistered connection", "socket_id", fromSocketID)
		return
	}

	outcome := r.tracker.Start(p.RoleID.String(), p.SessionID.String(), p.CallMode, fromSocketID)
	if outcome.Superseded != nil {
		r.metrics.CallsEnded.WithLabelValues(EndReasonSuperseded).Inc()
	}
	r.metrics.CallsStarted.Inc()
	r.metrics.ActiveCalls.Set(float64(r.tracker.ActiveCount()))

	r.rooms.Broadcast(sess.RoomName, fromSocketID, EventVoiceCallStart, VoiceCallStartForward{
		RoleID:       outcome.Call.RoleID,
		SessionID:    outcome.Call.SessionID,
		CallMode:     outcome.Call.CallMode,
		FromSocketID: fromSocketID,
	})

	r.log.Info("voice call started",
		"call_key", outcome.Call.Key(),
		"call_mode", outcome.Call.CallMode,
		"initiator", fromSocketID)
}

func (r *Relay) UpdateCallStatus(fromSocketID string, p VoiceCallStatusPayload) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		return
	}

	outcome := r.tracker.UpdateStatus(p.RoleID.String(), p.SessionID.String(), p.Status, p.Quality)

	r.rooms.Broadcast(sess.RoomName, fromSocketID, EventVoiceCallStatus, VoiceCallStatusForward{
		RoleID:       p.RoleID.String(),
		SessionID:    p.SessionID.String(),
		Status:       p.Status,
		Quality:      p.Quality,
		FromSocketID: fromSocketID,
	})

	if outcome.Updated {
		r.log.Info("voice call status updated",
			"call_key", CallKey(p.RoleID.String(), p.SessionID.String()),
			"status", p.Status,
			"quality", p.Quality)
	}
}

// EndCall archives the active record if one exists. The end event is
// broadcast either way; with no tracked call the duration is zero, keeping
// end signaling idempotent for clients.
func (r *Relay) EndCall(fromSocketID string, p VoiceCallEndPayload) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		return
	}

	outcome := r.tracker.End(p.RoleID.String(), p.SessionID.String(), fromSocketID, EndReasonExplicit)
	if outcome.Ended {
		r.metrics.CallsEnded.WithLabelValues(EndReasonExplicit).Inc()
	}
	r.metrics.ActiveCalls.Set(float64(r.tracker.ActiveCount()))

	r.rooms.Broadcast(sess.RoomName, fromSocketID, EventVoiceCallEnd, VoiceCallEndForward{
		RoleID:       p.RoleID.String(),
		SessionID:    p.SessionID.String(),
		DurationMS:   outcome.DurationMS,
		FromSocketID: fromSocketID,
	})

	r.log.Info("voice call ended",
		"call_key", CallKey(p.RoleID.String(), p.SessionID.String()),
		"duration_ms", outcome.DurationMS,
		"ended_by", fromSocketID,
		"tracked", outcome.Ended)
}

// ChatMessage forwards the payload untouched apart from the sender id and a
// server-assigned timestamp.
func (r *Relay) ChatMessage(fromSocketID string, data map[string]any) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		return
	}

	forward := make(map[string]any, len(data)+2)
	for k, v := range data {
		forward[k] = v
	}
	forward["fromSocketId"] = fromSocketID
	forward["timestamp"] = r.clock.Now().UnixMilli()

	r.rooms.Broadcast(sess.RoomName, fromSocketID, EventChatMessage, forward)
}

// Typing forwards typing_start/typing_stop indicators with the sender id
// stamped on.
func (r *Relay) Typing(fromSocketID, event string, data map[string]any) {
	sess, ok := r.registry.Lookup(fromSocketID)
	if !ok {
		return
	}

	forward := make(map[string]any, len(data)+1)
	for k, v := range data {
		forward[k] = v
	}
	forward["fromSocketId"] = fromSocketID

	r.rooms.Broadcast(sess.RoomName, fromSocketID, event, forward)
}

func (r *Relay) Ping(conn Sender) {
	conn.Send(EventPong, nil)
}

// Snapshot accessors for the admin surface. All are side-effect-free reads.

func (r *Relay) ConnectionCount() int          { return r.rooms.ConnectionCount() }
func (r *Relay) SessionCount() int             { return r.registry.Count() }
func (r *Relay) Sessions() []*Session          { return r.registry.List() }
func (r *Relay) ActiveCalls() []*CallRecord    { return r.tracker.ActiveCalls() }
func (r *Relay) ActiveCallCount() int          { return r.tracker.ActiveCount() }
func (r *Relay) RecentStats(n int) []*CallStat { return r.archive.Recent(n) }
func (r *Relay) StatsCount() int               { return r.archive.Len() }
func (r *Relay) Clock() clock.Clock            { return r.clock }

func (r *Relay) Metrics() *Metrics { return r.metrics }
