package relay

import (
	"log/slog"
	"sync"
)

// Sender is the transport side of one connection. Delivery is
// fire-and-forget; implementations must not block.
type Sender interface {
	SocketID() string
	Send(event string, payload any)
}

// RoomRouter tracks which connections exist and which room each one has
// joined. Membership is the transport-level grouping primitive; it carries
// no call state of its own.
type RoomRouter struct {
	rooms map[string]map[string]Sender
	conns map[string]Sender
	log   *slog.Logger
	mu    sync.RWMutex
}

func NewRoomRouter(log *slog.Logger) *RoomRouter {
	return &RoomRouter{
		rooms: make(map[string]map[string]Sender),
		conns: make(map[string]Sender),
		log:   log.With("component", "room_router"),
	}
}

// Attach makes a connection addressable for direct delivery before it has
// joined any room.
func (r *RoomRouter) Attach(conn Sender) {
	r.mu.Lock()
	r.conns[conn.SocketID()] = conn
	r.mu.Unlock()
}

// Detach removes the connection from the direct-delivery table and from
// every room it was in.
func (r *RoomRouter) Detach(socketID string) {
	r.mu.Lock()
	delete(r.conns, socketID)
	for name, members := range r.rooms {
		if _, ok := members[socketID]; ok {
			delete(members, socketID)
			if len(members) == 0 {
				delete(r.rooms, name)
			}
		}
	}
	r.mu.Unlock()
}

// Join is idempotent; joining the same room twice is a no-op.
func (r *RoomRouter) Join(conn Sender, room string) {
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]Sender)
		r.rooms[room] = members
	}
	members[conn.SocketID()] = conn
	r.conns[conn.SocketID()] = conn
	r.mu.Unlock()
}

func (r *RoomRouter) Leave(socketID, room string) {
	r.mu.Lock()
	if members, ok := r.rooms[room]; ok {
		delete(members, socketID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	r.mu.Unlock()
}

// Broadcast delivers to every member of the room except the sender. An
// empty or unknown room is a no-op.
func (r *RoomRouter) Broadcast(room, excludeSocketID, event string, payload any) {
	r.mu.RLock()
	members := r.rooms[room]
	targets := make([]Sender, 0, len(members))
	for id, conn := range members {
		if id != excludeSocketID {
			targets = append(targets, conn)
		}
	}
	r.mu.RUnlock()

	for _, conn := range targets {
		conn.Send(event, payload)
	}
}

// SendTo delivers directly to one connection. A stale target is silently
// swallowed; the sender has no request/response channel to report it on.
func (r *RoomRouter) SendTo(socketID, event string, payload any) {
	r.mu.RLock()
	conn, ok := r.conns[socketID]
	r.mu.RUnlock()

	if !ok {
		r.log.Debug("dropping message for unknown connection", "socket_id", socketID, "event", event)
		return
	}
	conn.Send(event, payload)
}

func (r *RoomRouter) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *RoomRouter) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
