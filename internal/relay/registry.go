package relay

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Session is one registered participant connection. Records are immutable
// after Register; a client changes rooms by disconnecting and rejoining.
type Session struct {
	SocketID  string
	UserID    string
	RoleID    string
	SessionID string
	RoomName  string
	JoinedAt  time.Time
}

// CallKey identifies one logical call between participants.
func CallKey(roleID, sessionID string) string {
	return roleID + "_" + sessionID
}

// RoomName derives the multicast group name for a call key.
func RoomName(roleID, sessionID string) string {
	return "call_" + CallKey(roleID, sessionID)
}

type SessionRegistry struct {
	sessions map[string]*Session
	clock    clock.Clock
	mu       sync.RWMutex
}

func NewSessionRegistry(clk clock.Clock) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Session),
		clock:    clk,
	}
}

// Register stores the session record and returns it with the derived room
// name. A repeated register from the same socket replaces the old record;
// the caller is responsible for room membership either way.
func (r *SessionRegistry) Register(socketID, userID, roleID, sessionID string) *Session {
	sess := &Session{
		SocketID:  socketID,
		UserID:    userID,
		RoleID:    roleID,
		SessionID: sessionID,
		RoomName:  RoomName(roleID, sessionID),
		JoinedAt:  r.clock.Now(),
	}

	r.mu.Lock()
	r.sessions[socketID] = sess
	r.mu.Unlock()

	return sess
}

func (r *SessionRegistry) Lookup(socketID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[socketID]
	return sess, ok
}

// Remove deletes and returns the record so disconnect handling can still
// reference the room and call key after the session is gone.
func (r *SessionRegistry) Remove(socketID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[socketID]
	if ok {
		delete(r.sessions, socketID)
	}
	return sess, ok
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *SessionRegistry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}
