package relay

import "time"

// CallState is the tracker-side lifecycle of a call record. Client-reported
// status strings are carried separately and stay free-form.
type CallState string

const (
	CallStarting CallState = "starting"
	CallActive   CallState = "active"
	CallEnded    CallState = "ended"
)

// End reasons recorded on archived calls.
const (
	EndReasonExplicit   = "explicit"
	EndReasonDisconnect = "disconnect"
	EndReasonSuperseded = "superseded"
)

// CallRecord is one active call, keyed by CallKey(RoleID, SessionID). At
// most one record exists per key at any time.
type CallRecord struct {
	RoleID       string
	SessionID    string
	CallMode     string
	State        CallState
	Status       string
	Quality      string
	StartedAt    time.Time
	LastUpdate   time.Time
	Participants []string
}

func (c *CallRecord) Key() string {
	return CallKey(c.RoleID, c.SessionID)
}

func (c *CallRecord) clone() *CallRecord {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp
}

// StartOutcome reports what a start transition did. Superseded is non-nil
// when a still-open record for the same key was archived to make room.
type StartOutcome struct {
	Call       *CallRecord
	Superseded *CallStat
}

// UpdateOutcome reports whether a status update found a record to mutate.
type UpdateOutcome struct {
	Updated bool
	Call    *CallRecord
}

// EndOutcome reports what an end transition did. Ended is false when no
// active record existed for the key, in which case DurationMS is zero and
// Stat is nil.
type EndOutcome struct {
	Ended      bool
	Stat       *CallStat
	DurationMS int64
}
