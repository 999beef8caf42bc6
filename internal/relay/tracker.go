package relay

import (
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"
)

// CallTracker owns the active-call map and drives each record through
// starting -> active -> ended. Every transition returns an outcome value;
// absent state degrades to a no-op rather than an error, since signaling
// events legitimately arrive late or out of order.
type CallTracker struct {
	calls   map[string]*CallRecord
	archive *StatsArchive
	clock   clock.Clock
	log     *slog.Logger
	mu      sync.Mutex
}

func NewCallTracker(archive *StatsArchive, clk clock.Clock, log *slog.Logger) *CallTracker {
	return &CallTracker{
		calls:   make(map[string]*CallRecord),
		archive: archive,
		clock:   clk,
		log:     log.With("component", "call_tracker"),
	}
}

// Start creates the active record for the key. If a still-open record
// exists it is archived with reason "superseded" before being replaced, so
// orphaned calls keep their statistics.
func (t *CallTracker) Start(roleID, sessionID, callMode, socketID string) StartOutcome {
	if callMode == "" {
		callMode = DefaultCallMode
	}
	now := t.clock.Now()
	key := CallKey(roleID, sessionID)

	t.mu.Lock()
	var superseded *CallStat
	if prev, ok := t.calls[key]; ok {
		superseded = t.archiveLocked(prev, socketID, EndReasonSuperseded)
	}

	call := &CallRecord{
		RoleID:       roleID,
		SessionID:    sessionID,
		CallMode:     callMode,
		State:        CallStarting,
		Status:       string(CallStarting),
		StartedAt:    now,
		LastUpdate:   now,
		Participants: []string{socketID},
	}
	t.calls[key] = call
	snapshot := call.clone()
	t.mu.Unlock()

	if superseded != nil {
		t.log.Warn("call superseded by new start",
			"call_key", key, "initiator", socketID, "orphaned_duration_ms", superseded.DurationMS)
	}
	return StartOutcome{Call: snapshot, Superseded: superseded}
}

// UpdateStatus mutates status, quality and last-update in place. An absent
// record is ignored.
func (t *CallTracker) UpdateStatus(roleID, sessionID, status, quality string) UpdateOutcome {
	key := CallKey(roleID, sessionID)

	t.mu.Lock()
	defer t.mu.Unlock()

	call, ok := t.calls[key]
	if !ok {
		return UpdateOutcome{}
	}
	call.State = CallActive
	call.Status = status
	call.Quality = quality
	call.LastUpdate = t.clock.Now()
	return UpdateOutcome{Updated: true, Call: call.clone()}
}

// End archives and removes the active record. Ending an already-absent key
// produces no archive entry and no error.
func (t *CallTracker) End(roleID, sessionID, socketID, reason string) EndOutcome {
	key := CallKey(roleID, sessionID)

	t.mu.Lock()
	call, ok := t.calls[key]
	if !ok {
		t.mu.Unlock()
		return EndOutcome{}
	}
	stat := t.archiveLocked(call, socketID, reason)
	t.mu.Unlock()

	return EndOutcome{Ended: true, Stat: stat, DurationMS: stat.DurationMS}
}

// archiveLocked converts the record into a stat, stores it, and drops the
// active entry. Caller holds t.mu.
func (t *CallTracker) archiveLocked(call *CallRecord, endedBy, reason string) *CallStat {
	now := t.clock.Now()
	call.State = CallEnded

	stat := &CallStat{
		RoleID:       call.RoleID,
		SessionID:    call.SessionID,
		CallMode:     call.CallMode,
		Status:       call.Status,
		Quality:      call.Quality,
		StartedAt:    call.StartedAt,
		EndedAt:      now,
		DurationMS:   now.Sub(call.StartedAt).Milliseconds(),
		Participants: append([]string(nil), call.Participants...),
		EndedBy:      endedBy,
		EndReason:    reason,
	}
	t.archive.Add(stat)
	delete(t.calls, call.Key())
	return stat
}

func (t *CallTracker) Get(roleID, sessionID string) (*CallRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	call, ok := t.calls[CallKey(roleID, sessionID)]
	if !ok {
		return nil, false
	}
	return call.clone(), true
}

func (t *CallTracker) ActiveCalls() []*CallRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	calls := make([]*CallRecord, 0, len(t.calls))
	for _, call := range t.calls {
		calls = append(calls, call.clone())
	}
	return calls
}

func (t *CallTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.calls)
}
