package relay

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultStatsCapacity = 1000

// CallStat is the immutable archival copy of a terminated call.
type CallStat struct {
	ID           string
	RoleID       string
	SessionID    string
	CallMode     string
	Status       string
	Quality      string
	StartedAt    time.Time
	EndedAt      time.Time
	DurationMS   int64
	Participants []string
	EndedBy      string
	EndReason    string
}

// StatsArchive is an append-only, fixed-capacity store of terminated calls.
// When full, the oldest entries are evicted; entries are never mutated.
type StatsArchive struct {
	ring *lru.Cache[string, *CallStat]
	mu   sync.Mutex
}

func NewStatsArchive(capacity int) (*StatsArchive, error) {
	if capacity <= 0 {
		capacity = DefaultStatsCapacity
	}
	ring, err := lru.New[string, *CallStat](capacity)
	if err != nil {
		return nil, err
	}
	return &StatsArchive{ring: ring}, nil
}

// Add archives a stat under {callKey}_{endMillis} so repeated calls on the
// same key keep distinct history entries.
func (a *StatsArchive) Add(stat *CallStat) {
	if stat.ID == "" {
		stat.ID = fmt.Sprintf("%s_%d", CallKey(stat.RoleID, stat.SessionID), stat.EndedAt.UnixMilli())
	}
	a.mu.Lock()
	a.ring.Add(stat.ID, stat)
	a.mu.Unlock()
}

// Recent returns up to n archived stats, oldest first, taken from the newest
// end of the archive.
func (a *StatsArchive) Recent(n int) []*CallStat {
	a.mu.Lock()
	values := a.ring.Values()
	a.mu.Unlock()

	if n > 0 && len(values) > n {
		values = values[len(values)-n:]
	}
	return values
}

func (a *StatsArchive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ring.Len()
}
