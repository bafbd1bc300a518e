package monitor

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hamed0406/ipmon/internal/registry"
)

type Status int

const (
	StatusUnknown Status = iota
	StatusUp
	StatusDown
)

func (s Status) String() string {
	switch s {
	case StatusUnknown:
		return "UNKNOWN"
	case StatusUp:
		return "UP"
	case StatusDown:
		return "DOWN"
	default:
		return "INVALID"
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// failureThreshold is the number of consecutive failed probes before a
// target is declared DOWN. A single success clears it from any state.
const failureThreshold = 3

// Record is the per-target health state. LatencyMS is nil while the
// target is unreachable or has never been probed.
type Record struct {
	Address     string    `json:"address"`
	Status      Status    `json:"status"`
	LastChecked time.Time `json:"last_checked"`
	LatencyMS   *float64  `json:"latency_ms"`
	Failures    int       `json:"failures"`
	Active      bool      `json:"active"`
}

// Board is the status registry: a concurrently readable map from target
// address to Record. Each record has exactly one writer, the polling
// task bound to it; every update is applied under the board lock so a
// reader never sees a half-written record.
type Board struct {
	mu      sync.RWMutex
	records map[string]*Record
}

func newBoard(targets []registry.Target) *Board {
	records := make(map[string]*Record, len(targets))
	for _, t := range targets {
		records[t.Address] = &Record{
			Address: t.Address,
			Status:  StatusUnknown,
			Active:  t.Active,
		}
	}
	return &Board{records: records}
}

// Get returns a copy of the record for address.
func (b *Board) Get(address string) (Record, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.records[address]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Snapshot returns a copy of every record, ordered by address. The
// whole listing is taken under one lock acquisition.
func (b *Board) Snapshot() []Record {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Record, 0, len(b.records))
	for _, r := range b.records {
		out = append(out, *r)
	}
	slices.SortFunc(out, func(a, c Record) int {
		return strings.Compare(a.Address, c.Address)
	})
	return out
}

// applySuccess records a successful probe: UP, fresh latency, counter
// cleared. It returns the prior status and a copy of the updated record.
func (b *Board) applySuccess(address string, latency time.Duration, now time.Time) (Status, Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[address]
	if !ok {
		return StatusUnknown, Record{}
	}
	prev := r.Status
	ms := float64(latency) / float64(time.Millisecond)
	r.Status = StatusUp
	r.LastChecked = now
	r.LatencyMS = &ms
	r.Failures = 0
	return prev, *r
}

// applyFailure records a failed probe: counter incremented, latency
// cleared, DOWN once the counter reaches the threshold. It returns the
// prior status and a copy of the updated record.
func (b *Board) applyFailure(address string, now time.Time) (Status, Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	r, ok := b.records[address]
	if !ok {
		return StatusUnknown, Record{}
	}
	prev := r.Status
	r.Failures++
	r.LastChecked = now
	r.LatencyMS = nil
	if r.Failures >= failureThreshold {
		r.Status = StatusDown
	}
	return prev, *r
}
