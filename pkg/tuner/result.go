package tuner

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classicvalues/nanotune/pkg/stage"
)

// Entry is one recorded measurement attempt. Entries are never mutated or
// removed once added.
type Entry struct {
	Name               string       `json:"name"`
	Success            bool         `json:"success"`
	TerminationReasons []string     `json:"terminationReasons"`
	Result             stage.Result `json:"result"`
	Comment            string       `json:"comment,omitempty"`
	Timestamp          time.Time    `json:"timestamp"`
}

// TuningResult is the append-only audit log of one tuning session. Export
// preserves insertion order.
type TuningResult struct {
	ID        string    `json:"id"`
	Device    string    `json:"device"`
	StartedAt time.Time `json:"startedAt"`

	mu      sync.Mutex
	entries []Entry
}

// NewTuningResult returns an empty result for one device-tuning session.
func NewTuningResult(deviceName string) *TuningResult {
	return &TuningResult{
		ID:        uuid.NewString(),
		Device:    deviceName,
		StartedAt: time.Now(),
	}
}

// AddResult appends one entry. There is no removal or edit operation.
func (r *TuningResult) AddResult(name string, success bool, terminationReasons []string, res stage.Result, comment string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = append(r.entries, Entry{
		Name:               name,
		Success:            success,
		TerminationReasons: terminationReasons,
		Result:             res,
		Comment:            comment,
		Timestamp:          time.Now(),
	})
}

// Entries returns a copy of the recorded entries in insertion order.
func (r *TuningResult) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of recorded entries.
func (r *TuningResult) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Export is the serializable view of a tuning result.
type Export struct {
	ID        string    `json:"id"`
	Device    string    `json:"device"`
	StartedAt time.Time `json:"startedAt"`
	Entries   []Entry   `json:"entries"`
}

// ToExport returns the full result in insertion order.
func (r *TuningResult) ToExport() Export {
	return Export{
		ID:        r.ID,
		Device:    r.Device,
		StartedAt: r.StartedAt,
		Entries:   r.Entries(),
	}
}
