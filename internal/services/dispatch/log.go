package dispatch

import (
	"sync"

	"github.com/tobiasge/wakerelay/internal/models"
)

// DefaultLogCapacity is the bounded history size for dispatch attempts.
const DefaultLogCapacity = 10

// Log is a bounded, FIFO-evicting history of dispatch attempts. It is owned
// by the orchestrator and handed by reference to whatever presentation
// layer needs it; appends are mutex-guarded so concurrent dispatches stay
// safe.
type Log struct {
	mu       sync.Mutex
	capacity int
	entries  []models.DispatchAttempt
}

// NewLog creates a log holding at most capacity entries. Non-positive
// capacities fall back to DefaultLogCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultLogCapacity
	}
	return &Log{
		capacity: capacity,
		entries:  make([]models.DispatchAttempt, 0, capacity),
	}
}

// Append records one attempt, evicting the oldest entry when full.
func (l *Log) Append(attempt models.DispatchAttempt) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == l.capacity {
		copy(l.entries, l.entries[1:])
		l.entries[l.capacity-1] = attempt
		return
	}
	l.entries = append(l.entries, attempt)
}

// Entries returns a snapshot of the history, oldest first.
func (l *Log) Entries() []models.DispatchAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.DispatchAttempt, len(l.entries))
	copy(out, l.entries)
	return out
}

// Latest returns the most recent attempt, if any.
func (l *Log) Latest() (models.DispatchAttempt, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return models.DispatchAttempt{}, false
	}
	return l.entries[len(l.entries)-1], true
}
