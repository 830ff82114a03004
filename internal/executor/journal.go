package executor

import (
	"sync"
	"time"
)

// Journal remembers the signal IDs whose trades have been applied to the
// ledger, so a retried signal or a replayed broker confirmation is applied at
// most once within the TTL window. It is safe for concurrent use.
type Journal struct {
	applied map[string]time.Time // signalID -> applied at
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
}

// NewJournal creates a Journal that keeps entries for ttl.
func NewJournal(ttl time.Duration) *Journal {
	return &Journal{
		applied: make(map[string]time.Time),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Applied reports whether signalID was recorded within the TTL window.
func (j *Journal) Applied(signalID string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	at, ok := j.applied[signalID]
	return ok && j.now().Sub(at) < j.ttl
}

// Record marks signalID as applied.
func (j *Journal) Record(signalID string) {
	j.mu.Lock()
	j.applied[signalID] = j.now()
	j.mu.Unlock()
}

// Cleanup removes expired entries and returns how many were dropped. It
// should be called periodically to bound memory.
func (j *Journal) Cleanup() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	n := 0
	for id, at := range j.applied {
		if now.Sub(at) >= j.ttl {
			delete(j.applied, id)
			n++
		}
	}
	return n
}

// Len returns the number of entries, expired or not.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.applied)
}
