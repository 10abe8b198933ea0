package executor

import (
	"sync"
	"time"
)

// Dedup drops repeated trade intents inside a time-to-live window. The
// strategy engine can legitimately re-emit an exit on consecutive ticks while
// a close is unconfirmed; the window keeps that from double-selling. Safe for
// concurrent use.
type Dedup struct {
	mu   sync.Mutex
	seen map[string]time.Time // intent ID -> first seen
	ttl  time.Duration
}

// NewDedup creates a Dedup treating an intent ID seen within ttl as a
// duplicate.
func NewDedup(ttl time.Duration) *Dedup {
	return &Dedup{
		seen: make(map[string]time.Time),
		ttl:  ttl,
	}
}

// IsDuplicate reports whether id was seen within the TTL window. An unseen or
// expired id is recorded and reported as new.
func (d *Dedup) IsDuplicate(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	if seenAt, ok := d.seen[id]; ok && now.Sub(seenAt) < d.ttl {
		return true
	}
	d.seen[id] = now
	return false
}

// Cleanup evicts expired entries. Call periodically to bound memory.
func (d *Dedup) Cleanup() {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for id, seenAt := range d.seen {
		if now.Sub(seenAt) >= d.ttl {
			delete(d.seen, id)
		}
	}
}

// Len returns the number of tracked entries, expired ones included.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
