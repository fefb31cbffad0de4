// Package memory provides an in-memory implementation of the
// webhook.Deduper interface. Primarily intended for testing, development,
// and single-replica deployments.
package memory

import (
	"context"
	"sync"
	"time"
)

// Deduper implements webhook.Deduper using an in-memory map with lazy
// expiry.
type Deduper struct {
	mu      sync.Mutex
	entries map[string]time.Time
	ops     int
}

const sweepEvery = 256

// New creates a new in-memory deduper.
func New() *Deduper {
	return &Deduper{
		entries: make(map[string]time.Time),
	}
}

// Seen implements webhook.Deduper.
func (d *Deduper) Seen(_ context.Context, eventID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeSweep()
	expiry, ok := d.entries[eventID]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(d.entries, eventID)
		return false, nil
	}
	return true, nil
}

// Mark implements webhook.Deduper.
func (d *Deduper) Mark(_ context.Context, eventID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.maybeSweep()
	d.entries[eventID] = time.Now().Add(ttl)
	return nil
}

func (d *Deduper) maybeSweep() {
	d.ops++
	if d.ops%sweepEvery != 0 {
		return
	}
	now := time.Now()
	for id, expiry := range d.entries {
		if now.After(expiry) {
			delete(d.entries, id)
		}
	}
}
