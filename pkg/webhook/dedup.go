package webhook

import (
	"context"
	"time"
)

// Deduper suppresses re-deliveries by event ID before any network work.
// It is a best-effort fast path: implementations may lose entries (TTL
// expiry, restarts) and errors are ignored, because the watermark check in
// the engine remains the authoritative duplicate guard.
type Deduper interface {
	// Seen reports whether the event ID was already processed.
	Seen(ctx context.Context, eventID string) (bool, error)

	// Mark records the event ID as processed for at least ttl.
	Mark(ctx context.Context, eventID string, ttl time.Duration) error
}
