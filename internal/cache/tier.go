package cache

import (
	"context"
	"time"
)

// Entry is one cached value with its absolute expiry. Values are opaque
// bytes; callers own serialization.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Remaining returns the entry's remaining lifetime, zero if expired.
func (e Entry) Remaining(now time.Time) time.Duration {
	d := e.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Tier is one cache layer. Implementations never return errors: a tier
// fault degrades the tier to a no-op internally and reads report a miss,
// so a broken disk or unreachable Redis can never fail a lookup.
type Tier interface {
	Name() string
	Get(ctx context.Context, key string) (Entry, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	Delete(ctx context.Context, key string)
	// TTL is the tier's configured lifetime for fresh writes; it also
	// caps the remaining lifetime carried over when a slower tier's hit
	// is backfilled into this one.
	TTL() time.Duration
}
