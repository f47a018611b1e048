package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"cloudesk/internal/metrics"
)

// Tiered chains cache tiers from fastest to slowest. Reads probe tiers
// in order and backfill every faster tier on a hit, carrying over the
// remaining lifetime capped by each faster tier's own TTL. Misses go
// through a single-flight compute so overlapping callers for the same
// key share one computation, including its failure.
type Tiered struct {
	tiers []Tier
	group singleflight.Group
}

// NewTiered builds the cache from the given tiers, fastest first. At
// least one tier (memory) is required.
func NewTiered(tiers ...Tier) *Tiered {
	return &Tiered{tiers: tiers}
}

// Get probes tiers in order and returns the first live value.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	for i, tier := range t.tiers {
		entry, ok := tier.Get(ctx, key)
		if !ok {
			continue
		}
		t.backfill(ctx, key, entry, i)
		metrics.CacheHits.WithLabelValues(tier.Name()).Inc()
		return entry.Value, true
	}
	return nil, false
}

// Set writes the value to every tier with that tier's own TTL. ttl > 0
// caps the lifetime below the tiers' configured values.
func (t *Tiered) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	for _, tier := range t.tiers {
		tier.Set(ctx, key, value, ttl)
	}
}

// Delete removes the key from every tier.
func (t *Tiered) Delete(ctx context.Context, key string) {
	for _, tier := range t.tiers {
		tier.Delete(ctx, key)
	}
}

// GetOrCompute returns the cached value for key, or runs compute exactly
// once among concurrent callers and stores the result in every tier.
// A compute failure is propagated to all waiters and nothing is cached.
func (t *Tiered) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if value, ok := t.Get(ctx, key); ok {
		return value, nil
	}

	v, err, _ := t.group.Do(key, func() (interface{}, error) {
		// A concurrent winner may have populated the cache between our
		// miss and acquiring the flight.
		if value, ok := t.Get(ctx, key); ok {
			return value, nil
		}
		metrics.CacheMisses.Inc()
		value, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		t.Set(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// backfill copies a hit from tier index hit into every faster tier,
// keeping the remaining lifetime but never exceeding the faster tier's
// configured TTL.
func (t *Tiered) backfill(ctx context.Context, key string, entry Entry, hit int) {
	remaining := entry.Remaining(time.Now())
	if remaining <= 0 {
		return
	}
	for i := 0; i < hit; i++ {
		ttl := remaining
		if max := t.tiers[i].TTL(); max > 0 && ttl > max {
			ttl = max
		}
		t.tiers[i].Set(ctx, key, entry.Value, ttl)
	}
}
