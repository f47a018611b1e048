package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func newTestDiskTier(t *testing.T, ttl time.Duration) *DiskTier {
	t.Helper()
	d, err := NewDiskTier(filepath.Join(t.TempDir(), "cache.db"), ttl)
	if err != nil {
		t.Fatalf("NewDiskTier failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDiskTierRoundTrip(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	d.Set(ctx, "k", []byte("v"), 0)

	entry, ok := d.Get(ctx, "k")
	if !ok || string(entry.Value) != "v" {
		t.Fatalf("expected hit, got %q ok=%v", entry.Value, ok)
	}
	if rem := entry.Remaining(time.Now()); rem <= 0 || rem > time.Hour {
		t.Errorf("unexpected remaining lifetime %v", rem)
	}
}

func TestDiskTierOverwrite(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	d.Set(ctx, "k", []byte("old"), 0)
	d.Set(ctx, "k", []byte("new"), 0)

	entry, ok := d.Get(ctx, "k")
	if !ok || string(entry.Value) != "new" {
		t.Fatalf("expected overwritten value, got %q ok=%v", entry.Value, ok)
	}
}

func TestDiskTierExpiredEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	d.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	if _, ok := d.Get(ctx, "k"); ok {
		t.Error("expected expired entry to read as a miss")
	}
}

func TestDiskTierPurgeExpired(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	d.Set(ctx, "live", []byte("v"), time.Hour)
	d.Set(ctx, "dead", []byte("v"), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	purged, err := d.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 purged row, got %d", purged)
	}
	if _, ok := d.Get(ctx, "live"); !ok {
		t.Error("live entry must survive the purge")
	}
}

func TestDiskTierEnforceLimit(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	for i := 0; i < 5; i++ {
		d.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Hour)
		time.Sleep(2 * time.Millisecond) // distinct last_access ordering
	}
	// Touch k0 so it is the most recently accessed.
	d.Get(ctx, "k0")

	evicted, err := d.EnforceLimit(ctx, 2)
	if err != nil {
		t.Fatalf("EnforceLimit failed: %v", err)
	}
	if evicted != 3 {
		t.Errorf("expected 3 evicted rows, got %d", evicted)
	}
	if _, ok := d.Get(ctx, "k0"); !ok {
		t.Error("most recently accessed entry must survive")
	}
	if _, ok := d.Get(ctx, "k4"); !ok {
		t.Error("second most recent entry must survive")
	}
	if _, ok := d.Get(ctx, "k1"); ok {
		t.Error("least recently accessed entry should be evicted")
	}
}

func TestDiskTierDegradesAfterFault(t *testing.T) {
	ctx := context.Background()
	d := newTestDiskTier(t, time.Hour)

	d.Set(ctx, "k", []byte("v"), 0)

	// Forcibly break the tier by closing its database out from under it.
	d.db.Close()

	if _, ok := d.Get(ctx, "k"); ok {
		t.Error("expected miss from a faulted tier")
	}
	if !d.Degraded() {
		t.Fatal("expected tier to mark itself degraded after the fault")
	}

	// Subsequent operations are silent no-ops.
	d.Set(ctx, "k2", []byte("v"), 0)
	if _, ok := d.Get(ctx, "k2"); ok {
		t.Error("degraded tier must drop writes")
	}
}
