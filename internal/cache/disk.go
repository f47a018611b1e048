package cache

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"cloudesk/internal/metrics"
)

const diskSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	expires_at  INTEGER NOT NULL,
	last_access INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON cache_entries(expires_at);
`

// DiskTier persists cache entries in a local SQLite database so warm
// state survives restarts. The first operational fault flips the tier
// into degraded mode: reads become misses and writes are dropped, and
// the overall cache keeps working without it.
type DiskTier struct {
	db       *sql.DB
	ttl      time.Duration
	degraded atomic.Bool
}

// NewDiskTier opens (creating if needed) the cache database at path.
func NewDiskTier(path string, ttl time.Duration) (*DiskTier, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(diskSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init cache schema: %w", err)
	}

	return &DiskTier{db: db, ttl: ttl}, nil
}

func (d *DiskTier) Name() string       { return "disk" }
func (d *DiskTier) TTL() time.Duration { return d.ttl }

// Degraded reports whether the tier has shut itself off after a fault.
func (d *DiskTier) Degraded() bool { return d.degraded.Load() }

func (d *DiskTier) fault(op string, err error) {
	if d.degraded.CompareAndSwap(false, true) {
		slog.Error("disk cache tier degraded", "op", op, "error", err)
		metrics.CacheTierFaults.WithLabelValues("disk").Inc()
	}
}

func (d *DiskTier) Get(ctx context.Context, key string) (Entry, bool) {
	if d.degraded.Load() {
		return Entry{}, false
	}

	var value []byte
	var expiresAt int64
	err := d.db.QueryRowContext(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = ?`, key,
	).Scan(&value, &expiresAt)
	if err == sql.ErrNoRows {
		return Entry{}, false
	}
	if err != nil {
		d.fault("get", err)
		return Entry{}, false
	}

	now := time.Now()
	exp := time.Unix(0, expiresAt)
	if !exp.After(now) {
		d.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
		return Entry{}, false
	}

	// Best effort; a failed touch does not degrade the tier.
	d.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_access = ? WHERE key = ?`, now.UnixNano(), key)

	return Entry{Value: value, ExpiresAt: exp}, true
}

func (d *DiskTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if d.degraded.Load() {
		return
	}
	if ttl <= 0 || ttl > d.ttl {
		ttl = d.ttl
	}

	now := time.Now()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at, last_access) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at, last_access = excluded.last_access`,
		key, value, now.Add(ttl).UnixNano(), now.UnixNano())
	if err != nil {
		d.fault("set", err)
	}
}

func (d *DiskTier) Delete(ctx context.Context, key string) {
	if d.degraded.Load() {
		return
	}
	if _, err := d.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key); err != nil {
		d.fault("delete", err)
	}
}

// PurgeExpired removes expired rows; run periodically by the janitor.
func (d *DiskTier) PurgeExpired(ctx context.Context) (int64, error) {
	if d.degraded.Load() {
		return 0, nil
	}
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, time.Now().UnixNano())
	if err != nil {
		d.fault("purge", err)
		return 0, err
	}
	return res.RowsAffected()
}

// EnforceLimit evicts least-recently-accessed rows beyond maxEntries.
func (d *DiskTier) EnforceLimit(ctx context.Context, maxEntries int) (int64, error) {
	if d.degraded.Load() || maxEntries <= 0 {
		return 0, nil
	}
	res, err := d.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE key IN (
			SELECT key FROM cache_entries ORDER BY last_access DESC LIMIT -1 OFFSET ?
		)`, maxEntries)
	if err != nil {
		d.fault("enforce_limit", err)
		return 0, err
	}
	return res.RowsAffected()
}

// Close closes the underlying database.
func (d *DiskTier) Close() error { return d.db.Close() }
