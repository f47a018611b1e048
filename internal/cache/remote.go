package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"cloudesk/internal/metrics"
)

// RemoteTier stores entries in Redis so multiple instances share warm
// state. Redis being unreachable is reported as a miss, never as an
// error; after the first fault the tier degrades to a no-op.
type RemoteTier struct {
	client   *redis.Client
	ttl      time.Duration
	prefix   string
	degraded atomic.Bool
}

// NewRemoteTier connects to Redis and verifies the connection.
func NewRemoteTier(redisURL string, ttl time.Duration) (*RemoteTier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 2
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RemoteTier{client: client, ttl: ttl, prefix: "cloudesk:cache:"}, nil
}

func (r *RemoteTier) Name() string       { return "remote" }
func (r *RemoteTier) TTL() time.Duration { return r.ttl }

// Degraded reports whether the tier has shut itself off after a fault.
func (r *RemoteTier) Degraded() bool { return r.degraded.Load() }

func (r *RemoteTier) fault(op string, err error) {
	if r.degraded.CompareAndSwap(false, true) {
		slog.Error("remote cache tier degraded", "op", op, "error", err)
		metrics.CacheTierFaults.WithLabelValues("remote").Inc()
	}
}

func (r *RemoteTier) Get(ctx context.Context, key string) (Entry, bool) {
	if r.degraded.Load() {
		return Entry{}, false
	}

	pipe := r.client.Pipeline()
	getCmd := pipe.Get(ctx, r.prefix+key)
	ttlCmd := pipe.PTTL(ctx, r.prefix+key)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return Entry{}, false
		}
		r.fault("get", err)
		return Entry{}, false
	}

	value, err := getCmd.Bytes()
	if err != nil {
		return Entry{}, false
	}
	remaining, err := ttlCmd.Result()
	if err != nil || remaining <= 0 {
		// No expiry recorded; treat as freshly written with full TTL.
		remaining = r.ttl
	}
	return Entry{Value: value, ExpiresAt: time.Now().Add(remaining)}, true
}

func (r *RemoteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if r.degraded.Load() {
		return
	}
	if ttl <= 0 || ttl > r.ttl {
		ttl = r.ttl
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		r.fault("set", err)
	}
}

func (r *RemoteTier) Delete(ctx context.Context, key string) {
	if r.degraded.Load() {
		return
	}
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.fault("delete", err)
	}
}

// Close closes the Redis connection.
func (r *RemoteTier) Close() error { return r.client.Close() }
