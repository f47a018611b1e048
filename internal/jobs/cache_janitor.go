package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"cloudesk/internal/cache"
)

// CacheJanitor periodically purges expired disk-cache rows and enforces
// the disk tier's size bound. The memory tier cleans itself and Redis
// expires keys natively, so only the disk tier needs sweeping.
type CacheJanitor struct {
	scheduler  gocron.Scheduler
	disk       *cache.DiskTier
	cronSpec   string
	maxEntries int
}

// NewCacheJanitor validates the cron expression and builds the janitor.
func NewCacheJanitor(disk *cache.DiskTier, cronSpec string, maxEntries int) (*CacheJanitor, error) {
	if _, err := cron.ParseStandard(cronSpec); err != nil {
		return nil, fmt.Errorf("invalid cache cleanup cron %q: %w", cronSpec, err)
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &CacheJanitor{
		scheduler:  scheduler,
		disk:       disk,
		cronSpec:   cronSpec,
		maxEntries: maxEntries,
	}, nil
}

// Start registers the sweep job and begins the schedule.
func (j *CacheJanitor) Start() error {
	_, err := j.scheduler.NewJob(
		gocron.CronJob(j.cronSpec, false),
		gocron.NewTask(j.sweep),
		gocron.WithName("cache_janitor"),
	)
	if err != nil {
		return fmt.Errorf("failed to create janitor job: %w", err)
	}

	j.scheduler.Start()
	slog.Info("cache janitor started", "cron", j.cronSpec, "max_entries", j.maxEntries)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep.
func (j *CacheJanitor) Stop() error {
	return j.scheduler.Shutdown()
}

func (j *CacheJanitor) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	purged, err := j.disk.PurgeExpired(ctx)
	if err != nil {
		slog.Warn("cache sweep purge failed", "error", err)
		return
	}

	evicted, err := j.disk.EnforceLimit(ctx, j.maxEntries)
	if err != nil {
		slog.Warn("cache sweep eviction failed", "error", err)
		return
	}

	if purged > 0 || evicted > 0 {
		slog.Info("cache sweep completed", "purged", purged, "evicted", evicted)
	}
}
