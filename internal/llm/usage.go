package llm

import (
	"sync/atomic"

	"cloudesk/internal/models"
)

// UsageCounter accumulates token usage across all model calls in the
// process. Counters are atomic so concurrent Generate calls stay
// accurate; reset happens only at process start.
type UsageCounter struct {
	prompt     atomic.Int64
	completion atomic.Int64
	calls      atomic.Int64
}

// NewUsageCounter creates a zeroed counter.
func NewUsageCounter() *UsageCounter {
	return &UsageCounter{}
}

// Add records one call's usage.
func (u *UsageCounter) Add(usage models.TokenUsage) {
	u.prompt.Add(int64(usage.Prompt))
	u.completion.Add(int64(usage.Completion))
	u.calls.Add(1)
}

// Snapshot returns the accumulated totals.
func (u *UsageCounter) Snapshot() (usage models.TokenUsage, calls int64) {
	return models.TokenUsage{
		Prompt:     int(u.prompt.Load()),
		Completion: int(u.completion.Load()),
	}, u.calls.Load()
}
