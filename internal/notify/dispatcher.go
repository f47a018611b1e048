package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"cloudesk/internal/metrics"
	"cloudesk/internal/models"
)

// Dispatcher fans an alert out to every enabled channel concurrently
// and records each outcome into the ledger. Channel failures never
// affect each other or the caller; the ledger keeps the channels in
// dispatch-initiation order even though completions race.
type Dispatcher struct {
	notifiers []Notifier
	timeout   time.Duration
	audit     *AuditLog
}

// NewDispatcher creates a dispatcher over the enabled channels. audit
// may be nil.
func NewDispatcher(notifiers []Notifier, timeout time.Duration, audit *AuditLog) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{notifiers: notifiers, timeout: timeout, audit: audit}
}

// Enabled reports whether any channel is configured.
func (d *Dispatcher) Enabled() bool { return len(d.notifiers) > 0 }

// Dispatch sends the alert on every channel and records the outcomes
// into ledger in initiation order.
func (d *Dispatcher) Dispatch(ctx context.Context, alert Alert, ledger *Ledger) {
	type result struct {
		status models.ActionStatus
		detail string
	}
	results := make([]result, len(d.notifiers))

	var wg sync.WaitGroup
	for i, n := range d.notifiers {
		wg.Add(1)
		go func(i int, n Notifier) {
			defer wg.Done()
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			defer cancel()

			detail, err := n.Send(sendCtx, alert)
			switch {
			case err == nil:
				results[i] = result{status: models.ActionSent, detail: detail}
			case errors.Is(err, ErrSkipped):
				results[i] = result{status: models.ActionSkipped, detail: detail}
			case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
				results[i] = result{status: models.ActionFailed, detail: "timeout: " + err.Error()}
			default:
				results[i] = result{status: models.ActionFailed, detail: err.Error()}
			}
		}(i, n)
	}
	// Every Send honors its context, so this join is bounded by the
	// per-channel timeout; a caller-level cancellation surfaces as a
	// failed outcome rather than a dropped entry.
	wg.Wait()

	for i, n := range d.notifiers {
		ledger.Record(n.Kind(), results[i].status, results[i].detail)
		metrics.AlertsDispatched.WithLabelValues(string(n.Kind()), string(results[i].status)).Inc()
		if d.audit != nil {
			d.audit.Record(alert.CaseID, models.ActionOutcome{
				Kind:   n.Kind(),
				Status: results[i].status,
				Detail: results[i].detail,
			})
		}
	}
}
