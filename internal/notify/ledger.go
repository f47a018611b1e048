package notify

import (
	"sync"

	"cloudesk/internal/models"
)

// Ledger is the append-only record of action outcomes for one case.
// Safe for concurrent appends; it lives exactly as long as the request.
type Ledger struct {
	mu       sync.Mutex
	outcomes []models.ActionOutcome
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends one outcome.
func (l *Ledger) Record(kind models.ActionKind, status models.ActionStatus, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outcomes = append(l.outcomes, models.ActionOutcome{Kind: kind, Status: status, Detail: detail})
}

// Outcomes returns the recorded outcomes in append order.
func (l *Ledger) Outcomes() []models.ActionOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.ActionOutcome, len(l.outcomes))
	copy(out, l.outcomes)
	return out
}

// ActionMap renders the ledger as the channel-to-outcome mapping the
// case result carries.
func (l *Ledger) ActionMap() map[string]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := make(map[string]string, len(l.outcomes))
	for _, o := range l.outcomes {
		m[string(o.Kind)] = o.Summary()
	}
	return m
}
