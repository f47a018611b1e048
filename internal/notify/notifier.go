package notify

import (
	"context"
	"errors"

	"cloudesk/internal/models"
)

// ErrSkipped signals that a channel intentionally did not send, for
// example in dry-run mode. The ledger records it as skipped, not failed.
var ErrSkipped = errors.New("notification skipped")

// Alert carries everything a channel needs to render an incident
// message. Fields mirror the case input so channels never reach back
// into the pipeline.
type Alert struct {
	CaseID          string
	UserQuery       string
	APIStatus       string
	APIResponseTime string
	MonitorLog      []models.MonitorLogEntry
	LatestError     *models.HealthEvent
	StateSummary    string
}

// Notifier is one alert channel. Send returns a human-readable detail
// (delivery receipt, document id) and an error; ErrSkipped marks the
// dispatch as skipped rather than failed. Retry policy, if any, lives
// inside the implementation.
type Notifier interface {
	Kind() models.ActionKind
	Send(ctx context.Context, alert Alert) (detail string, err error)
}
