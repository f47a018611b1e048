package monitor

import (
	"time"

	"cloudesk/internal/models"
)

// Options bounds what counts as recent when weighing history.
type Options struct {
	// ErrorThreshold is the error-event count at which a warning-level
	// state is already considered degraded.
	ErrorThreshold int
	// RecencyWindow limits which history events are considered, measured
	// back from the newest event's timestamp. Zero considers everything.
	RecencyWindow time.Duration
}

// DefaultOptions mirrors the documented defaults.
func DefaultOptions() Options {
	return Options{ErrorThreshold: 1}
}

// Perceive derives the system state from the point-in-time status and
// the supplied health history. It is pure: no clock, cache or network
// access, so identical inputs always produce identical states and a
// recorded request can be replayed.
func Perceive(currentStatus string, history []models.HealthEvent, opts Options) models.SystemState {
	if opts.ErrorThreshold <= 0 {
		opts.ErrorThreshold = 1
	}

	events := history
	if opts.RecencyWindow > 0 && len(history) > 0 {
		// The window anchors on the newest supplied event, not on wall
		// time, keeping the function reproducible.
		var newest time.Time
		for _, e := range history {
			if e.Timestamp.After(newest) {
				newest = e.Timestamp
			}
		}
		cutoff := newest.Add(-opts.RecencyWindow)
		events = make([]models.HealthEvent, 0, len(history))
		for _, e := range history {
			if !e.Timestamp.Before(cutoff) {
				events = append(events, e)
			}
		}
	}

	apiSeverity := models.ParseAPIStatus(currentStatus)
	state := models.SystemState{
		OverallSeverity: apiSeverity,
	}
	for i := range events {
		e := events[i]
		if e.Severity > state.OverallSeverity {
			state.OverallSeverity = e.Severity
		}
		if e.Severity == models.SeverityError {
			state.RecentErrorCount++
			if state.LatestError == nil || e.Timestamp.After(state.LatestError.Timestamp) {
				latest := e
				state.LatestError = &latest
			}
		}
	}

	switch {
	case apiSeverity != models.SeverityOK:
		// Any non-OK point-in-time status (504, 404, "timeout") means the
		// API is misbehaving right now and always alerts.
		state.Degraded = true
	case state.OverallSeverity == models.SeverityError:
		state.Degraded = true
	case state.OverallSeverity == models.SeverityWarning && state.RecentErrorCount >= opts.ErrorThreshold:
		state.Degraded = true
	}

	return state
}

// Timestamp layouts seen in monitor exports.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"15:04:05",
}

// EventsFromMonitorLog converts raw monitor log lines into typed health
// events. Timestamps are parsed best-effort across known layouts; an
// unparseable timestamp yields a zero time rather than dropping the
// event, since severity matters more than ordering here.
func EventsFromMonitorLog(log []models.MonitorLogEntry) []models.HealthEvent {
	events := make([]models.HealthEvent, 0, len(log))
	for _, line := range log {
		events = append(events, models.HealthEvent{
			Timestamp: parseTimestamp(line.Timestamp),
			Severity:  models.ParseSeverity(line.Status),
			Message:   line.Msg,
		})
	}
	return events
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}
