package monitor

import (
	"reflect"
	"testing"
	"time"

	"cloudesk/internal/models"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestPerceiveHealthy(t *testing.T) {
	state := Perceive("200 OK", nil, DefaultOptions())

	if state.OverallSeverity != models.SeverityOK {
		t.Errorf("expected ok severity, got %s", state.OverallSeverity)
	}
	if state.Degraded {
		t.Error("healthy state must not be degraded")
	}
	if state.RecentErrorCount != 0 {
		t.Errorf("expected 0 errors, got %d", state.RecentErrorCount)
	}
}

func TestPerceiveErrorStatusIsDegraded(t *testing.T) {
	state := Perceive("500 Error", nil, DefaultOptions())

	if state.OverallSeverity != models.SeverityError {
		t.Errorf("expected error severity, got %s", state.OverallSeverity)
	}
	if !state.Degraded {
		t.Error("500 status must mark the state degraded")
	}
}

func TestPerceiveNonOKStatusIsDegraded(t *testing.T) {
	for _, status := range []string{"404 Not Found", "429 Too Many Requests", "timeout"} {
		state := Perceive(status, nil, DefaultOptions())

		if state.OverallSeverity != models.SeverityWarning {
			t.Errorf("%q: expected warning severity, got %s", status, state.OverallSeverity)
		}
		if !state.Degraded {
			t.Errorf("%q: any non-OK status must mark the state degraded", status)
		}
	}
}

func TestPerceiveErrorHistoryIsDegraded(t *testing.T) {
	history := []models.HealthEvent{
		{Timestamp: ts("2025-06-01T10:00:00Z"), Severity: models.SeverityOK, Message: "fine"},
		{Timestamp: ts("2025-06-01T10:05:00Z"), Severity: models.SeverityError, Message: "db timeout"},
	}
	state := Perceive("200 OK", history, DefaultOptions())

	if !state.Degraded {
		t.Error("any error event in history must mark the state degraded")
	}
	if state.RecentErrorCount != 1 {
		t.Errorf("expected 1 error, got %d", state.RecentErrorCount)
	}
	if state.LatestError == nil || state.LatestError.Message != "db timeout" {
		t.Errorf("unexpected latest error %+v", state.LatestError)
	}
}

func TestPerceiveWarningBelowThreshold(t *testing.T) {
	history := []models.HealthEvent{
		{Timestamp: ts("2025-06-01T10:00:00Z"), Severity: models.SeverityWarning, Message: "slow"},
	}
	opts := Options{ErrorThreshold: 2}
	state := Perceive("200 OK", history, opts)

	if state.OverallSeverity != models.SeverityWarning {
		t.Errorf("expected warning severity, got %s", state.OverallSeverity)
	}
	if state.Degraded {
		t.Error("warning without enough errors must not be degraded")
	}
}

func TestPerceiveRecencyWindow(t *testing.T) {
	history := []models.HealthEvent{
		{Timestamp: ts("2025-06-01T08:00:00Z"), Severity: models.SeverityError, Message: "old incident"},
		{Timestamp: ts("2025-06-01T12:00:00Z"), Severity: models.SeverityOK, Message: "recovered"},
	}
	opts := Options{ErrorThreshold: 1, RecencyWindow: time.Hour}
	state := Perceive("200 OK", history, opts)

	if state.RecentErrorCount != 0 {
		t.Errorf("error outside the window must not count, got %d", state.RecentErrorCount)
	}
	if state.Degraded {
		t.Error("state must not be degraded by events outside the window")
	}
}

func TestPerceiveIdempotent(t *testing.T) {
	history := []models.HealthEvent{
		{Timestamp: ts("2025-06-01T10:00:00Z"), Severity: models.SeverityWarning, Message: "slow"},
		{Timestamp: ts("2025-06-01T10:05:00Z"), Severity: models.SeverityError, Message: "down"},
	}
	first := Perceive("503 Service Unavailable", history, DefaultOptions())
	second := Perceive("503 Service Unavailable", history, DefaultOptions())

	if !reflect.DeepEqual(first, second) {
		t.Errorf("perceive must be idempotent: %+v vs %+v", first, second)
	}
}

func TestEventsFromMonitorLog(t *testing.T) {
	log := []models.MonitorLogEntry{
		{Timestamp: "2025-06-01T10:00:00Z", Status: "OK", Msg: "healthy"},
		{Timestamp: "2025-06-01 10:05:00", Status: "Warning", Msg: "latency up"},
		{Timestamp: "not a time", Status: "Error", Msg: "crash"},
	}
	events := EventsFromMonitorLog(log)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if events[0].Severity != models.SeverityOK || events[0].Timestamp.IsZero() {
		t.Errorf("unexpected first event %+v", events[0])
	}
	if events[1].Severity != models.SeverityWarning || events[1].Timestamp.IsZero() {
		t.Errorf("unexpected second event %+v", events[1])
	}
	// Bad timestamps keep the event with a zero time.
	if events[2].Severity != models.SeverityError || !events[2].Timestamp.IsZero() {
		t.Errorf("unexpected third event %+v", events[2])
	}
}
