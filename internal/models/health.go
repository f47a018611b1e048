package models

import (
	"strconv"
	"strings"
	"time"
)

// Severity classifies a health signal.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "ok"
	}
}

// ParseSeverity maps a monitor-log status string to a severity.
// Unrecognized statuses count as ok rather than inventing a problem.
func ParseSeverity(status string) Severity {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "error", "err", "critical", "fatal":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityOK
	}
}

// ParseAPIStatus derives a severity from an API status line such as
// "200 OK" or "500 Internal Server Error".
func ParseAPIStatus(status string) Severity {
	s := strings.TrimSpace(status)
	if s == "" {
		return SeverityOK
	}
	if code, err := strconv.Atoi(strings.Fields(s)[0]); err == nil {
		switch {
		case code >= 500:
			return SeverityError
		case code >= 400:
			return SeverityWarning
		default:
			return SeverityOK
		}
	}
	if strings.EqualFold(s, "ok") {
		return SeverityOK
	}
	return SeverityWarning
}

// HealthEvent is a normalized monitor-log entry. Timestamp may be zero when
// the source line carried an unparseable time; such events are treated as
// recent.
type HealthEvent struct {
	Timestamp time.Time
	Severity  Severity
	Message   string
}

// SystemState is the qualitative health derived for one request. It is
// recomputed from the supplied inputs every time and never persisted.
type SystemState struct {
	OverallSeverity  Severity
	Degraded         bool
	RecentErrorCount int
	LatestError      *HealthEvent
}
