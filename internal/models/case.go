package models

import (
	"fmt"
	"strings"
)

// MonitorLogEntry is one line of the upstream monitor log supplied with a case.
type MonitorLogEntry struct {
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Msg       string `json:"msg"`
}

// CaseInput is the request payload for a single support case.
type CaseInput struct {
	CaseID          string            `json:"case_id"`
	UserQuery       string            `json:"user_query"`
	APIStatus       string            `json:"api_status"`
	APIResponseTime string            `json:"api_response_time"`
	MonitorLog      []MonitorLogEntry `json:"monitor_log"`
}

// ValidationError reports malformed case input. It is the only error the
// decision pipeline surfaces to callers; everything else is absorbed into a
// degraded partial reply.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid case input: %s %s", e.Field, e.Reason)
}

// Validate checks the required fields of a case.
func (c *CaseInput) Validate() error {
	if strings.TrimSpace(c.CaseID) == "" {
		return &ValidationError{Field: "case_id", Reason: "is required"}
	}
	if strings.TrimSpace(c.UserQuery) == "" {
		return &ValidationError{Field: "user_query", Reason: "is required"}
	}
	return nil
}

// CaseResult is the assembled response for a case: the reply text plus the
// outcome of every alert channel that was dispatched for this request.
type CaseResult struct {
	CaseID          string            `json:"case_id"`
	Reply           string            `json:"reply"`
	ActionTriggered map[string]string `json:"action_triggered"`
}
