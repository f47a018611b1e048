package notify

import (
	"os"

	"github.com/sirupsen/logrus"

	"cloudesk/internal/models"
)

// AuditLog writes one structured line per dispatched action, separate
// from the application log so alert history can be shipped and queried
// on its own.
type AuditLog struct {
	logger *logrus.Logger
	file   *os.File
}

// NewAuditLog creates the audit logger. An empty path logs to stdout.
func NewAuditLog(path string) (*AuditLog, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	a := &AuditLog{logger: logger}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		logger.SetOutput(f)
		a.file = f
	}
	return a, nil
}

// Record logs one action outcome for the given case.
func (a *AuditLog) Record(caseID string, outcome models.ActionOutcome) {
	entry := a.logger.WithFields(logrus.Fields{
		"case_id": caseID,
		"channel": outcome.Kind,
		"status":  outcome.Status,
		"detail":  outcome.Detail,
	})
	switch outcome.Status {
	case models.ActionFailed:
		entry.Warn("alert dispatch failed")
	default:
		entry.Info("alert dispatched")
	}
}

// Close releases the audit log file, if any.
func (a *AuditLog) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}
