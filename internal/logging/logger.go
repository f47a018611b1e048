package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithCase returns a logger with case context fields attached.
// Use this for all logging within a single case run.
func WithCase(caseID string) *slog.Logger {
	return slog.With("case_id", caseID)
}

// WithTask returns a logger scoped to a specific planned task within a case run.
func WithTask(logger *slog.Logger, task string) *slog.Logger {
	return logger.With("task", task)
}
