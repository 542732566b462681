package worker

import (
	"context"
	"log/slog"
	"time"

	"task-receiver/internal/models"
	"task-receiver/internal/scheduler"
)

// simulatedWork is how long the stand-in job pretends to work.
const simulatedWork = time.Second

// NewSimulated returns the stand-in job handler used when no Gemini
// credentials are configured: it logs the submission, idles briefly, and
// succeeds.
func NewSimulated(logger *slog.Logger) scheduler.Handler {
	return NewSimulatedWithDuration(logger, simulatedWork)
}

// NewSimulatedWithDuration is NewSimulated with a configurable idle time
// so tests stay fast.
func NewSimulatedWithDuration(logger *slog.Logger, d time.Duration) scheduler.Handler {
	return func(ctx context.Context, sub models.TaskSubmission) error {
		logger.Info("processing task", "task", sub.Task, "round", sub.Round)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d):
		}
		logger.Info("finished task", "task", sub.Task)
		return nil
	}
}
