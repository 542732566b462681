package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"task-receiver/internal/telemetry"
)

// Flusher pushes buffered log output to durable storage.
type Flusher interface {
	Flush() error
}

// Emitter periodically logs a liveness line and flushes the log sink so
// the served log tail stays current even when the service is idle.
type Emitter struct {
	interval time.Duration
	logger   *slog.Logger
	flusher  Flusher
}

// New builds an emitter beating once per interval.
func New(interval time.Duration, logger *slog.Logger, flusher Flusher) *Emitter {
	return &Emitter{interval: interval, logger: logger, flusher: flusher}
}

// Run emits one beat immediately, then one per interval until ctx ends.
func (e *Emitter) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.beat()
		}
	}
}

func (e *Emitter) beat() {
	e.logger.Info("[KEEPALIVE] service heartbeat")
	if err := e.flusher.Flush(); err != nil {
		e.logger.Warn("flush log sink", "error", err)
	}
	telemetry.Heartbeats.Inc()
}
