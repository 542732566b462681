package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"task-receiver/internal/models"
	"task-receiver/internal/registry"
	"task-receiver/internal/telemetry"
)

// Handler runs one admitted submission to completion. Implementations must
// honor ctx cancellation; errors are logged here, never surfaced to the
// submitting client.
type Handler func(ctx context.Context, sub models.TaskSubmission) error

// Scheduler starts admitted submissions in the background while holding the
// number of concurrently executing jobs at or below its slot count. Excess
// jobs wait for a slot off the request path.
type Scheduler struct {
	slots    *semaphore.Weighted
	handler  Handler
	registry *registry.Registry
	logger   *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// New builds a scheduler running at most max jobs at once.
func New(max int, handler Handler, reg *registry.Registry, logger *slog.Logger) *Scheduler {
	if max < 1 {
		max = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		slots:      semaphore.NewWeighted(int64(max)),
		handler:    handler,
		registry:   reg,
		logger:     logger,
		baseCtx:    ctx,
		cancelBase: cancel,
	}
}

// Submit registers the submission and starts its job goroutine, returning
// immediately. The goroutine blocks on a concurrency slot, so a full
// scheduler delays execution rather than the HTTP response.
func (s *Scheduler) Submit(sub models.TaskSubmission) *registry.Handle {
	jobCtx, cancel := context.WithCancel(s.baseCtx)
	h := s.registry.Track(sub.Task, cancel)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer h.Finish()
		defer cancel()

		if err := s.slots.Acquire(jobCtx, 1); err != nil {
			s.logger.Warn("job cancelled before start", "task", sub.Task, "job_id", h.ID)
			return
		}
		defer s.slots.Release(1)

		telemetry.JobsInFlight.Inc()
		defer telemetry.JobsInFlight.Dec()

		start := time.Now()
		if err := s.invoke(jobCtx, sub); err != nil {
			telemetry.JobsFailed.Inc()
			s.logger.Error("job failed", "task", sub.Task, "round", sub.Round, "job_id", h.ID, "error", err)
			return
		}
		telemetry.JobsCompleted.Inc()
		s.logger.Debug("job complete", "task", sub.Task, "job_id", h.ID, "elapsed", time.Since(start).Round(time.Millisecond))
	}()
	return h
}

// invoke runs the handler, converting a panic into an error so one bad job
// cannot take down the process.
func (s *Scheduler) invoke(ctx context.Context, sub models.TaskSubmission) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return s.handler(ctx, sub)
}

// Shutdown cancels every pending and running job, then waits up to grace
// for the goroutines to return. It reports whether everything drained;
// jobs still running after the grace period are abandoned.
func (s *Scheduler) Shutdown(grace time.Duration) bool {
	s.registry.CancelActive()
	s.cancelBase()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
