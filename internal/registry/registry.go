package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"task-receiver/internal/models"
)

// Handle tracks one background job from admission until its goroutine
// returns. Cancel may be called from any goroutine, including after the
// job has already finished.
type Handle struct {
	ID     string
	Task   string
	cancel context.CancelFunc
	done   atomic.Bool
}

// Finish marks the job complete so the next reap drops the handle.
func (h *Handle) Finish() {
	h.done.Store(true)
}

// Done reports whether the job has finished.
func (h *Handle) Done() bool {
	return h.done.Load()
}

// Cancel asks the job to stop.
func (h *Handle) Cancel() {
	h.cancel()
}

// Registry is the in-memory view of service activity: the summary of the
// latest admitted submission plus a handle for every job still considered
// live. Nothing here survives a restart.
type Registry struct {
	mu      sync.Mutex
	last    *models.TaskSummary
	handles []*Handle
}

func New() *Registry {
	return &Registry{}
}

// RecordSummary replaces the latest-submission summary.
func (r *Registry) RecordSummary(s models.TaskSummary) {
	r.mu.Lock()
	r.last = &s
	r.mu.Unlock()
}

// Track registers a new job for the given task and returns its handle.
func (r *Registry) Track(task string, cancel context.CancelFunc) *Handle {
	h := &Handle{ID: uuid.NewString(), Task: task, cancel: cancel}
	r.mu.Lock()
	r.handles = append(r.handles, h)
	r.mu.Unlock()
	return h
}

// Reap drops handles whose jobs have finished and returns how many remain.
func (r *Registry) Reap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reapLocked()
}

func (r *Registry) reapLocked() int {
	kept := r.handles[:0]
	for _, h := range r.handles {
		if !h.Done() {
			kept = append(kept, h)
		}
	}
	for i := len(kept); i < len(r.handles); i++ {
		r.handles[i] = nil
	}
	r.handles = kept
	return len(kept)
}

// Snapshot reaps finished jobs, then returns a copy of the latest summary
// (nil when nothing has been admitted yet) and the live-job count.
func (r *Registry) Snapshot() (*models.TaskSummary, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.reapLocked()
	if r.last == nil {
		return nil, n
	}
	s := *r.last
	return &s, n
}

// CancelActive cancels every tracked job and returns how many handles were
// signalled. Cancelling an already finished job is a no-op.
func (r *Registry) CancelActive() int {
	r.mu.Lock()
	handles := make([]*Handle, len(r.handles))
	copy(handles, r.handles)
	r.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
	return len(handles)
}
