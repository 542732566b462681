package registry

import (
	"context"
	"testing"
	"time"

	"go.uber.org/goleak"

	"task-receiver/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTrackAndReap(t *testing.T) {
	r := New()
	_, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	_, cancelB := context.WithCancel(context.Background())
	defer cancelB()

	a := r.Track("task-a", cancelA)
	b := r.Track("task-b", cancelB)

	if n := r.Reap(); n != 2 {
		t.Fatalf("expected 2 live jobs, got %d", n)
	}

	a.Finish()
	if n := r.Reap(); n != 1 {
		t.Fatalf("expected 1 live job after finish, got %d", n)
	}

	b.Finish()
	if n := r.Reap(); n != 0 {
		t.Fatalf("expected 0 live jobs, got %d", n)
	}
}

func TestSnapshotBeforeAnyAdmission(t *testing.T) {
	r := New()
	summary, running := r.Snapshot()
	if summary != nil {
		t.Fatalf("expected nil summary, got %+v", summary)
	}
	if running != 0 {
		t.Fatalf("expected 0 running, got %d", running)
	}
}

func TestRecordSummaryReplacesPrevious(t *testing.T) {
	r := New()
	now := time.Now()
	r.RecordSummary(models.TaskSummary{Task: "first", Received: now})
	r.RecordSummary(models.TaskSummary{Task: "second", Received: now})

	summary, _ := r.Snapshot()
	if summary == nil || summary.Task != "second" {
		t.Fatalf("expected latest summary, got %+v", summary)
	}
}

func TestSnapshotReturnsCopy(t *testing.T) {
	r := New()
	r.RecordSummary(models.TaskSummary{Task: "orig"})

	first, _ := r.Snapshot()
	first.Task = "mutated"

	second, _ := r.Snapshot()
	if second.Task != "orig" {
		t.Fatalf("snapshot leaked internal state: %+v", second)
	}
}

func TestCancelActive(t *testing.T) {
	r := New()
	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	r.Track("task-a", cancelA)
	h := r.Track("task-b", cancelB)
	h.Finish()

	if n := r.CancelActive(); n != 2 {
		t.Fatalf("expected 2 handles signalled, got %d", n)
	}
	select {
	case <-ctxA.Done():
	default:
		t.Fatal("active job context not cancelled")
	}
	select {
	case <-ctxB.Done():
	default:
		t.Fatal("finished job context should still be cancelled")
	}
}

func TestHandleIDsAreUnique(t *testing.T) {
	r := New()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		_, cancel := context.WithCancel(context.Background())
		h := r.Track("task", cancel)
		cancel()
		if seen[h.ID] {
			t.Fatalf("duplicate handle id %s", h.ID)
		}
		seen[h.ID] = true
	}
}
