package heartbeat

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingFlusher struct {
	mu    sync.Mutex
	count int
}

func (f *countingFlusher) Flush() error {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
	return nil
}

func (f *countingFlusher) flushes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}

// syncBuffer guards a bytes.Buffer so the emitter goroutine and the test
// can touch it at the same time.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestEmitterBeatsImmediatelyAndPeriodically(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))
	flusher := &countingFlusher{}

	e := New(20*time.Millisecond, logger, flusher)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for flusher.flushes() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	if got := flusher.flushes(); got < 3 {
		t.Fatalf("expected at least 3 beats, got %d", got)
	}
	if !strings.Contains(out.String(), "[KEEPALIVE] service heartbeat") {
		t.Fatalf("missing heartbeat line in output: %q", out.String())
	}
}

func TestEmitterStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&syncBuffer{}, nil))
	flusher := &countingFlusher{}

	e := New(10*time.Millisecond, logger, flusher)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emitter did not stop after cancellation")
	}

	settled := flusher.flushes()
	time.Sleep(50 * time.Millisecond)
	if flusher.flushes() != settled {
		t.Fatal("emitter kept beating after Run returned")
	}
}
