package job

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/exp/slog"
)

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type countJob struct {
	n    *atomic.Int32
	done chan struct{}
}

func (j *countJob) Execute() {
	j.n.Add(1)
	select {
	case j.done <- struct{}{}:
	default:
	}
}

func TestWorkerPoolExecutesJobs(t *testing.T) {
	queue := NewQueue(8)
	pool := NewWorkerPool(2, queue)
	pool.Start()

	var n atomic.Int32
	done := make(chan struct{}, 4)

	for i := 0; i < 4; i++ {
		queue.Dispatch(&countJob{n: &n, done: done}, 0)
	}

	for i := 0; i < 4; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	if got := n.Load(); got != 4 {
		t.Errorf("executed jobs, want: 4, got: %d", got)
	}
}

func TestRetryJobSucceedsAfterFailures(t *testing.T) {
	queue := NewQueue(8)
	pool := NewWorkerPool(1, queue)
	pool.Start()

	var attempts atomic.Int32
	done := make(chan struct{})

	task := func() error {
		if attempts.Add(1) < 3 {
			return errors.New("transient")
		}
		close(done)
		return nil
	}

	queue.Dispatch(NewRetryJob("credit", task, 5, time.Millisecond, queue, testLogger()), 0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("retry job never succeeded")
	}

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts, want: 3, got: %d", got)
	}
}

func TestRetryJobGivesUpAtCap(t *testing.T) {
	queue := NewQueue(8)
	pool := NewWorkerPool(1, queue)
	pool.Start()

	var attempts atomic.Int32

	task := func() error {
		attempts.Add(1)
		return errors.New("permanent")
	}

	queue.Dispatch(NewRetryJob("credit", task, 3, time.Millisecond, queue, testLogger()), 0)

	deadline := time.After(2 * time.Second)
	for attempts.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("attempts before deadline, want: 3, got: %d", attempts.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// allow any stray re-dispatch to surface
	time.Sleep(50 * time.Millisecond)

	if got := attempts.Load(); got != 3 {
		t.Errorf("attempts after cap, want: 3, got: %d", got)
	}
}
