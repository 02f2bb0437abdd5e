package job

import (
	"time"

	"github.com/ruxplay/mesa-engine/internal/lib/logger/sl"
	"golang.org/x/exp/slog"
)

// RetryJob re-dispatches a failing task with doubling delay until the
// attempt cap is hit, then logs an operational alert and gives up. The
// task must be idempotent.
type RetryJob struct {
	Name        string
	Task        func() error
	MaxAttempts int
	Backoff     time.Duration

	queue   Queue
	log     *slog.Logger
	attempt int
}

func NewRetryJob(name string, task func() error, maxAttempts int, backoff time.Duration, queue Queue, log *slog.Logger) *RetryJob {
	return &RetryJob{
		Name:        name,
		Task:        task,
		MaxAttempts: maxAttempts,
		Backoff:     backoff,
		queue:       queue,
		log:         log,
	}
}

func (j *RetryJob) Execute() {
	err := j.Task()
	if err == nil {
		return
	}

	j.attempt++

	if j.attempt >= j.MaxAttempts {
		j.log.Error("job exhausted retries",
			sl.String("job", j.Name),
			sl.Int("attempts", j.attempt),
			sl.Err(err))

		return
	}

	delay := j.Backoff << (j.attempt - 1)

	j.log.Warn("job failed, retrying",
		sl.String("job", j.Name),
		sl.Int("attempt", j.attempt),
		sl.Duration("delay", delay),
		sl.Err(err))

	j.queue.Dispatch(j, delay)
}
