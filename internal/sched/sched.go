// Package sched runs periodic background jobs, one goroutine per job.
// Results never cross the job boundary as errors; a job reports Success,
// Failure or Retry and the runner decides what happens next.
package sched

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Result int

const (
	Success Result = iota
	Failure
	Retry
)

func (r Result) String() string {
	switch r {
	case Success:
		return "success"
	case Failure:
		return "failure"
	case Retry:
		return "retry"
	}
	return "unknown"
}

type Job interface {
	Name() string
	Run(ctx context.Context) Result
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) Result
}

func (j JobFunc) Name() string { return j.JobName }

func (j JobFunc) Run(ctx context.Context) Result { return j.Fn(ctx) }

type Runner struct {
	logger  *slog.Logger
	backoff time.Duration
}

func NewRunner(logger *slog.Logger, backoff time.Duration) *Runner {
	if backoff <= 0 {
		backoff = time.Minute
	}
	return &Runner{logger: logger, backoff: backoff}
}

// Every runs job immediately and then on every interval tick until ctx is
// done. A Retry result reruns the job after the backoff instead of waiting
// for the next tick. Blocks; callers start it in its own goroutine.
func (r *Runner) Every(ctx context.Context, interval time.Duration, job Job) {
	r.runOnce(ctx, job)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx, job)
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	for {
		runID := uuid.NewString()
		started := time.Now()
		result := job.Run(ctx)
		if r.logger != nil {
			r.logger.Info("job finished",
				"job", job.Name(),
				"run_id", runID,
				"result", result.String(),
				"elapsed", time.Since(started),
			)
		}
		if result != Retry {
			return
		}
		if !backoffSleep(ctx, r.backoff) {
			return
		}
	}
}

func backoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
