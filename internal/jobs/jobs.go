// Package jobs tracks background workers so that shutdown can cancel them and
// wait, with a deadline, for them to finish.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/confsync/internal/logging"
)

// A Job is one background task. The task selects on Canceled (or Ctx.Done)
// and calls Finish when it has fully stopped.
type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger
	cancel func()
	done   chan struct{}
}

// New creates a job whose context derives from parent and carries a logger
// tagged with the job name.
func New(parent context.Context, name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(parent)
	ctx = logger.WithContext(ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Run starts fn in a goroutine and marks the job finished when fn returns.
func (j *Job) Run(fn func(ctx context.Context)) *Job {
	go func() {
		defer j.Finish()
		fn(j.Ctx)
	}()
	return j
}

func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

func (j *Job) Finish() *Job {
	close(j.done)
	return j
}

func (j *Job) Finished() <-chan struct{} {
	return j.done
}

// Jobs is a set of jobs shut down together.
type Jobs []*Job

// CancelAndWait cancels every job and waits until all finish or the timeout
// expires. It returns the names of jobs that did not finish in time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDone := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDone)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDone:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
