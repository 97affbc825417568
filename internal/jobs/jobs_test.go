package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCancelAndWait(t *testing.T) {
	t.Run("finishes fast enough", func(t *testing.T) {
		testJobs := Jobs{
			fakeJob("job a", 50*time.Millisecond),
			fakeJob("job b", 100*time.Millisecond),
		}

		before := time.Now()
		unfinished := testJobs.CancelAndWait(time.Second)
		assert.WithinDuration(t, time.Now(), before, 500*time.Millisecond)
		assert.Empty(t, unfinished)
	})
	t.Run("reports unfinished jobs", func(t *testing.T) {
		testJobs := Jobs{
			fakeJob("job a", 50*time.Millisecond),
			fakeJob("job b", 5*time.Second),
		}

		unfinished := testJobs.CancelAndWait(300 * time.Millisecond)
		assert.Equal(t, []string{"job b"}, unfinished)
	})
}

func TestRunFinishesWhenFnReturns(t *testing.T) {
	job := New(context.Background(), "once").Run(func(ctx context.Context) {})
	select {
	case <-job.Finished():
	case <-time.After(time.Second):
		t.Fatal("job did not finish")
	}
}

func TestParentCancelPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	job := New(parent, "child")
	cancel()
	select {
	case <-job.Canceled():
	case <-time.After(time.Second):
		t.Fatal("job context not canceled")
	}
}

func fakeJob(name string, stopDelay time.Duration) *Job {
	return New(context.Background(), name).Run(func(ctx context.Context) {
		<-ctx.Done()
		time.Sleep(stopDelay)
	})
}
