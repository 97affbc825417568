package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FetchJob asks the request worker to fetch an RSS feed and import it.
type FetchJob struct {
	ID        string    `json:"id"`
	RequestID int64     `json:"request_id"`
	RSSURL    string    `json:"rss_url"`
	Attempt   int       `json:"attempt"`
	QueuedAt  time.Time `json:"queued_at"`
}

// FetchQueue is the list key of the podcast request queue.
const FetchQueue = "jobs:podcast-fetch"

// Enqueue pushes a job onto the left side of the queue, assigning an id if
// it has none.
func Enqueue(ctx context.Context, r *Redis, queue string, job FetchJob) (FetchJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.QueuedAt.IsZero() {
		job.QueuedAt = time.Now().UTC()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return job, fmt.Errorf("queue marshal: %w", err)
	}
	if err := r.client.LPush(ctx, r.Key(queue), data).Err(); err != nil {
		return job, fmt.Errorf("queue push: %w", err)
	}
	return job, nil
}

// Dequeue blocks until a job is available on the right side of the list
// or the timeout expires. A timeout or canceled ctx yields (nil, nil) so the
// caller can loop and check for shutdown.
func Dequeue(ctx context.Context, r *Redis, queue string, timeout time.Duration) (*FetchJob, error) {
	result, err := r.client.BRPop(ctx, timeout, r.Key(queue)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return nil, nil
		}
		return nil, fmt.Errorf("queue dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(result) < 2 {
		return nil, nil
	}
	var job FetchJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("queue unmarshal: %w", err)
	}
	return &job, nil
}

// QueueLength returns the number of pending jobs.
func QueueLength(ctx context.Context, r *Redis, queue string) (int64, error) {
	return r.client.LLen(ctx, r.Key(queue)).Result()
}
