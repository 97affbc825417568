package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"github.com/voyagen/confsync/internal/cache"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

// FeedFetcher downloads a feed and converts it into an import request.
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) (*models.ImportRequest, error)
}

// JobQueue carries fetch jobs between the API and the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job cache.FetchJob) (cache.FetchJob, error)
	// Dequeue returns (nil, nil) when nothing arrived within timeout.
	Dequeue(ctx context.Context, timeout time.Duration) (*cache.FetchJob, error)
	// Lock returns cache.ErrLocked when key is held elsewhere.
	Lock(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RedisQueue implements JobQueue on the Redis list and lock helpers.
type RedisQueue struct {
	Redis *cache.Redis
}

func (q RedisQueue) Enqueue(ctx context.Context, job cache.FetchJob) (cache.FetchJob, error) {
	return cache.Enqueue(ctx, q.Redis, cache.FetchQueue, job)
}

func (q RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*cache.FetchJob, error) {
	return cache.Dequeue(ctx, q.Redis, cache.FetchQueue, timeout)
}

func (q RedisQueue) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	return cache.TryLock(ctx, q.Redis, key, ttl)
}

// Requests records user podcast requests and hands them to the worker.
type Requests struct {
	store store.Store
	queue JobQueue // nil: requests are stored but not fetched
}

func NewRequests(s store.Store, q JobQueue) *Requests {
	return &Requests{store: s, queue: q}
}

// Submit validates and stores a request, then queues it for fetching.
// A queue failure is logged; the stored request stays pending.
func (r *Requests) Submit(ctx context.Context, req models.PodcastRequest) (*models.PodcastRequest, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.RSSLink = strings.TrimSpace(req.RSSLink)
	if req.Title == "" {
		return nil, invalid("title", "must not be blank")
	}
	if u, err := url.ParseRequestURI(req.RSSLink); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, invalid("rssLink", "must be a valid http or https URL")
	}
	req.Status = models.RequestStatusPending

	id, err := r.store.CreatePodcastRequest(ctx, &req)
	if err != nil {
		return nil, err
	}
	req.ID = id

	if r.queue != nil {
		job, err := r.queue.Enqueue(ctx, cache.FetchJob{RequestID: id, RSSURL: req.RSSLink})
		if err != nil {
			logging.FromContext(ctx).Error().Err(err).Int64("request_id", id).Msg("failed to queue podcast request")
		} else {
			logging.FromContext(ctx).Info().Int64("request_id", id).Str("job_id", job.ID).Msg("podcast request queued")
		}
	}
	return &req, nil
}

func (r *Requests) Get(ctx context.Context, id int64) (*models.PodcastRequest, error) {
	return r.store.GetPodcastRequest(ctx, id)
}

// Worker fetches queued feeds and imports them.
type Worker struct {
	store    store.Store
	importer *Importer
	fetcher  FeedFetcher
	queue    JobQueue

	// MaxAttempts bounds fetch+import tries per job.
	MaxAttempts int
	// PollTimeout is how long one Dequeue blocks.
	PollTimeout time.Duration
	// LockTTL bounds how long a feed stays locked if the holder dies.
	LockTTL time.Duration
	Backoff backoff.Backoff
}

func NewWorker(s store.Store, im *Importer, f FeedFetcher, q JobQueue) *Worker {
	return &Worker{
		store:       s,
		importer:    im,
		fetcher:     f,
		queue:       q,
		MaxAttempts: 3,
		PollTimeout: 5 * time.Second,
		LockTTL:     5 * time.Minute,
		Backoff: backoff.Backoff{
			Min:    2 * time.Second,
			Max:    time.Minute,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Run processes jobs until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	logger := logging.FromContext(ctx)
	logger.Info().Msg("podcast request worker started")

	dequeueBackoff := w.Backoff
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("podcast request worker stopping")
			return
		default:
		}

		job, err := w.queue.Dequeue(ctx, w.PollTimeout)
		if err != nil {
			wait := dequeueBackoff.Duration()
			logger.Error().Err(err).Dur("retry_in", wait).Msg("dequeue failed")
			if !sleep(ctx, wait) {
				return
			}
			continue
		}
		dequeueBackoff.Reset()
		if job == nil {
			continue
		}
		if err := w.Process(ctx, *job); err != nil && ctx.Err() == nil {
			logger.Warn().Err(err).Str("job_id", job.ID).Int64("request_id", job.RequestID).Msg("podcast request failed")
		}
	}
}

// Process runs one job to completion, retrying transient failures, and
// records the outcome on the request row.
func (w *Worker) Process(ctx context.Context, job cache.FetchJob) error {
	logger := logging.FromContext(ctx).With().
		Str("job_id", job.ID).
		Int64("request_id", job.RequestID).
		Str("rss_url", job.RSSURL).
		Logger()

	var lastErr error
	for attempt := job.Attempt; attempt < w.MaxAttempts; attempt++ {
		if attempt > job.Attempt {
			wait := w.Backoff.ForAttempt(float64(attempt - 1))
			logger.Info().Int("attempt", attempt+1).Dur("wait", wait).Msg("retrying podcast request")
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
		}

		channelID, err := w.attempt(ctx, job)
		if err == nil {
			logger.Info().Int64("channel_id", channelID).Msg("podcast request imported")
			return w.store.UpdatePodcastRequestStatus(ctx, job.RequestID, models.RequestStatusImported, "", &channelID)
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Bad feed content does not get better on retry.
		if errors.Is(err, ErrValidation) {
			break
		}
	}

	if lastErr == nil {
		lastErr = errors.New("no attempts left")
	}
	if err := w.store.UpdatePodcastRequestStatus(ctx, job.RequestID, models.RequestStatusFailed, lastErr.Error(), nil); err != nil {
		return err
	}
	return lastErr
}

func (w *Worker) attempt(ctx context.Context, job cache.FetchJob) (int64, error) {
	unlock, err := w.queue.Lock(ctx, job.RSSURL, w.LockTTL)
	if err != nil {
		return 0, err
	}
	defer unlock()

	feed, err := w.fetcher.FetchFeed(ctx, job.RSSURL)
	if err != nil {
		return 0, err
	}
	result, err := w.importer.Import(ctx, *feed)
	if err != nil {
		return 0, err
	}
	return result.ChannelID, nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
