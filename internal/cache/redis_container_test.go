//go:build container

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/confsync/internal/testhelpers"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	r, err := New(testhelpers.StartRedis(t), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	require.NoError(t, r.Ping(context.Background()))
	return r
}

func TestGetSetDel(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	_, err := Get[[]int64](ctx, r, "missing")
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, Set(ctx, r, "podcast:ids", []int64{1, 2}, time.Minute))
	got, err := Get[[]int64](ctx, r, "podcast:ids")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	require.NoError(t, Set(ctx, r, "podcast:other", "x", time.Minute))
	require.NoError(t, Set(ctx, r, "request:1", "y", time.Minute))
	require.NoError(t, DelPattern(ctx, r, "podcast:*"))

	_, err = Get[string](ctx, r, "podcast:other")
	assert.ErrorIs(t, err, ErrMiss)
	kept, err := Get[string](ctx, r, "request:1")
	require.NoError(t, err)
	assert.Equal(t, "y", kept)
}

func TestIncr(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		n, err := Incr(ctx, r, "gen")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	got, err := Get[int64](ctx, r, "gen")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestTryLock(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	unlock, err := TryLock(ctx, r, "feed", time.Minute)
	require.NoError(t, err)

	_, err = TryLock(ctx, r, "feed", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	locked, err := IsLocked(ctx, r, "feed")
	require.NoError(t, err)
	assert.True(t, locked)

	unlock()
	locked, err = IsLocked(ctx, r, "feed")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestQueue(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	first, err := Enqueue(ctx, r, FetchQueue, FetchJob{RequestID: 1, RSSURL: "https://a.example/rss"})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)
	_, err = Enqueue(ctx, r, FetchQueue, FetchJob{RequestID: 2, RSSURL: "https://b.example/rss"})
	require.NoError(t, err)

	n, err := QueueLength(ctx, r, FetchQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	job, err := Dequeue(ctx, r, FetchQueue, time.Second)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, first.ID, job.ID)
	assert.Equal(t, int64(1), job.RequestID)

	_, err = Dequeue(ctx, r, FetchQueue, time.Second)
	require.NoError(t, err)
	empty, err := Dequeue(ctx, r, FetchQueue, time.Second)
	require.NoError(t, err)
	assert.Nil(t, empty)
}
