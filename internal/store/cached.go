package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/voyagen/confsync/internal/cache"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
)

// Cache TTLs.
const (
	ttlPodcast = 5 * time.Minute
	ttlRequest = 1 * time.Minute
)

// podcastGenKey holds the podcast cache generation. Podcast keys embed it, so
// a load that raced a commit writes under a generation no reader asks for.
const podcastGenKey = "podcast-gen"

// CachedStore wraps a Store with a Redis caching layer for the podcast
// loaders and request lookups. Podcast rows are only written through
// WithPodcastTx, which bumps the generation and clears old keys on commit.
//
// The watermark queries (every ...ChangedSince and the candidate id sets)
// always go to the inner store.
type CachedStore struct {
	Store
	cache *cache.Redis
}

func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{Store: inner, cache: c}
}

func (c *CachedStore) WithPodcastTx(ctx context.Context, fn func(tx PodcastTx) error) error {
	if err := c.Store.WithPodcastTx(ctx, fn); err != nil {
		return err
	}
	if _, err := cache.Incr(ctx, c.cache, podcastGenKey); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("cache generation bump failed")
	}
	c.invalidatePattern(ctx, "podcast:*")
	return nil
}

// podcastKey qualifies name with the current generation. ok is false when
// the generation cannot be read; callers then skip the cache.
func (c *CachedStore) podcastKey(ctx context.Context, name string) (key string, ok bool) {
	gen, err := cache.Get[int64](ctx, c.cache, podcastGenKey)
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		logging.FromContext(ctx).Warn().Err(err).Msg("cache generation read failed")
		return "", false
	}
	return fmt.Sprintf("podcast:%d:%s", gen, name), true
}

func (c *CachedStore) ListChannelIDs(ctx context.Context) ([]int64, error) {
	return cachedPodcast(ctx, c, "channel-ids", func() ([]int64, error) {
		return c.Store.ListChannelIDs(ctx)
	})
}

func (c *CachedStore) ChannelsByIDs(ctx context.Context, ids []int64) ([]models.Channel, error) {
	return cachedPodcast(ctx, c, "channels:"+idsHash(ids), func() ([]models.Channel, error) {
		return c.Store.ChannelsByIDs(ctx, ids)
	})
}

func (c *CachedStore) EpisodesByChannelIDs(ctx context.Context, channelIDs []int64) ([]models.Episode, error) {
	return cachedPodcast(ctx, c, "episodes:"+idsHash(channelIDs), func() ([]models.Episode, error) {
		return c.Store.EpisodesByChannelIDs(ctx, channelIDs)
	})
}

func (c *CachedStore) ChannelCategoryLinks(ctx context.Context, channelIDs []int64) ([]models.CategoryLink, error) {
	return cachedPodcast(ctx, c, "channel-links:"+idsHash(channelIDs), func() ([]models.CategoryLink, error) {
		return c.Store.ChannelCategoryLinks(ctx, channelIDs)
	})
}

func (c *CachedStore) EpisodeCategoryLinks(ctx context.Context, episodeIDs []int64) ([]models.CategoryLink, error) {
	return cachedPodcast(ctx, c, "episode-links:"+idsHash(episodeIDs), func() ([]models.CategoryLink, error) {
		return c.Store.EpisodeCategoryLinks(ctx, episodeIDs)
	})
}

func (c *CachedStore) GetPodcastRequest(ctx context.Context, id int64) (*models.PodcastRequest, error) {
	key := fmt.Sprintf("request:%d", id)
	if v, err := cache.Get[models.PodcastRequest](ctx, c.cache, key); err == nil {
		return &v, nil
	}
	req, err := c.Store.GetPodcastRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, req, ttlRequest)
	return req, nil
}

func (c *CachedStore) UpdatePodcastRequestStatus(ctx context.Context, id int64, status, errMsg string, channelID *int64) error {
	if err := c.Store.UpdatePodcastRequestStatus(ctx, id, status, errMsg, channelID); err != nil {
		return err
	}
	c.invalidate(ctx, fmt.Sprintf("request:%d", id))
	return nil
}

// --- helpers ---

func cachedPodcast[T any](ctx context.Context, c *CachedStore, name string, load func() (T, error)) (T, error) {
	key, ok := c.podcastKey(ctx, name)
	if !ok {
		return load()
	}
	return cached(ctx, c, key, ttlPodcast, load)
}

// cached serves key from Redis or fills it from load. Redis failures fall
// through to load.
func cached[T any](ctx context.Context, c *CachedStore, key string, ttl time.Duration, load func() (T, error)) (T, error) {
	v, err := cache.Get[T](ctx, c.cache, key)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	v, err = load()
	if err != nil {
		return v, err
	}
	c.set(ctx, key, v, ttl)
	return v, nil
}

func (c *CachedStore) set(ctx context.Context, key string, v any, ttl time.Duration) {
	if err := cache.Set(ctx, c.cache, key, v, ttl); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *CachedStore) invalidate(ctx context.Context, keys ...string) {
	if err := cache.Del(ctx, c.cache, keys...); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Strs("keys", keys).Msg("cache delete failed")
	}
}

func (c *CachedStore) invalidatePattern(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if err := cache.DelPattern(ctx, c.cache, p); err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("pattern", p).Msg("cache delete failed")
		}
	}
}

// idsHash produces a short deterministic hash of an id set, independent of
// order and duplicates.
func idsHash(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	var b strings.Builder
	for _, id := range sorted {
		b.WriteString(strconv.FormatInt(id, 10))
		b.WriteByte(',')
	}
	h := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", h[:8])
}
