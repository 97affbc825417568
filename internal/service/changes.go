package service

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

// Aggregator computes what changed since a client's watermark. It only
// reads.
type Aggregator struct {
	store store.Store
}

func NewAggregator(s store.Store) *Aggregator {
	return &Aggregator{store: s}
}

// maxWatermark is the last millisecond of year 9999, inside the timestamptz
// range.
var maxWatermark = time.Date(9999, time.December, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli()

// ParseWatermark parses a millisecond epoch watermark. Empty means 0 (full
// sync).
func ParseWatermark(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.UnixMilli(0), nil
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, invalid("since", "must be a millisecond timestamp, got %q", raw)
	}
	if ms < 0 {
		return time.Time{}, invalid("since", "must not be negative")
	}
	if ms > maxWatermark {
		return time.Time{}, invalid("since", "must not be after year 9999")
	}
	return time.UnixMilli(ms), nil
}

// ChangedChannelIDs returns the ascending ids of channels that changed
// since the watermark either directly, through an episode, through a
// channel category mapping, or through an episode category mapping of one
// of their episodes.
func (a *Aggregator) ChangedChannelIDs(ctx context.Context, since time.Time) ([]int64, error) {
	var direct, viaEpisodes, viaChannelCats, viaEpisodeCats []int64

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		direct, err = a.store.ChannelIDsChangedSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		viaEpisodes, err = a.store.ChannelIDsWithEpisodesChangedSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		viaChannelCats, err = a.store.ChannelIDsWithCategoryMappingsChangedSince(gctx, since)
		return err
	})
	g.Go(func() error {
		episodeIDs, err := a.store.EpisodeIDsWithCategoryMappingsChangedSince(gctx, since)
		if err != nil || len(episodeIDs) == 0 {
			return err
		}
		viaEpisodeCats, err = a.store.ChannelIDsForEpisodes(gctx, episodeIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return unionIDs(direct, viaEpisodes, viaChannelCats, viaEpisodeCats), nil
}

// ChannelsChangedSince returns full views of every changed channel.
func (a *Aggregator) ChannelsChangedSince(ctx context.Context, since time.Time) ([]models.ChannelView, error) {
	ids, err := a.ChangedChannelIDs(ctx, since)
	if err != nil {
		return nil, err
	}
	return a.loadChannels(ctx, ids)
}

// AllChannels returns full views of the whole catalog.
func (a *Aggregator) AllChannels(ctx context.Context) ([]models.ChannelView, error) {
	ids, err := a.store.ListChannelIDs(ctx)
	if err != nil {
		return nil, err
	}
	return a.loadChannels(ctx, ids)
}

func (a *Aggregator) loadChannels(ctx context.Context, ids []int64) ([]models.ChannelView, error) {
	if len(ids) == 0 {
		return []models.ChannelView{}, nil
	}

	var (
		channels    []models.Channel
		episodes    []models.Episode
		channelCats []models.CategoryLink
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		channels, err = a.store.ChannelsByIDs(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		episodes, err = a.store.EpisodesByChannelIDs(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		channelCats, err = a.store.ChannelCategoryLinks(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var episodeCats []models.CategoryLink
	if len(episodes) > 0 {
		episodeIDs := make([]int64, len(episodes))
		for i, ep := range episodes {
			episodeIDs[i] = ep.ID
		}
		var err error
		episodeCats, err = a.store.EpisodeCategoryLinks(ctx, episodeIDs)
		if err != nil {
			return nil, err
		}
	}
	return AssembleChannels(channels, episodes, channelCats, episodeCats), nil
}

func (a *Aggregator) SessionsChangedSince(ctx context.Context, since time.Time) ([]models.SessionView, error) {
	sessions, err := a.store.SessionsChangedSince(ctx, since)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return []models.SessionView{}, nil
	}
	ids := make([]string, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}

	var (
		speakers   []models.SessionSpeaker
		categories []models.SessionCategory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		speakers, err = a.store.SessionSpeakers(gctx, ids)
		return err
	})
	g.Go(func() (err error) {
		categories, err = a.store.SessionCategories(gctx, ids)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return AssembleSessions(sessions, speakers, categories), nil
}

func (a *Aggregator) SpeakersChangedSince(ctx context.Context, since time.Time) ([]models.Speaker, error) {
	speakers, err := a.store.SpeakersChangedSince(ctx, since)
	return nonNil(speakers), err
}

func (a *Aggregator) RoomsChangedSince(ctx context.Context, since time.Time) ([]models.Room, error) {
	rooms, err := a.store.RoomsChangedSince(ctx, since)
	return nonNil(rooms), err
}

func (a *Aggregator) CategoriesChangedSince(ctx context.Context, since time.Time) ([]models.ConferenceCategory, error) {
	categories, err := a.store.CategoriesChangedSince(ctx, since)
	return nonNil(categories), err
}

func unionIDs(sets ...[]int64) []int64 {
	var out []int64
	for _, s := range sets {
		out = append(out, s...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}
