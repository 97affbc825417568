package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

// twoChannels imports "A" and "B" at t0 and moves the clock to t0+1h.
func twoChannels(t *testing.T) (*store.Memory, *Aggregator, func(d time.Duration) time.Time) {
	t.Helper()
	mem, clk := newMemory(t)
	im := NewImporter(mem, clk)

	a := talkShow()
	a.Channel.Title = "A"
	mustImport(t, im, a)
	b := talkShow()
	b.Channel.Title = "B"
	b.Episodes[0].GUID = "g2"
	mustImport(t, im, b)

	clk.Advance(time.Hour)
	return mem, NewAggregator(mem), clk.Advance
}

func TestChangedSinceNothing(t *testing.T) {
	_, agg, _ := twoChannels(t)

	views, err := agg.ChannelsChangedSince(context.Background(), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestChangedSinceEverything(t *testing.T) {
	_, agg, _ := twoChannels(t)

	views, err := agg.ChannelsChangedSince(context.Background(), time.UnixMilli(0))
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "A", views[0].Title)
	assert.Equal(t, "B", views[1].Title)
}

func TestChangedSinceInclusiveBound(t *testing.T) {
	_, agg, _ := twoChannels(t)

	views, err := agg.ChannelsChangedSince(context.Background(), t0)
	require.NoError(t, err)
	assert.Len(t, views, 2)
}

func TestChangedSinceDirectChannelTouch(t *testing.T) {
	mem, agg, _ := twoChannels(t)
	since := t0.Add(30 * time.Minute)
	require.NoError(t, mem.TouchChannel(2))

	ids, err := agg.ChangedChannelIDs(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)
}

func TestChangedSinceViaEpisode(t *testing.T) {
	mem, agg, _ := twoChannels(t)
	since := t0.Add(30 * time.Minute)
	// Episode 1 belongs to channel 1.
	require.NoError(t, mem.TouchEpisode(1))

	views, err := agg.ChannelsChangedSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(1), views[0].ID)
	// The full view is returned, not only the changed episode.
	require.Len(t, views[0].Episodes, 1)
	assert.Equal(t, []string{"Tech"}, views[0].Categories)
}

func TestChangedSinceViaNewEpisodeCategoryMapping(t *testing.T) {
	mem, agg, _ := twoChannels(t)
	ctx := context.Background()
	since := t0.Add(30 * time.Minute)

	// Only a new mapping row for episode 2 (channel 2); neither the channel
	// nor the episode row changes.
	require.NoError(t, mem.WithPodcastTx(ctx, func(tx store.PodcastTx) error {
		cat, err := tx.ResolveCategory(ctx, models.NamespaceEpisode, "Bonus")
		if err != nil {
			return err
		}
		return tx.MapEpisodeCategory(ctx, 2, cat)
	}))

	direct, err := mem.ChannelIDsChangedSince(ctx, since)
	require.NoError(t, err)
	assert.Empty(t, direct)
	viaEpisodes, err := mem.ChannelIDsWithEpisodesChangedSince(ctx, since)
	require.NoError(t, err)
	assert.Empty(t, viaEpisodes)

	views, err := agg.ChannelsChangedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, int64(2), views[0].ID)
	assert.Equal(t, []string{"Bonus", "News"}, views[0].Episodes[0].EpisodeCategory)
}

func TestChangedSinceViaUpdatedEpisodeCategoryMapping(t *testing.T) {
	mem, agg, _ := twoChannels(t)
	since := t0.Add(30 * time.Minute)
	require.NoError(t, mem.TouchEpisodeCategoryMapping(1, "News"))

	ids, err := agg.ChangedChannelIDs(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids)
}

func TestChangedSinceViaChannelCategoryMapping(t *testing.T) {
	mem, agg, _ := twoChannels(t)
	ctx := context.Background()
	since := t0.Add(30 * time.Minute)

	require.NoError(t, mem.WithPodcastTx(ctx, func(tx store.PodcastTx) error {
		cat, err := tx.ResolveCategory(ctx, models.NamespaceChannel, "Comedy")
		if err != nil {
			return err
		}
		return tx.MapChannelCategory(ctx, 1, cat)
	}))

	views, err := agg.ChannelsChangedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, []string{"Comedy", "Tech"}, views[0].Categories)
}

func TestChangedSinceIsMonotone(t *testing.T) {
	mem, agg, advance := twoChannels(t)
	ctx := context.Background()

	t1 := advance(time.Minute)
	require.NoError(t, mem.TouchChannel(1))
	t2 := advance(time.Minute)
	require.NoError(t, mem.TouchEpisode(2))

	early, err := agg.ChangedChannelIDs(ctx, t1)
	require.NoError(t, err)
	late, err := agg.ChangedChannelIDs(ctx, t2)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2}, early)
	assert.Equal(t, []int64{2}, late)
	assert.Subset(t, early, late)
}

// countingStore records which reads ran.
type countingStore struct {
	store.Store
	loads int
	fail  error
}

func (c *countingStore) ChannelsByIDs(ctx context.Context, ids []int64) ([]models.Channel, error) {
	c.loads++
	return c.Store.ChannelsByIDs(ctx, ids)
}

func (c *countingStore) EpisodeIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	if c.fail != nil {
		return nil, c.fail
	}
	return c.Store.EpisodeIDsWithCategoryMappingsChangedSince(ctx, since)
}

func TestChangedSinceEmptySkipsLoading(t *testing.T) {
	mem, _, _ := twoChannels(t)
	cs := &countingStore{Store: mem}

	views, err := NewAggregator(cs).ChannelsChangedSince(context.Background(), t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, views)
	assert.Zero(t, cs.loads)
}

func TestChangedSinceSurfacesStoreErrors(t *testing.T) {
	mem, _, _ := twoChannels(t)
	boom := errors.New("connection reset")
	cs := &countingStore{Store: mem, fail: boom}

	_, err := NewAggregator(cs).ChannelsChangedSince(context.Background(), time.UnixMilli(0))
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, cs.loads)
}

func TestSessionsChangedSince(t *testing.T) {
	mem, clk := newMemory(t)
	agg := NewAggregator(mem)
	ctx := context.Background()

	mem.PutSession(models.Session{ID: "s2", Title: "Late", StartsAt: t0.Add(2 * time.Hour), EndsAt: t0.Add(3 * time.Hour)})
	mem.PutSession(models.Session{ID: "s1", Title: "Early", StartsAt: t0, EndsAt: t0.Add(time.Hour), RoomID: ptr(int32(1))})
	mem.LinkSessionSpeaker("s1", "sp2")
	mem.LinkSessionSpeaker("s1", "sp1")
	mem.LinkSessionCategory("s1", 4)

	sessions, err := agg.SessionsChangedSince(ctx, time.UnixMilli(0))
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "s1", sessions[0].ID)
	assert.Equal(t, []string{"sp1", "sp2"}, sessions[0].SpeakerIDs)
	assert.Equal(t, []int32{4}, sessions[0].CategoryIDs)
	assert.Equal(t, []string{}, sessions[1].SpeakerIDs)
	assert.Equal(t, []int32{}, sessions[1].CategoryIDs)

	clk.Advance(time.Minute)
	none, err := agg.SessionsChangedSince(ctx, clk.Now())
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSimpleTablesChangedSince(t *testing.T) {
	mem, clk := newMemory(t)
	agg := NewAggregator(mem)
	ctx := context.Background()

	mem.PutSpeaker(models.Speaker{ID: "sp1", FirstName: "Ada", LastName: "Lovelace"})
	mem.PutRoom(models.Room{ID: 1, Name: "Hall A"})
	mem.PutConferenceCategory(models.ConferenceCategory{ID: 3, Title: "Backend"})
	since := clk.Advance(time.Second)
	mem.PutRoom(models.Room{ID: 2, Name: "Hall B"})

	speakers, err := agg.SpeakersChangedSince(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, []models.Speaker{}, speakers)

	rooms, err := agg.RoomsChangedSince(ctx, since)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Hall B", rooms[0].Name)

	categories, err := agg.CategoriesChangedSince(ctx, t0)
	require.NoError(t, err)
	require.Len(t, categories, 1)
}

func TestParseWatermark(t *testing.T) {
	got, err := ParseWatermark("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.UnixMilli())

	got, err = ParseWatermark("1714554000000")
	require.NoError(t, err)
	assert.True(t, got.Equal(t0))

	_, err = ParseWatermark("-1")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseWatermark("yesterday")
	assert.ErrorIs(t, err, ErrValidation)

	got, err = ParseWatermark("253402300799999")
	require.NoError(t, err)
	assert.Equal(t, 9999, got.UTC().Year())
	_, err = ParseWatermark("253402300800000")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = ParseWatermark("9223372036854775807")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUnionIDs(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 5}, unionIDs([]int64{5, 1}, nil, []int64{2, 5}, []int64{1}))
	assert.Empty(t, unionIDs(nil, nil))
}
