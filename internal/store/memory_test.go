package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/models"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestMemoryTxRollback(t *testing.T) {
	m := NewMemory(clock.NewManual(t0))
	ctx := context.Background()
	boom := errors.New("boom")

	err := m.WithPodcastTx(ctx, func(tx PodcastTx) error {
		id, err := tx.InsertChannel(ctx, &models.Channel{Title: "Doomed"})
		require.NoError(t, err)
		cat, err := tx.ResolveCategory(ctx, models.NamespaceChannel, "Tech")
		require.NoError(t, err)
		require.NoError(t, tx.MapChannelCategory(ctx, id, cat))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	channels, episodes, cm, em := m.Counts()
	assert.Zero(t, channels)
	assert.Zero(t, episodes)
	assert.Zero(t, cm)
	assert.Zero(t, em)
	assert.Zero(t, m.CategoryCount(models.NamespaceChannel))
}

func TestMemoryWatermarkWaitsForOpenTx(t *testing.T) {
	clk := clock.NewManual(t0)
	m := NewMemory(clk)
	ctx := context.Background()

	inTx := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.WithPodcastTx(ctx, func(tx PodcastTx) error {
			_, err := tx.InsertChannel(ctx, &models.Channel{Title: "Slow", LastBuildDate: t0})
			close(inTx)
			<-release
			return err
		})
	}()
	<-inTx

	marks := make(chan time.Time, 1)
	go func() {
		wm, err := m.Watermark(ctx)
		assert.NoError(t, err)
		marks <- wm
	}()
	select {
	case <-marks:
		t.Fatal("watermark returned while a transaction was open")
	case <-time.After(20 * time.Millisecond):
	}

	clk.Advance(time.Second)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, t0.Add(time.Second), <-marks)
}

func TestMemoryResolveCategoryIsPerNamespace(t *testing.T) {
	m := NewMemory(clock.NewManual(t0))
	ctx := context.Background()

	var chID, epID, again int64
	require.NoError(t, m.WithPodcastTx(ctx, func(tx PodcastTx) error {
		var err error
		chID, err = tx.ResolveCategory(ctx, models.NamespaceChannel, "News")
		require.NoError(t, err)
		epID, err = tx.ResolveCategory(ctx, models.NamespaceEpisode, "News")
		require.NoError(t, err)
		again, err = tx.ResolveCategory(ctx, models.NamespaceChannel, "News")
		return err
	}))

	assert.Equal(t, chID, again)
	assert.Equal(t, 1, m.CategoryCount(models.NamespaceChannel))
	assert.Equal(t, 1, m.CategoryCount(models.NamespaceEpisode))
	// Separate sequences, both start at 1.
	assert.Equal(t, int64(1), chID)
	assert.Equal(t, int64(1), epID)
}

func TestMemoryMappingIsIdempotent(t *testing.T) {
	clk := clock.NewManual(t0)
	m := NewMemory(clk)
	ctx := context.Background()

	var channelID int64
	require.NoError(t, m.WithPodcastTx(ctx, func(tx PodcastTx) error {
		var err error
		channelID, err = tx.InsertChannel(ctx, &models.Channel{Title: "A"})
		require.NoError(t, err)
		cat, err := tx.ResolveCategory(ctx, models.NamespaceChannel, "Tech")
		require.NoError(t, err)
		require.NoError(t, tx.MapChannelCategory(ctx, channelID, cat))
		clk.Advance(time.Minute)
		return tx.MapChannelCategory(ctx, channelID, cat)
	}))

	_, _, cm, _ := m.Counts()
	assert.Equal(t, 1, cm)
	// ON CONFLICT DO NOTHING leaves the original timestamp.
	ids, err := m.ChannelIDsWithCategoryMappingsChangedSince(ctx, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMemoryChangedSinceIsInclusive(t *testing.T) {
	clk := clock.NewManual(t0)
	m := NewMemory(clk)
	ctx := context.Background()

	m.PutRoom(models.Room{ID: 1, Name: "Hall A"})
	clk.Advance(time.Millisecond)
	m.PutRoom(models.Room{ID: 2, Name: "Hall B"})

	rooms, err := m.RoomsChangedSince(ctx, t0)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, int64(1), rooms[0].ID)

	rooms, err = m.RoomsChangedSince(ctx, t0.Add(time.Millisecond))
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Hall B", rooms[0].Name)
}

func TestMemoryEpisodeOrdering(t *testing.T) {
	m := NewMemory(clock.NewManual(t0))
	ctx := context.Background()

	require.NoError(t, m.WithPodcastTx(ctx, func(tx PodcastTx) error {
		id, err := tx.InsertChannel(ctx, &models.Channel{Title: "A"})
		require.NoError(t, err)
		for _, ep := range []models.Episode{
			{GUID: "old", PubDate: t0.Add(-48 * time.Hour)},
			{GUID: "tie-1", PubDate: t0},
			{GUID: "tie-2", PubDate: t0},
		} {
			ep.ChannelID = id
			if _, err := tx.InsertEpisode(ctx, &ep); err != nil {
				return err
			}
		}
		return nil
	}))

	episodes, err := m.EpisodesByChannelIDs(ctx, []int64{1})
	require.NoError(t, err)
	var guids []string
	for _, e := range episodes {
		guids = append(guids, e.GUID)
	}
	assert.Equal(t, []string{"tie-2", "tie-1", "old"}, guids)
}

func TestMemoryInsertEpisodeRequiresChannel(t *testing.T) {
	m := NewMemory(clock.NewManual(t0))
	ctx := context.Background()
	err := m.WithPodcastTx(ctx, func(tx PodcastTx) error {
		_, err := tx.InsertEpisode(ctx, &models.Episode{ChannelID: 99, GUID: "x"})
		return err
	})
	assert.Error(t, err)
}

func TestMemoryPodcastRequests(t *testing.T) {
	m := NewMemory(clock.NewManual(t0))
	ctx := context.Background()

	id, err := m.CreatePodcastRequest(ctx, &models.PodcastRequest{Title: "Show", RSSLink: "https://example.com/rss"})
	require.NoError(t, err)

	req, err := m.GetPodcastRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusPending, req.Status)

	channelID := int64(7)
	require.NoError(t, m.UpdatePodcastRequestStatus(ctx, id, models.RequestStatusImported, "", &channelID))
	req, err = m.GetPodcastRequest(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusImported, req.Status)
	assert.Equal(t, &channelID, req.ChannelID)

	_, err = m.GetPodcastRequest(ctx, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, m.UpdatePodcastRequestStatus(ctx, 404, "failed", "", nil), ErrNotFound)
}

func TestIDsHash(t *testing.T) {
	assert.Equal(t, idsHash([]int64{3, 1, 2}), idsHash([]int64{1, 2, 3, 3}))
	assert.NotEqual(t, idsHash([]int64{1, 2}), idsHash([]int64{1, 2, 3}))
}
