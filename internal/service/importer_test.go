package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/confsync/internal/models"
)

func TestImportTalkShow(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)
	agg := NewAggregator(mem)

	firstID := mustImport(t, im, talkShow())
	techID, ok := mem.CategoryID(models.NamespaceChannel, "Tech")
	require.True(t, ok)

	views, err := agg.AllChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	v := views[0]
	assert.Equal(t, firstID, v.ID)
	assert.Equal(t, "Talk Show", v.Title)
	assert.Equal(t, []string{"Tech"}, v.Categories)
	require.Len(t, v.Episodes, 1)
	assert.Equal(t, "g1", v.Episodes[0].GUID)
	assert.Equal(t, []string{"News"}, v.Episodes[0].EpisodeCategory)

	second := models.ImportRequest{
		Channel:    models.ChannelInput{Title: "Other Show"},
		Categories: []string{"Tech"},
	}
	secondID := mustImport(t, im, second)
	assert.NotEqual(t, firstID, secondID)

	again, ok := mem.CategoryID(models.NamespaceChannel, "Tech")
	require.True(t, ok)
	assert.Equal(t, techID, again)
	assert.Equal(t, 1, mem.CategoryCount(models.NamespaceChannel))
}

func TestImportDefaults(t *testing.T) {
	mem, clk := newMemory(t)
	im := NewImporter(mem, clk)

	id := mustImport(t, im, talkShow())

	channels, err := mem.ChannelsByIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Len(t, channels, 1)
	ch := channels[0]
	assert.Equal(t, models.DefaultLanguage, ch.Language)
	assert.Equal(t, "", ch.Author)
	assert.Nil(t, ch.Copyright)
	assert.True(t, ch.LastBuildDate.Equal(t0))

	episodes, err := mem.EpisodesByChannelIDs(context.Background(), []int64{id})
	require.NoError(t, err)
	require.Len(t, episodes, 1)
	ep := episodes[0]
	assert.Equal(t, int32(0), ep.Duration)
	assert.Equal(t, "", ep.MediaURL)
	assert.Equal(t, models.DefaultMediaType, ep.MediaType)
	assert.Equal(t, int64(0), ep.MediaLength)
	assert.Nil(t, ep.ImageURL)
}

func TestImportSharedEpisodeCategory(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)

	req := talkShow()
	req.Episodes = append(req.Episodes, models.EpisodeInput{
		GUID:            "g2",
		Title:           "Ep2",
		PubDate:         t0.Add(time.Hour).Format(time.RFC3339),
		EpisodeCategory: []string{"News"},
	})
	mustImport(t, im, req)

	_, episodes, _, episodeMappings := mem.Counts()
	assert.Equal(t, 2, episodes)
	assert.Equal(t, 2, episodeMappings)
	assert.Equal(t, 1, mem.CategoryCount(models.NamespaceEpisode))
}

func TestImportNamespacesAreDisjoint(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)

	req := talkShow()
	req.Categories = []string{"News"}
	mustImport(t, im, req)

	assert.Equal(t, 1, mem.CategoryCount(models.NamespaceChannel))
	assert.Equal(t, 1, mem.CategoryCount(models.NamespaceEpisode))
}

func TestImportEmptyChannel(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)
	agg := NewAggregator(mem)

	id := mustImport(t, im, models.ImportRequest{Channel: models.ChannelInput{Title: "Quiet"}})
	assert.Positive(t, id)

	views, err := agg.AllChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.NotNil(t, views[0].Categories)
	assert.Empty(t, views[0].Categories)
	assert.NotNil(t, views[0].Episodes)
	assert.Empty(t, views[0].Episodes)
}

func TestImportIsAtomic(t *testing.T) {
	// talkShow performs 6 writes: channel, resolve Tech, map, episode, resolve News, map.
	for failAt := 1; failAt <= 6; failAt++ {
		t.Run(fmt.Sprintf("fail at write %d", failAt), func(t *testing.T) {
			mem, _ := newMemory(t)
			im := NewImporter(&faultyStore{Store: mem, failAt: failAt}, nil)

			_, err := im.Import(context.Background(), talkShow())
			assert.ErrorIs(t, err, errInjected)

			channels, episodes, cm, em := mem.Counts()
			assert.Zero(t, channels)
			assert.Zero(t, episodes)
			assert.Zero(t, cm)
			assert.Zero(t, em)
			assert.Zero(t, mem.CategoryCount(models.NamespaceChannel))
			assert.Zero(t, mem.CategoryCount(models.NamespaceEpisode))
		})
	}

	t.Run("seventh write never happens", func(t *testing.T) {
		mem, _ := newMemory(t)
		im := NewImporter(&faultyStore{Store: mem, failAt: 7}, nil)
		_, err := im.Import(context.Background(), talkShow())
		require.NoError(t, err)
	})
}

func TestImportValidation(t *testing.T) {
	tests := map[string]struct {
		mutate func(*models.ImportRequest)
		field  string
	}{
		"blank title": {
			mutate: func(r *models.ImportRequest) { r.Channel.Title = "  " },
			field:  "channel.title",
		},
		"bad last build date": {
			mutate: func(r *models.ImportRequest) { r.Channel.LastBuildDate = ptr("yesterday") },
			field:  "channel.lastBuildDate",
		},
		"bad pub date": {
			mutate: func(r *models.ImportRequest) { r.Episodes[0].PubDate = "Wed, 01 May 2024 09:00:00 GMT" },
			field:  "episodes[0].pubDate",
		},
		"missing guid": {
			mutate: func(r *models.ImportRequest) { r.Episodes[0].GUID = "" },
			field:  "episodes[0].guid",
		},
		"missing episode title": {
			mutate: func(r *models.ImportRequest) { r.Episodes[0].Title = "" },
			field:  "episodes[0].title",
		},
		"blank channel category": {
			mutate: func(r *models.ImportRequest) { r.Categories = []string{"Tech", ""} },
			field:  "categories[1]",
		},
		"blank episode category": {
			mutate: func(r *models.ImportRequest) { r.Episodes[0].EpisodeCategory = []string{" "} },
			field:  "episodes[0].episodeCategory[0]",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			mem, _ := newMemory(t)
			// Any write would fail, so a passing test proves nothing was attempted.
			im := NewImporter(&faultyStore{Store: mem, failAt: 1}, nil)

			req := talkShow()
			tt.mutate(&req)
			_, err := im.Import(context.Background(), req)

			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestImportExplicitLastBuildDate(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)

	req := talkShow()
	req.Channel.LastBuildDate = ptr("2023-12-24T18:00:00+01:00")
	id := mustImport(t, im, req)

	views, err := NewAggregator(mem).AllChannels(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, id, views[0].ID)
	assert.Equal(t, "2023-12-24T17:00:00Z", views[0].LastBuildDate)
}

func TestImportCanceled(t *testing.T) {
	mem, _ := newMemory(t)
	im := NewImporter(mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := im.Import(ctx, talkShow())
	assert.ErrorIs(t, err, context.Canceled)

	channels, _, _, _ := mem.Counts()
	assert.Zero(t, channels)
}
