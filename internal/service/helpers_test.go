package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func newMemory(t *testing.T) (*store.Memory, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(t0)
	return store.NewMemory(clk), clk
}

func talkShow() models.ImportRequest {
	return models.ImportRequest{
		Channel:    models.ChannelInput{Title: "Talk Show", Link: "https://x", Description: "d"},
		Categories: []string{"Tech"},
		Episodes: []models.EpisodeInput{{
			GUID:            "g1",
			Title:           "Ep1",
			Description:     "d1",
			Link:            "https://x/1",
			PubDate:         t0.Format(time.RFC3339),
			EpisodeCategory: []string{"News"},
		}},
	}
}

func mustImport(t *testing.T, im *Importer, req models.ImportRequest) int64 {
	t.Helper()
	res, err := im.Import(context.Background(), req)
	require.NoError(t, err)
	return res.ChannelID
}

var errInjected = errors.New("injected failure")

// faultyStore fails the import transaction on the nth write.
type faultyStore struct {
	store.Store
	failAt int
}

func (f *faultyStore) WithPodcastTx(ctx context.Context, fn func(tx store.PodcastTx) error) error {
	return f.Store.WithPodcastTx(ctx, func(tx store.PodcastTx) error {
		return fn(&faultyTx{PodcastTx: tx, remaining: f.failAt})
	})
}

type faultyTx struct {
	store.PodcastTx
	remaining int
}

func (f *faultyTx) tick() error {
	f.remaining--
	if f.remaining <= 0 {
		return errInjected
	}
	return nil
}

func (f *faultyTx) InsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	if err := f.tick(); err != nil {
		return 0, err
	}
	return f.PodcastTx.InsertChannel(ctx, ch)
}

func (f *faultyTx) ResolveCategory(ctx context.Context, ns models.Namespace, name string) (int64, error) {
	if err := f.tick(); err != nil {
		return 0, err
	}
	return f.PodcastTx.ResolveCategory(ctx, ns, name)
}

func (f *faultyTx) MapChannelCategory(ctx context.Context, channelID, categoryID int64) error {
	if err := f.tick(); err != nil {
		return err
	}
	return f.PodcastTx.MapChannelCategory(ctx, channelID, categoryID)
}

func (f *faultyTx) InsertEpisode(ctx context.Context, ep *models.Episode) (int64, error) {
	if err := f.tick(); err != nil {
		return 0, err
	}
	return f.PodcastTx.InsertEpisode(ctx, ep)
}

func (f *faultyTx) MapEpisodeCategory(ctx context.Context, episodeID, categoryID int64) error {
	if err := f.tick(); err != nil {
		return err
	}
	return f.PodcastTx.MapEpisodeCategory(ctx, episodeID, categoryID)
}
