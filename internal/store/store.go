package store

import (
	"context"
	"errors"
	"time"

	"github.com/voyagen/confsync/internal/models"
)

// ErrNotFound is returned when a single requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for the podcast graph, the conference tables and
// podcast requests. All "ChangedSince" reads use the inclusive bound
// updated_at >= since.
type Store interface {
	// WithPodcastTx runs fn in one transaction. fn's error rolls back every
	// write made through tx; a nil return commits.
	WithPodcastTx(ctx context.Context, fn func(tx PodcastTx) error) error

	// Candidate channel id sets for change detection.
	ChannelIDsChangedSince(ctx context.Context, since time.Time) ([]int64, error)
	ChannelIDsWithEpisodesChangedSince(ctx context.Context, since time.Time) ([]int64, error)
	ChannelIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error)
	EpisodeIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error)
	// ChannelIDsForEpisodes maps episode ids to their owning channel ids.
	ChannelIDsForEpisodes(ctx context.Context, episodeIDs []int64) ([]int64, error)

	// ListChannelIDs returns every channel id, ascending.
	ListChannelIDs(ctx context.Context) ([]int64, error)
	// ChannelsByIDs returns the channels ordered by id.
	ChannelsByIDs(ctx context.Context, ids []int64) ([]models.Channel, error)
	// EpisodesByChannelIDs returns episodes ordered by channel, pub_date desc, id desc.
	EpisodesByChannelIDs(ctx context.Context, channelIDs []int64) ([]models.Episode, error)
	// ChannelCategoryLinks returns (channel id, category name) pairs ordered by channel then name.
	ChannelCategoryLinks(ctx context.Context, channelIDs []int64) ([]models.CategoryLink, error)
	// EpisodeCategoryLinks returns (episode id, category name) pairs ordered by episode then name.
	EpisodeCategoryLinks(ctx context.Context, episodeIDs []int64) ([]models.CategoryLink, error)

	SessionsChangedSince(ctx context.Context, since time.Time) ([]models.Session, error)
	SessionSpeakers(ctx context.Context, sessionIDs []string) ([]models.SessionSpeaker, error)
	SessionCategories(ctx context.Context, sessionIDs []string) ([]models.SessionCategory, error)
	SpeakersChangedSince(ctx context.Context, since time.Time) ([]models.Speaker, error)
	RoomsChangedSince(ctx context.Context, since time.Time) ([]models.Room, error)
	CategoriesChangedSince(ctx context.Context, since time.Time) ([]models.ConferenceCategory, error)

	// CreatePodcastRequest stores a pending request and returns its id.
	CreatePodcastRequest(ctx context.Context, req *models.PodcastRequest) (int64, error)
	// GetPodcastRequest returns ErrNotFound for unknown ids.
	GetPodcastRequest(ctx context.Context, id int64) (*models.PodcastRequest, error)
	// UpdatePodcastRequestStatus records the outcome of a fetch+import.
	UpdatePodcastRequestStatus(ctx context.Context, id int64, status, errMsg string, channelID *int64) error

	// Watermark is the bound a client passes as since on its next sync. No
	// write stamped before it can still become visible.
	Watermark(ctx context.Context) (time.Time, error)

	Ping(ctx context.Context) error
	Close()
}

// PodcastTx is the write surface available inside WithPodcastTx.
type PodcastTx interface {
	// InsertChannel inserts a new channel row and returns its id.
	InsertChannel(ctx context.Context, ch *models.Channel) (int64, error)
	// ResolveCategory returns the id of the category with exactly this name
	// in the namespace, creating it if absent.
	ResolveCategory(ctx context.Context, ns models.Namespace, name string) (int64, error)
	// MapChannelCategory links a channel to a category; an existing link is kept.
	MapChannelCategory(ctx context.Context, channelID, categoryID int64) error
	// InsertEpisode inserts an episode row for ep.ChannelID and returns its id.
	InsertEpisode(ctx context.Context, ep *models.Episode) (int64, error)
	// MapEpisodeCategory links an episode to a category; an existing link is kept.
	MapEpisodeCategory(ctx context.Context, episodeID, categoryID int64) error
}
