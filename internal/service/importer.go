package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voyagen/confsync/internal/clock"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/store"
)

// Importer writes one podcast channel with its categories, episodes and
// episode categories as a single transaction.
type Importer struct {
	store store.Store
	clock clock.Clock
}

func NewImporter(s store.Store, c clock.Clock) *Importer {
	if c == nil {
		c = clock.System{}
	}
	return &Importer{store: s, clock: c}
}

// ImportResult summarizes a committed import.
type ImportResult struct {
	ChannelID         int64
	Episodes          int
	ChannelCategories int
	EpisodeCategories int
}

type preparedEpisode struct {
	row        models.Episode
	categories []string
}

type preparedImport struct {
	channel    models.Channel
	categories []string
	episodes   []preparedEpisode
}

// Import validates req and stores it. Validation failures return a
// *ValidationError before any transaction is opened; any later failure
// rolls back every row of the import.
func (im *Importer) Import(ctx context.Context, req models.ImportRequest) (ImportResult, error) {
	prepared, err := im.prepare(req)
	if err != nil {
		return ImportResult{}, err
	}

	var result ImportResult
	err = im.store.WithPodcastTx(ctx, func(tx store.PodcastTx) error {
		resolver := NewCategoryResolver(tx)

		channelID, err := tx.InsertChannel(ctx, &prepared.channel)
		if err != nil {
			return err
		}
		for _, name := range prepared.categories {
			categoryID, err := resolver.Resolve(ctx, models.NamespaceChannel, name)
			if err != nil {
				return err
			}
			if err := tx.MapChannelCategory(ctx, channelID, categoryID); err != nil {
				return err
			}
		}

		for i := range prepared.episodes {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("import canceled: %w", err)
			}
			ep := &prepared.episodes[i]
			ep.row.ChannelID = channelID
			episodeID, err := tx.InsertEpisode(ctx, &ep.row)
			if err != nil {
				return err
			}
			for _, name := range ep.categories {
				categoryID, err := resolver.Resolve(ctx, models.NamespaceEpisode, name)
				if err != nil {
					return err
				}
				if err := tx.MapEpisodeCategory(ctx, episodeID, categoryID); err != nil {
					return err
				}
			}
		}

		result = ImportResult{
			ChannelID:         channelID,
			Episodes:          len(prepared.episodes),
			ChannelCategories: resolver.Resolved(models.NamespaceChannel),
			EpisodeCategories: resolver.Resolved(models.NamespaceEpisode),
		}
		return nil
	})
	if err != nil {
		return ImportResult{}, err
	}

	logging.FromContext(ctx).Info().
		Int64("channel_id", result.ChannelID).
		Int("episodes", result.Episodes).
		Int("channel_categories", result.ChannelCategories).
		Int("episode_categories", result.EpisodeCategories).
		Msg("podcast imported")
	return result, nil
}

// prepare validates the whole request and applies defaults.
func (im *Importer) prepare(req models.ImportRequest) (*preparedImport, error) {
	in := req.Channel
	if strings.TrimSpace(in.Title) == "" {
		return nil, invalid("channel.title", "must not be blank")
	}

	lastBuild := im.clock.Now()
	if in.LastBuildDate != nil {
		t, err := time.Parse(time.RFC3339, *in.LastBuildDate)
		if err != nil {
			return nil, invalid("channel.lastBuildDate", "must be an RFC 3339 timestamp, got %q", *in.LastBuildDate)
		}
		lastBuild = t
	}
	if err := checkNames("categories", req.Categories); err != nil {
		return nil, err
	}

	p := &preparedImport{
		channel: models.Channel{
			Title:         in.Title,
			Link:          in.Link,
			Description:   in.Description,
			Copyright:     in.Copyright,
			Language:      orDefault(in.Language, models.DefaultLanguage),
			Author:        orDefault(in.Author, ""),
			OwnerEmail:    orDefault(in.OwnerEmail, ""),
			OwnerName:     orDefault(in.OwnerName, ""),
			ImageURL:      orDefault(in.ImageURL, ""),
			LastBuildDate: lastBuild,
		},
		categories: req.Categories,
		episodes:   make([]preparedEpisode, 0, len(req.Episodes)),
	}

	for i, ep := range req.Episodes {
		field := fmt.Sprintf("episodes[%d]", i)
		if strings.TrimSpace(ep.GUID) == "" {
			return nil, invalid(field+".guid", "must not be blank")
		}
		if strings.TrimSpace(ep.Title) == "" {
			return nil, invalid(field+".title", "must not be blank")
		}
		pub, err := time.Parse(time.RFC3339, ep.PubDate)
		if err != nil {
			return nil, invalid(field+".pubDate", "must be an RFC 3339 timestamp, got %q", ep.PubDate)
		}
		if err := checkNames(field+".episodeCategory", ep.EpisodeCategory); err != nil {
			return nil, err
		}

		row := models.Episode{
			GUID:        ep.GUID,
			Title:       ep.Title,
			Description: ep.Description,
			Link:        ep.Link,
			PubDate:     pub,
			Explicit:    ep.Explicit,
			ImageURL:    ep.ImageURL,
			MediaURL:    orDefault(ep.MediaURL, ""),
			MediaType:   orDefault(ep.MediaType, models.DefaultMediaType),
		}
		if ep.Duration != nil {
			row.Duration = *ep.Duration
		}
		if ep.MediaLength != nil {
			row.MediaLength = *ep.MediaLength
		}
		p.episodes = append(p.episodes, preparedEpisode{row: row, categories: ep.EpisodeCategory})
	}
	return p, nil
}

func checkNames(field string, names []string) error {
	for i, name := range names {
		if strings.TrimSpace(name) == "" {
			return invalid(fmt.Sprintf("%s[%d]", field, i), "category name must not be blank")
		}
	}
	return nil
}

func orDefault(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}
