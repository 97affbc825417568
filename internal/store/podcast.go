package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/oops"
)

func (p *Postgres) ChannelIDsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return p.queryIDs(ctx, "channels changed",
		`SELECT id FROM podcast_channels WHERE updated_at >= $1 ORDER BY id`, since)
}

func (p *Postgres) ChannelIDsWithEpisodesChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return p.queryIDs(ctx, "channels with changed episodes",
		`SELECT DISTINCT channel_id FROM podcast_episodes WHERE updated_at >= $1 ORDER BY channel_id`, since)
}

func (p *Postgres) ChannelIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return p.queryIDs(ctx, "channels with changed category mappings",
		`SELECT DISTINCT channel_id FROM channel_category_map WHERE updated_at >= $1 ORDER BY channel_id`, since)
}

func (p *Postgres) EpisodeIDsWithCategoryMappingsChangedSince(ctx context.Context, since time.Time) ([]int64, error) {
	return p.queryIDs(ctx, "episodes with changed category mappings",
		`SELECT DISTINCT episode_id FROM episode_category_map WHERE updated_at >= $1 ORDER BY episode_id`, since)
}

func (p *Postgres) ChannelIDsForEpisodes(ctx context.Context, episodeIDs []int64) ([]int64, error) {
	if len(episodeIDs) == 0 {
		return nil, nil
	}
	return p.queryIDs(ctx, "channels for episodes",
		`SELECT DISTINCT channel_id FROM podcast_episodes WHERE id = ANY($1) ORDER BY channel_id`, episodeIDs)
}

func (p *Postgres) ListChannelIDs(ctx context.Context) ([]int64, error) {
	return p.queryIDs(ctx, "all channels", `SELECT id FROM podcast_channels ORDER BY id`)
}

func (p *Postgres) ChannelsByIDs(ctx context.Context, ids []int64) ([]models.Channel, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, title, link, description, copyright, language, author, owner_email, owner_name,
		        image_url, last_build_date, updated_at
		 FROM podcast_channels WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, oops.New(err, "failed to query channels")
	}
	channels, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Channel, error) {
		var c models.Channel
		err := row.Scan(&c.ID, &c.Title, &c.Link, &c.Description, &c.Copyright, &c.Language, &c.Author,
			&c.OwnerEmail, &c.OwnerName, &c.ImageURL, &c.LastBuildDate, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan channels")
	}
	return channels, nil
}

func (p *Postgres) EpisodesByChannelIDs(ctx context.Context, channelIDs []int64) ([]models.Episode, error) {
	if len(channelIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, channel_id, guid, title, description, link, pub_date, duration, explicit,
		        image_url, media_url, media_type, media_length, updated_at
		 FROM podcast_episodes WHERE channel_id = ANY($1)
		 ORDER BY channel_id, pub_date DESC, id DESC`, channelIDs)
	if err != nil {
		return nil, oops.New(err, "failed to query episodes")
	}
	episodes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Episode, error) {
		var e models.Episode
		err := row.Scan(&e.ID, &e.ChannelID, &e.GUID, &e.Title, &e.Description, &e.Link, &e.PubDate,
			&e.Duration, &e.Explicit, &e.ImageURL, &e.MediaURL, &e.MediaType, &e.MediaLength, &e.UpdatedAt)
		return e, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan episodes")
	}
	return episodes, nil
}

func (p *Postgres) ChannelCategoryLinks(ctx context.Context, channelIDs []int64) ([]models.CategoryLink, error) {
	return p.queryLinks(ctx, "channel category links",
		`SELECT m.channel_id, c.name
		 FROM channel_category_map m JOIN podcast_channel_categories c ON c.id = m.category_id
		 WHERE m.channel_id = ANY($1)
		 ORDER BY m.channel_id, c.name`, channelIDs)
}

func (p *Postgres) EpisodeCategoryLinks(ctx context.Context, episodeIDs []int64) ([]models.CategoryLink, error) {
	return p.queryLinks(ctx, "episode category links",
		`SELECT m.episode_id, c.name
		 FROM episode_category_map m JOIN podcast_episode_categories c ON c.id = m.category_id
		 WHERE m.episode_id = ANY($1)
		 ORDER BY m.episode_id, c.name`, episodeIDs)
}

func (p *Postgres) queryIDs(ctx context.Context, what, sql string, args ...any) ([]int64, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, oops.New(err, "failed to query %s", what)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, oops.New(err, "failed to scan %s", what)
	}
	return ids, nil
}

func (p *Postgres) queryLinks(ctx context.Context, what, sql string, ownerIDs []int64) ([]models.CategoryLink, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx, sql, ownerIDs)
	if err != nil {
		return nil, oops.New(err, "failed to query %s", what)
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CategoryLink, error) {
		var l models.CategoryLink
		err := row.Scan(&l.OwnerID, &l.Name)
		return l, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan %s", what)
	}
	return links, nil
}
