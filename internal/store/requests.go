package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/oops"
)

func (p *Postgres) CreatePodcastRequest(ctx context.Context, req *models.PodcastRequest) (int64, error) {
	ctx, cancel := withTimeout(ctx, p.writeTimeout)
	defer cancel()

	status := req.Status
	if status == "" {
		status = models.RequestStatusPending
	}
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO podcast_requests (requester, title, author, rss_url, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		req.Requester, req.Title, req.Author, req.RSSLink, status,
	).Scan(&id)
	if err != nil {
		return 0, oops.New(err, "failed to insert podcast request")
	}
	return id, nil
}

func (p *Postgres) GetPodcastRequest(ctx context.Context, id int64) (*models.PodcastRequest, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	var r models.PodcastRequest
	err := p.pool.QueryRow(ctx,
		`SELECT id, requester, title, author, rss_url, status, error, channel_id, created_at
		 FROM podcast_requests WHERE id = $1`, id,
	).Scan(&r.ID, &r.Requester, &r.Title, &r.Author, &r.RSSLink, &r.Status, &r.Error, &r.ChannelID, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.New(err, "failed to fetch podcast request %d", id)
	}
	return &r, nil
}

func (p *Postgres) UpdatePodcastRequestStatus(ctx context.Context, id int64, status, errMsg string, channelID *int64) error {
	ctx, cancel := withTimeout(ctx, p.writeTimeout)
	defer cancel()

	tag, err := p.pool.Exec(ctx,
		`UPDATE podcast_requests SET status = $2, error = $3, channel_id = COALESCE($4, channel_id)
		 WHERE id = $1`,
		id, status, errMsg, channelID,
	)
	if err != nil {
		return oops.New(err, "failed to update podcast request %d", id)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
