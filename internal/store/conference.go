package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/oops"
)

func (p *Postgres) SessionsChangedSince(ctx context.Context, since time.Time) ([]models.Session, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, title, description, starts_at, ends_at, room_id, is_service_session,
		        is_plenum_session, status, updated_at
		 FROM conference_sessions WHERE updated_at >= $1
		 ORDER BY starts_at, id`, since)
	if err != nil {
		return nil, oops.New(err, "failed to query sessions")
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Session, error) {
		var s models.Session
		err := row.Scan(&s.ID, &s.Title, &s.Description, &s.StartsAt, &s.EndsAt, &s.RoomID,
			&s.IsServiceSession, &s.IsPlenumSession, &s.Status, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan sessions")
	}
	return sessions, nil
}

func (p *Postgres) SessionSpeakers(ctx context.Context, sessionIDs []string) ([]models.SessionSpeaker, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT session_id, speaker_id FROM session_speakers
		 WHERE session_id = ANY($1) ORDER BY session_id, speaker_id`, sessionIDs)
	if err != nil {
		return nil, oops.New(err, "failed to query session speakers")
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionSpeaker, error) {
		var l models.SessionSpeaker
		err := row.Scan(&l.SessionID, &l.SpeakerID)
		return l, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan session speakers")
	}
	return links, nil
}

func (p *Postgres) SessionCategories(ctx context.Context, sessionIDs []string) ([]models.SessionCategory, error) {
	if len(sessionIDs) == 0 {
		return nil, nil
	}
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT session_id, category_item_id FROM session_categories
		 WHERE session_id = ANY($1) ORDER BY session_id, category_item_id`, sessionIDs)
	if err != nil {
		return nil, oops.New(err, "failed to query session categories")
	}
	links, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SessionCategory, error) {
		var l models.SessionCategory
		err := row.Scan(&l.SessionID, &l.CategoryID)
		return l, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan session categories")
	}
	return links, nil
}

func (p *Postgres) SpeakersChangedSince(ctx context.Context, since time.Time) ([]models.Speaker, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, first_name, last_name, bio, tag_line, profile_picture, is_top_speaker, updated_at
		 FROM conference_speakers WHERE updated_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, oops.New(err, "failed to query speakers")
	}
	speakers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Speaker, error) {
		var s models.Speaker
		err := row.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Bio, &s.TagLine, &s.ProfilePicture,
			&s.IsTopSpeaker, &s.UpdatedAt)
		return s, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan speakers")
	}
	return speakers, nil
}

func (p *Postgres) RoomsChangedSince(ctx context.Context, since time.Time) ([]models.Room, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, name, sort, updated_at FROM conference_rooms WHERE updated_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, oops.New(err, "failed to query rooms")
	}
	rooms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Room, error) {
		var r models.Room
		err := row.Scan(&r.ID, &r.Name, &r.Sort, &r.UpdatedAt)
		return r, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan rooms")
	}
	return rooms, nil
}

func (p *Postgres) CategoriesChangedSince(ctx context.Context, since time.Time) ([]models.ConferenceCategory, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()

	rows, err := p.pool.Query(ctx,
		`SELECT id, title, sort, type, updated_at FROM conference_categories
		 WHERE updated_at >= $1 ORDER BY id`, since)
	if err != nil {
		return nil, oops.New(err, "failed to query categories")
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ConferenceCategory, error) {
		var c models.ConferenceCategory
		err := row.Scan(&c.ID, &c.Title, &c.Sort, &c.TypeName, &c.UpdatedAt)
		return c, err
	})
	if err != nil {
		return nil, oops.New(err, "failed to scan categories")
	}
	return categories, nil
}
