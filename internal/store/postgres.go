package store

import (
	"context"
	"errors"
	"time"

	zerologadapter "github.com/jackc/pgx-zerolog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/voyagen/confsync/internal/config"
	"github.com/voyagen/confsync/internal/logging"
	"github.com/voyagen/confsync/internal/models"
	"github.com/voyagen/confsync/internal/oops"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool         *pgxpool.Pool
	readTimeout  time.Duration
	writeTimeout time.Duration
	syncLag      time.Duration
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a Postgres store from a DSN. Caller must call Close when done.
func NewPostgres(ctx context.Context, dsn string, cfg config.PostgresConfig) (*Postgres, error) {
	pgcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, oops.New(err, "failed to parse database url")
	}
	pgcfg.MaxConns = cfg.MaxConns
	pgcfg.MinConns = cfg.MinConns
	pgcfg.MaxConnIdleTime = 30 * time.Second
	pgcfg.MaxConnLifetime = 30 * time.Minute
	if cfg.ConnectTimeout > 0 {
		pgcfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	level := tracelog.LogLevelWarn
	if cfg.LogLevel != "" {
		level, err = tracelog.LogLevelFromString(cfg.LogLevel)
		if err != nil {
			return nil, oops.New(err, "invalid db log level %q", cfg.LogLevel)
		}
	}
	pgcfg.ConnConfig.Tracer = &tracelog.TraceLog{
		Logger:   zerologadapter.NewLogger(*logging.GlobalLogger()),
		LogLevel: level,
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgcfg)
	if err != nil {
		return nil, oops.New(err, "failed to create database connection pool")
	}
	p := &Postgres{
		pool:         pool,
		readTimeout:  cfg.ReadTimeout,
		writeTimeout: cfg.WriteTimeout,
		syncLag:      cfg.SyncLag(),
	}
	if err := p.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return oops.New(err, "failed to ping database")
	}
	return nil
}

// Watermark reads the database clock, the same one that stamps updated_at,
// and steps back by the sync lag. A transaction open at that instant has
// either committed or been rolled back by its write timeout since.
func (p *Postgres) Watermark(ctx context.Context) (time.Time, error) {
	ctx, cancel := p.readCtx(ctx)
	defer cancel()
	var now time.Time
	if err := p.pool.QueryRow(ctx, `SELECT clock_timestamp()`).Scan(&now); err != nil {
		return time.Time{}, oops.New(err, "failed to read database clock")
	}
	return now.Add(-p.syncLag).UTC(), nil
}

// WithPodcastTx runs fn inside one transaction bounded by the write timeout.
func (p *Postgres) WithPodcastTx(ctx context.Context, fn func(tx PodcastTx) error) error {
	ctx, cancel := withTimeout(ctx, p.writeTimeout)
	defer cancel()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return oops.New(err, "failed to begin import transaction")
	}
	defer func() {
		// No-op after a successful commit.
		if err := tx.Rollback(context.Background()); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn().Err(err).Msg("rollback failed")
		}
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return oops.New(err, "failed to commit import transaction")
	}
	return nil
}

func (p *Postgres) readCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(ctx, p.readTimeout)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// pgTx implements PodcastTx on a pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) InsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO podcast_channels
		   (title, link, description, copyright, language, author, owner_email, owner_name, image_url, last_build_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		ch.Title, ch.Link, ch.Description, ch.Copyright, ch.Language, ch.Author,
		ch.OwnerEmail, ch.OwnerName, ch.ImageURL, ch.LastBuildDate,
	).Scan(&id)
	if err != nil {
		return 0, oops.New(err, "failed to insert channel %q", ch.Title)
	}
	return id, nil
}

// ResolveCategory is a single-statement find-or-create. The no-op update
// makes RETURNING yield the existing row's id on conflict.
func (t *pgTx) ResolveCategory(ctx context.Context, ns models.Namespace, name string) (int64, error) {
	var query string
	switch ns {
	case models.NamespaceChannel:
		query = `INSERT INTO podcast_channel_categories (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`
	case models.NamespaceEpisode:
		query = `INSERT INTO podcast_episode_categories (name) VALUES ($1)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`
	default:
		return 0, oops.New(nil, "unknown category namespace %d", ns)
	}

	var id int64
	if err := t.tx.QueryRow(ctx, query, name).Scan(&id); err != nil {
		return 0, oops.New(err, "failed to resolve %s category %q", ns, name)
	}
	return id, nil
}

func (t *pgTx) MapChannelCategory(ctx context.Context, channelID, categoryID int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO channel_category_map (channel_id, category_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		channelID, categoryID,
	)
	if err != nil {
		return oops.New(err, "failed to map channel %d to category %d", channelID, categoryID)
	}
	return nil
}

func (t *pgTx) InsertEpisode(ctx context.Context, ep *models.Episode) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx,
		`INSERT INTO podcast_episodes
		   (channel_id, guid, title, description, link, pub_date, duration, explicit,
		    image_url, media_url, media_type, media_length)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		ep.ChannelID, ep.GUID, ep.Title, ep.Description, ep.Link, ep.PubDate, ep.Duration, ep.Explicit,
		ep.ImageURL, ep.MediaURL, ep.MediaType, ep.MediaLength,
	).Scan(&id)
	if err != nil {
		return 0, oops.New(err, "failed to insert episode %q", ep.GUID)
	}
	return id, nil
}

func (t *pgTx) MapEpisodeCategory(ctx context.Context, episodeID, categoryID int64) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO episode_category_map (episode_id, category_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		episodeID, categoryID,
	)
	if err != nil {
		return oops.New(err, "failed to map episode %d to category %d", episodeID, categoryID)
	}
	return nil
}
