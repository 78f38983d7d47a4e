package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"go-mod.ewintr.nl/vidsync/model"
)

type PostgresInfo struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type Postgres struct {
	db *sql.DB
}

func NewPostgres(pgInfo PostgresInfo) (*Postgres, error) {
	db, err := sql.Open("postgres", fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgInfo.Host, pgInfo.Port, pgInfo.User, pgInfo.Password, pgInfo.Database))
	if err != nil {
		return &Postgres{}, err
	}
	p := &Postgres{db: db}
	if err := p.migrate(pgMigration); err != nil {
		return &Postgres{}, err
	}

	return p, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

func (p *Postgres) migrate(wanted []string) error {
	query := `CREATE TABLE IF NOT EXISTS migration
("id" SERIAL PRIMARY KEY, "query" TEXT)`
	_, err := p.db.Exec(query)
	if err != nil {
		return err
	}

	// find existing
	rows, err := p.db.Query(`SELECT query FROM migration ORDER BY id`)
	if err != nil {
		return err
	}

	existing := []string{}
	for rows.Next() {
		var query string
		if err := rows.Scan(&query); err != nil {
			return err
		}
		existing = append(existing, query)
	}
	rows.Close()

	// compare
	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	// execute missing
	for _, query := range missing {
		if _, err := p.db.Exec(query); err != nil {
			return err
		}

		// register
		if _, err := p.db.Exec(`
INSERT INTO migration
(query) VALUES ($1)
`, query); err != nil {
			return err
		}
	}

	return nil
}

type PostgresVideoRepository struct {
	pg *Postgres
}

func NewPostgresVideoRepository(pg *Postgres) *PostgresVideoRepository {
	return &PostgresVideoRepository{pg: pg}
}

func (p *PostgresVideoRepository) Exists(ctx context.Context, channelSlug string, ytID model.YoutubeVideoID) (bool, error) {
	var count int
	err := p.pg.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM video
WHERE channel_slug = $1 AND youtube_id = $2
`, channelSlug, string(ytID)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}

	return count > 0, nil
}

func (p *PostgresVideoRepository) Insert(ctx context.Context, video *model.Video) error {
	res, err := p.pg.db.ExecContext(ctx, `
INSERT INTO video
(id, channel_slug, youtube_id, title, description, content_type, duration, thumbnail, url, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (channel_slug, youtube_id) DO NOTHING
`, video.ID, video.ChannelSlug, string(video.YoutubeID), video.Title, video.Description,
		video.ContentType, video.Duration, video.Thumbnail, video.URL, video.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	if affected == 0 {
		return ErrDuplicate
	}

	return nil
}

func (p *PostgresVideoRepository) FindByChannel(ctx context.Context, channelSlug string) ([]*model.Video, error) {
	rows, err := p.pg.db.QueryContext(ctx, `
SELECT id, channel_slug, youtube_id, title, description, content_type, duration, thumbnail, url, published_at
FROM video
WHERE channel_slug = $1
ORDER BY published_at DESC
`, channelSlug)
	if err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		var video model.Video
		var ytID string
		if err := rows.Scan(&video.ID, &video.ChannelSlug, &ytID, &video.Title, &video.Description,
			&video.ContentType, &video.Duration, &video.Thumbnail, &video.URL, &video.PublishedAt); err != nil {
			return nil, fmt.Errorf("find videos: %w", err)
		}
		video.YoutubeID = model.YoutubeVideoID(ytID)
		videos = append(videos, &video)
	}

	return videos, rows.Err()
}

func (p *PostgresVideoRepository) CountByChannel(ctx context.Context, channelSlug string) (int, error) {
	var count int
	err := p.pg.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM video WHERE channel_slug = $1
`, channelSlug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}

	return count, nil
}

func (p *PostgresVideoRepository) LatestPublishedAt(ctx context.Context, channelSlug string) (time.Time, error) {
	var latest time.Time
	err := p.pg.db.QueryRowContext(ctx, `
SELECT published_at FROM video
WHERE channel_slug = $1
ORDER BY published_at DESC
LIMIT 1
`, channelSlug).Scan(&latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("latest published at: %w", err)
	}

	return latest, nil
}

type PostgresChannelRepository struct {
	pg *Postgres
}

func NewPostgresChannelRepository(pg *Postgres) *PostgresChannelRepository {
	return &PostgresChannelRepository{pg: pg}
}

func (p *PostgresChannelRepository) Upsert(ctx context.Context, channel model.Channel) error {
	_, err := p.pg.db.ExecContext(ctx, `
INSERT INTO channel (slug, name, youtube_id)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name, youtube_id = EXCLUDED.youtube_id
`, channel.Slug, channel.Name, string(channel.YoutubeID))
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	return nil
}

func (p *PostgresChannelRepository) Find(ctx context.Context, slug string) (model.Channel, error) {
	var channel model.Channel
	var ytID string
	err := p.pg.db.QueryRowContext(ctx, `
SELECT slug, name, youtube_id FROM channel WHERE slug = $1
`, slug).Scan(&channel.Slug, &channel.Name, &ytID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return model.Channel{}, ErrNotFound
	case err != nil:
		return model.Channel{}, fmt.Errorf("find channel: %w", err)
	}
	channel.YoutubeID = model.YoutubeChannelID(ytID)

	return channel, nil
}

func (p *PostgresChannelRepository) FindAll(ctx context.Context) ([]model.Channel, error) {
	rows, err := p.pg.db.QueryContext(ctx, `
SELECT slug, name, youtube_id FROM channel ORDER BY slug
`)
	if err != nil {
		return nil, fmt.Errorf("find channels: %w", err)
	}
	defer rows.Close()

	channels := []model.Channel{}
	for rows.Next() {
		var channel model.Channel
		var ytID string
		if err := rows.Scan(&channel.Slug, &channel.Name, &ytID); err != nil {
			return nil, fmt.Errorf("find channels: %w", err)
		}
		channel.YoutubeID = model.YoutubeChannelID(ytID)
		channels = append(channels, channel)
	}

	return channels, rows.Err()
}
