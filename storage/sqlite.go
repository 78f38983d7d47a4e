package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"go-mod.ewintr.nl/vidsync/model"
)

// SQLite is the file-backed store used when no Postgres is configured.
// Times are stored as RFC 3339 UTC text so they order correctly.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLite{}, err
	}
	db.SetMaxOpenConns(1) // single writer
	s := &SQLite{db: db}
	if err := s.migrate(sqliteMigration); err != nil {
		return &SQLite{}, err
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) migrate(wanted []string) error {
	query := `CREATE TABLE IF NOT EXISTS migration
("id" INTEGER PRIMARY KEY AUTOINCREMENT, "query" TEXT)`
	_, err := s.db.Exec(query)
	if err != nil {
		return err
	}

	rows, err := s.db.Query(`SELECT query FROM migration ORDER BY id`)
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

	missing, err := compareMigrations(wanted, existing)
	if err != nil {
		return err
	}

	for _, query := range missing {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
		if _, err := s.db.Exec(`INSERT INTO migration (query) VALUES (?)`, query); err != nil {
			return err
		}
	}

	return nil
}

type SQLiteVideoRepository struct {
	sl *SQLite
}

func NewSQLiteVideoRepository(sl *SQLite) *SQLiteVideoRepository {
	return &SQLiteVideoRepository{sl: sl}
}

func (s *SQLiteVideoRepository) Exists(ctx context.Context, channelSlug string, ytID model.YoutubeVideoID) (bool, error) {
	var count int
	err := s.sl.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM video
WHERE channel_slug = ? AND youtube_id = ?
`, channelSlug, string(ytID)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("exists check: %w", err)
	}

	return count > 0, nil
}

func (s *SQLiteVideoRepository) Insert(ctx context.Context, video *model.Video) error {
	res, err := s.sl.db.ExecContext(ctx, `
INSERT INTO video
(id, channel_slug, youtube_id, title, description, content_type, duration, thumbnail, url, published_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (channel_slug, youtube_id) DO NOTHING
`, video.ID.String(), video.ChannelSlug, string(video.YoutubeID), video.Title, video.Description,
		video.ContentType, video.Duration, video.Thumbnail, video.URL, formatTime(video.PublishedAt))
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

func (s *SQLiteVideoRepository) FindByChannel(ctx context.Context, channelSlug string) ([]*model.Video, error) {
	rows, err := s.sl.db.QueryContext(ctx, `
SELECT id, channel_slug, youtube_id, title, description, content_type, duration, thumbnail, url, published_at
FROM video
WHERE channel_slug = ?
ORDER BY published_at DESC
`, channelSlug)
	if err != nil {
		return nil, fmt.Errorf("find videos: %w", err)
	}
	defer rows.Close()

	videos := []*model.Video{}
	for rows.Next() {
		var video model.Video
		var id, ytID, publishedAt string
		if err := rows.Scan(&id, &video.ChannelSlug, &ytID, &video.Title, &video.Description,
			&video.ContentType, &video.Duration, &video.Thumbnail, &video.URL, &publishedAt); err != nil {
			return nil, fmt.Errorf("find videos: %w", err)
		}
		video.ID, err = parseID(id)
		if err != nil {
			return nil, fmt.Errorf("find videos: %w", err)
		}
		video.YoutubeID = model.YoutubeVideoID(ytID)
		video.PublishedAt, err = parseTime(publishedAt)
		if err != nil {
			return nil, fmt.Errorf("find videos: %w", err)
		}
		videos = append(videos, &video)
	}

	return videos, rows.Err()
}

func (s *SQLiteVideoRepository) CountByChannel(ctx context.Context, channelSlug string) (int, error) {
	var count int
	err := s.sl.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM video WHERE channel_slug = ?
`, channelSlug).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}

	return count, nil
}

func (s *SQLiteVideoRepository) LatestPublishedAt(ctx context.Context, channelSlug string) (time.Time, error) {
	var latest string
	err := s.sl.db.QueryRowContext(ctx, `
SELECT published_at FROM video
WHERE channel_slug = ?
ORDER BY published_at DESC
LIMIT 1
`, channelSlug).Scan(&latest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("latest published at: %w", err)
	}

	return parseTime(latest)
}

type SQLiteChannelRepository struct {
	sl *SQLite
}

func NewSQLiteChannelRepository(sl *SQLite) *SQLiteChannelRepository {
	return &SQLiteChannelRepository{sl: sl}
}

func (s *SQLiteChannelRepository) Upsert(ctx context.Context, channel model.Channel) error {
	_, err := s.sl.db.ExecContext(ctx, `
INSERT INTO channel (slug, name, youtube_id)
VALUES (?, ?, ?)
ON CONFLICT (slug) DO UPDATE SET name = excluded.name, youtube_id = excluded.youtube_id
`, channel.Slug, channel.Name, string(channel.YoutubeID))
	if err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}

	return nil
}

func (s *SQLiteChannelRepository) Find(ctx context.Context, slug string) (model.Channel, error) {
	var channel model.Channel
	var ytID string
	err := s.sl.db.QueryRowContext(ctx, `
SELECT slug, name, youtube_id FROM channel WHERE slug = ?
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

func (s *SQLiteChannelRepository) FindAll(ctx context.Context) ([]model.Channel, error) {
	rows, err := s.sl.db.QueryContext(ctx, `
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

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
