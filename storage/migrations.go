package storage

import "fmt"

var pgMigration = []string{
	`CREATE TABLE channel (
slug VARCHAR(255) PRIMARY KEY,
name VARCHAR(255) NOT NULL,
youtube_id VARCHAR(255) NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
	`CREATE TABLE video (
id uuid PRIMARY KEY,
channel_slug VARCHAR(255) NOT NULL REFERENCES channel(slug),
youtube_id VARCHAR(255) NOT NULL,
title VARCHAR(255) NOT NULL DEFAULT '',
description TEXT NOT NULL DEFAULT '',
content_type VARCHAR(255) NOT NULL DEFAULT 'podcast',
duration VARCHAR(255) NOT NULL DEFAULT '',
thumbnail VARCHAR(255) NOT NULL DEFAULT '',
url VARCHAR(255) NOT NULL DEFAULT '',
published_at TIMESTAMPTZ NOT NULL,
created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
UNIQUE (channel_slug, youtube_id)
)`,
	`CREATE INDEX video_channel_published ON video (channel_slug, published_at DESC)`,
}

var sqliteMigration = []string{
	`CREATE TABLE channel (
slug TEXT PRIMARY KEY,
name TEXT NOT NULL,
youtube_id TEXT NOT NULL,
created_at TEXT NOT NULL DEFAULT (datetime('now'))
)`,
	`CREATE TABLE video (
id TEXT PRIMARY KEY,
channel_slug TEXT NOT NULL REFERENCES channel(slug),
youtube_id TEXT NOT NULL,
title TEXT NOT NULL DEFAULT '',
description TEXT NOT NULL DEFAULT '',
content_type TEXT NOT NULL DEFAULT 'podcast',
duration TEXT NOT NULL DEFAULT '',
thumbnail TEXT NOT NULL DEFAULT '',
url TEXT NOT NULL DEFAULT '',
published_at TEXT NOT NULL,
created_at TEXT NOT NULL DEFAULT (datetime('now')),
UNIQUE (channel_slug, youtube_id)
)`,
	`CREATE INDEX video_channel_published ON video (channel_slug, published_at DESC)`,
}

// compareMigrations checks that the already-executed migrations are a prefix
// of the wanted list and returns the ones still to run.
func compareMigrations(wanted, existing []string) ([]string, error) {
	needed := []string{}
	if len(wanted) < len(existing) {
		return []string{}, fmt.Errorf("not enough migrations")
	}

	for i, want := range wanted {
		switch {
		case i >= len(existing):
			needed = append(needed, want)
		case want == existing[i]:
			// do nothing
		case want != existing[i]:
			return []string{}, fmt.Errorf("incompatible migration: %v", want)
		}
	}

	return needed, nil
}
