package model

import (
	"time"

	"github.com/google/uuid"
)

type YoutubeVideoID string

type YoutubeChannelID string

// Video is one imported media item. Records are append-only: once inserted
// they are never mutated or deleted by this system.
type Video struct {
	ID          uuid.UUID
	ChannelSlug string
	YoutubeID   YoutubeVideoID
	Title       string
	Description string
	ContentType string
	Duration    string
	Thumbnail   string
	URL         string
	PublishedAt time.Time
}

// WatchURL returns the canonical watch URL for a video id.
func WatchURL(id YoutubeVideoID) string {
	return "https://www.youtube.com/watch?v=" + string(id)
}
