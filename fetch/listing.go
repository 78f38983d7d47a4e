package fetch

import (
	"context"
	"errors"
	"time"

	"go-mod.ewintr.nl/vidsync/model"
)

// ErrUnknownChannel is returned when the provider has no channel for the
// requested id. It is never retried.
var ErrUnknownChannel = errors.New("fetch: unknown channel id")

// Listing is one video as the provider reports it, newest first within a
// channel's uploads.
type Listing struct {
	YoutubeID   model.YoutubeVideoID
	Title       string
	Description string
	PublishedAt time.Time
	Duration    string
	Thumbnail   string
	URL         string
}

// Page is a single page of a channel's uploads. An empty NextPageToken
// means the last page has been reached.
type Page struct {
	Videos        []Listing
	NextPageToken string
}

// ChannelLister pages through a channel's uploads in reverse chronological
// order. Pass an empty pageToken for the first page.
type ChannelLister interface {
	ListUploads(ctx context.Context, channelID model.YoutubeChannelID, pageToken string) (*Page, error)
}

// ChannelMatch is a candidate channel for a search query.
type ChannelMatch struct {
	ID    model.YoutubeChannelID
	Title string
}

// ChannelFinder looks up channel ids by free-text query.
type ChannelFinder interface {
	FindChannel(ctx context.Context, query string) ([]ChannelMatch, error)
}
