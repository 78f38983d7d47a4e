package fetch

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go-mod.ewintr.nl/vidsync/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/youtube/v3"
)

type Youtube struct {
	Client *youtube.Service

	mu      sync.Mutex
	uploads map[model.YoutubeChannelID]string
}

func NewYoutube(client *youtube.Service) *Youtube {
	return &Youtube{
		Client:  client,
		uploads: map[model.YoutubeChannelID]string{},
	}
}

// ListUploads returns one page of the channel's uploads playlist, newest
// first, with title, description and duration already resolved.
func (y *Youtube) ListUploads(ctx context.Context, channelID model.YoutubeChannelID, pageToken string) (*Page, error) {
	playlistID, err := y.uploadsPlaylistID(ctx, channelID)
	if err != nil {
		return nil, err
	}

	call := y.Client.PlaylistItems.
		List([]string{"snippet,contentDetails"}).
		PlaylistId(playlistID).
		MaxResults(50).
		Context(ctx)

	if pageToken != "" {
		call.PageToken(pageToken)
	}

	response, err := call.Do()
	if err != nil {
		return nil, err
	}

	ids := make([]model.YoutubeVideoID, 0, len(response.Items))
	for _, item := range response.Items {
		if item.ContentDetails == nil || item.ContentDetails.VideoId == "" {
			continue
		}
		ids = append(ids, model.YoutubeVideoID(item.ContentDetails.VideoId))
	}

	details, err := y.videoDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	page := &Page{
		Videos:        make([]Listing, 0, len(ids)),
		NextPageToken: response.NextPageToken,
	}
	for _, id := range ids {
		// videos.list omits deleted and private uploads
		listing, ok := details[id]
		if !ok {
			continue
		}
		page.Videos = append(page.Videos, listing)
	}

	return page, nil
}

// FindChannel searches for channels matching the query and returns their
// ids, best match first.
func (y *Youtube) FindChannel(ctx context.Context, query string) ([]ChannelMatch, error) {
	call := y.Client.Search.
		List([]string{"snippet"}).
		Q(query).
		Type("channel").
		MaxResults(10).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return []ChannelMatch{}, err
	}

	matches := make([]ChannelMatch, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil || item.Snippet.ChannelId == "" {
			continue
		}
		matches = append(matches, ChannelMatch{
			ID:    model.YoutubeChannelID(item.Snippet.ChannelId),
			Title: item.Snippet.Title,
		})
	}

	return matches, nil
}

func (y *Youtube) uploadsPlaylistID(ctx context.Context, channelID model.YoutubeChannelID) (string, error) {
	y.mu.Lock()
	playlistID, ok := y.uploads[channelID]
	y.mu.Unlock()
	if ok {
		return playlistID, nil
	}

	call := y.Client.Channels.
		List([]string{"contentDetails"}).
		Id(string(channelID)).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return "", err
	}
	if len(response.Items) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	if response.Items[0].ContentDetails == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownChannel, channelID)
	}
	playlistID = response.Items[0].ContentDetails.RelatedPlaylists.Uploads

	y.mu.Lock()
	y.uploads[channelID] = playlistID
	y.mu.Unlock()

	return playlistID, nil
}

func (y *Youtube) videoDetails(ctx context.Context, ytIDs []model.YoutubeVideoID) (map[model.YoutubeVideoID]Listing, error) {
	if len(ytIDs) == 0 {
		return map[model.YoutubeVideoID]Listing{}, nil
	}

	strIDs := make([]string, len(ytIDs))
	for i, id := range ytIDs {
		strIDs[i] = string(id)
	}
	call := y.Client.Videos.
		List([]string{"snippet,contentDetails"}).
		Id(strings.Join(strIDs, ",")).
		Context(ctx)

	response, err := call.Do()
	if err != nil {
		return map[model.YoutubeVideoID]Listing{}, err
	}

	listings := make(map[model.YoutubeVideoID]Listing, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil {
			continue
		}
		id := model.YoutubeVideoID(item.Id)
		listing := Listing{
			YoutubeID:   id,
			Title:       item.Snippet.Title,
			Description: item.Snippet.Description,
			Thumbnail:   thumbnailURL(item.Snippet.Thumbnails),
			URL:         model.WatchURL(id),
		}
		if publishedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			listing.PublishedAt = publishedAt
		}
		if item.ContentDetails != nil {
			listing.Duration = FormatDuration(item.ContentDetails.Duration)
		}

		listings[id] = listing
	}

	return listings, nil
}

func thumbnailURL(details *youtube.ThumbnailDetails) string {
	switch {
	case details == nil:
		return ""
	case details.High != nil:
		return details.High.Url
	case details.Default != nil:
		return details.Default.Url
	}

	return ""
}

var durationFormat = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// FormatDuration rewrites an ISO 8601 duration like PT1H30M15S into a
// readable "1h 30m". Seconds only show up for clips shorter than a minute.
func FormatDuration(isoDuration string) string {
	m := durationFormat.FindStringSubmatch(isoDuration)
	if m == nil {
		return ""
	}

	parts := make([]string, 0, 2)
	if m[1] != "" {
		parts = append(parts, m[1]+"h")
	}
	if m[2] != "" {
		parts = append(parts, m[2]+"m")
	}
	if len(parts) == 0 && m[3] != "" {
		parts = append(parts, m[3]+"s")
	}

	return strings.Join(parts, " ")
}

// TransientProvider reports whether a provider error is worth retrying.
// Quota exhaustion, rate limits, server errors and network hiccups are
// transient. Unknown channels, other client errors and canceled contexts
// are not.
func TransientProvider(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrUnknownChannel) {
		return false
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 403:
			for _, item := range apiErr.Errors {
				switch item.Reason {
				case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded":
					return true
				}
			}

			return false
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return true
		default:
			return false
		}
	}

	return true
}
