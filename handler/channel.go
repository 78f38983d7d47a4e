package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go-mod.ewintr.nl/vidsync/storage"
)

type ChannelAPI struct {
	videoRepo   storage.VideoRepository
	channelRepo storage.ChannelRepository
	logger      *slog.Logger
}

func NewChannelAPI(videoRepo storage.VideoRepository, channelRepo storage.ChannelRepository, logger *slog.Logger) *ChannelAPI {
	return &ChannelAPI{
		videoRepo:   videoRepo,
		channelRepo: channelRepo,
		logger:      logger,
	}
}

func (c *ChannelAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slug, tail := ShiftPath(r.URL.Path)
	sub, _ := ShiftPath(tail)

	switch {
	case r.Method == http.MethodGet && slug == "":
		c.List(w, r)
	case r.Method == http.MethodGet && sub == "video":
		c.Videos(w, r, slug)
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("method %s with subpath %q was not registered in the channel api", r.Method, slug))
	}
}

// List returns every synced channel with how many videos it holds and when
// the newest one was published.
func (c *ChannelAPI) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	channels, err := c.channelRepo.FindAll(ctx)
	if err != nil {
		c.returnErr(ctx, w, http.StatusInternalServerError, "could not list channels", err)
		return
	}

	type respChannel struct {
		Slug              string `json:"slug"`
		Name              string `json:"name"`
		YoutubeID         string `json:"youtube_id"`
		Videos            int    `json:"videos"`
		LatestPublishedAt string `json:"latest_published_at,omitempty"`
	}
	resp := make([]respChannel, 0, len(channels))
	for _, channel := range channels {
		count, err := c.videoRepo.CountByChannel(ctx, channel.Slug)
		if err != nil {
			c.returnErr(ctx, w, http.StatusInternalServerError, "could not count videos", err)
			return
		}
		latest, err := c.videoRepo.LatestPublishedAt(ctx, channel.Slug)
		if err != nil {
			c.returnErr(ctx, w, http.StatusInternalServerError, "could not find latest video", err)
			return
		}
		rc := respChannel{
			Slug:      channel.Slug,
			Name:      channel.Name,
			YoutubeID: string(channel.YoutubeID),
			Videos:    count,
		}
		if !latest.IsZero() {
			rc.LatestPublishedAt = latest.UTC().Format(time.RFC3339)
		}
		resp = append(resp, rc)
	}

	jsonBody, err := json.Marshal(resp)
	if err != nil {
		c.returnErr(ctx, w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, string(jsonBody))
}

// Videos returns the stored videos of one channel, newest first.
func (c *ChannelAPI) Videos(w http.ResponseWriter, r *http.Request, slug string) {
	ctx := r.Context()
	if _, err := c.channelRepo.Find(ctx, slug); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			Error(w, http.StatusNotFound, "not found", fmt.Errorf("no channel with slug %q", slug))
			return
		}
		c.returnErr(ctx, w, http.StatusInternalServerError, "could not find channel", err)
		return
	}

	videos, err := c.videoRepo.FindByChannel(ctx, slug)
	if err != nil {
		c.returnErr(ctx, w, http.StatusInternalServerError, "could not list videos", err)
		return
	}

	type respVideo struct {
		YoutubeID   string    `json:"youtube_id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		ContentType string    `json:"content_type"`
		Duration    string    `json:"duration"`
		Thumbnail   string    `json:"thumbnail"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"published_at"`
	}
	resp := make([]respVideo, 0, len(videos))
	for _, video := range videos {
		resp = append(resp, respVideo{
			YoutubeID:   string(video.YoutubeID),
			Title:       video.Title,
			Description: video.Description,
			ContentType: video.ContentType,
			Duration:    video.Duration,
			Thumbnail:   video.Thumbnail,
			URL:         video.URL,
			PublishedAt: video.PublishedAt,
		})
	}

	jsonBody, err := json.Marshal(resp)
	if err != nil {
		c.returnErr(ctx, w, http.StatusInternalServerError, "could not marshal response", err)
		return
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, string(jsonBody))
}

func (c *ChannelAPI) returnErr(_ context.Context, w http.ResponseWriter, status int, message string, err error, details ...any) {
	c.logger.Error(message, slog.String("err", err.Error()), slog.String("details", fmt.Sprintf("%+v", details)))
	Error(w, status, message, err, details...)
}
