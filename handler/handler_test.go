package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-mod.ewintr.nl/vidsync/model"
	"go-mod.ewintr.nl/vidsync/storage"
)

type fakeVideoRepo struct {
	videos []*model.Video
	err    error
}

func (f *fakeVideoRepo) Exists(ctx context.Context, channelSlug string, ytID model.YoutubeVideoID) (bool, error) {
	return false, nil
}

func (f *fakeVideoRepo) Insert(ctx context.Context, video *model.Video) error {
	return nil
}

func (f *fakeVideoRepo) FindByChannel(ctx context.Context, channelSlug string) ([]*model.Video, error) {
	if f.err != nil {
		return nil, f.err
	}
	found := []*model.Video{}
	for _, v := range f.videos {
		if v.ChannelSlug == channelSlug {
			found = append(found, v)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].PublishedAt.After(found[j].PublishedAt) })

	return found, nil
}

func (f *fakeVideoRepo) CountByChannel(ctx context.Context, channelSlug string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	count := 0
	for _, v := range f.videos {
		if v.ChannelSlug == channelSlug {
			count++
		}
	}

	return count, nil
}

func (f *fakeVideoRepo) LatestPublishedAt(ctx context.Context, channelSlug string) (time.Time, error) {
	if f.err != nil {
		return time.Time{}, f.err
	}
	var latest time.Time
	for _, v := range f.videos {
		if v.ChannelSlug == channelSlug && v.PublishedAt.After(latest) {
			latest = v.PublishedAt
		}
	}

	return latest, nil
}

type fakeChannelRepo struct {
	channels []model.Channel
}

func (f *fakeChannelRepo) Upsert(ctx context.Context, channel model.Channel) error {
	return nil
}

func (f *fakeChannelRepo) Find(ctx context.Context, slug string) (model.Channel, error) {
	for _, ch := range f.channels {
		if ch.Slug == slug {
			return ch, nil
		}
	}

	return model.Channel{}, storage.ErrNotFound
}

func (f *fakeChannelRepo) FindAll(ctx context.Context) ([]model.Channel, error) {
	return f.channels, nil
}

func testServer(videoRepo storage.VideoRepository, channelRepo storage.ChannelRepository) *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return NewServer(videoRepo, channelRepo, logger)
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestServer_Index(t *testing.T) {
	srv := testServer(&fakeVideoRepo{}, &fakeChannelRepo{})

	rec := doRequest(t, srv, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"message": "vidsync index"}`, rec.Body.String())
}

func TestServer_UnknownPath(t *testing.T) {
	srv := testServer(&fakeVideoRepo{}, &fakeChannelRepo{})

	rec := doRequest(t, srv, http.MethodGet, "/nope")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChannelAPI_List(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	videoRepo := &fakeVideoRepo{videos: []*model.Video{
		{ChannelSlug: "lexfridman", YoutubeID: "vid-aaa", PublishedAt: at},
		{ChannelSlug: "lexfridman", YoutubeID: "vid-bbb", PublishedAt: at.Add(-24 * time.Hour)},
	}}
	channelRepo := &fakeChannelRepo{channels: []model.Channel{
		{Name: "Huberman Lab", YoutubeID: "UC2D2CMWXMOVWx7giW1n3LIg", Slug: "hubermanlab"},
		{Name: "Lex Fridman", YoutubeID: "UCSHZKyawb77ixDdsGog4iWA", Slug: "lexfridman"},
	}}
	srv := testServer(videoRepo, channelRepo)

	rec := doRequest(t, srv, http.MethodGet, "/channel")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []struct {
		Slug              string `json:"slug"`
		Name              string `json:"name"`
		YoutubeID         string `json:"youtube_id"`
		Videos            int    `json:"videos"`
		LatestPublishedAt string `json:"latest_published_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	assert.Equal(t, "hubermanlab", resp[0].Slug)
	assert.Equal(t, 0, resp[0].Videos)
	assert.Empty(t, resp[0].LatestPublishedAt, "no videos means no latest timestamp")

	assert.Equal(t, "lexfridman", resp[1].Slug)
	assert.Equal(t, "Lex Fridman", resp[1].Name)
	assert.Equal(t, "UCSHZKyawb77ixDdsGog4iWA", resp[1].YoutubeID)
	assert.Equal(t, 2, resp[1].Videos)
	assert.Equal(t, "2024-03-01T12:00:00Z", resp[1].LatestPublishedAt)
}

func TestChannelAPI_ListError(t *testing.T) {
	channelRepo := &fakeChannelRepo{channels: []model.Channel{
		{Name: "Lex Fridman", YoutubeID: "UCSHZKyawb77ixDdsGog4iWA", Slug: "lexfridman"},
	}}
	srv := testServer(&fakeVideoRepo{err: context.DeadlineExceeded}, channelRepo)

	rec := doRequest(t, srv, http.MethodGet, "/channel")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestChannelAPI_Videos(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	videoRepo := &fakeVideoRepo{videos: []*model.Video{
		{
			ChannelSlug: "lexfridman",
			YoutubeID:   "vid-old",
			Title:       "older episode",
			ContentType: "podcast",
			Duration:    "2h 5m",
			Thumbnail:   "https://i.ytimg.com/vi/vid-old/hqdefault.jpg",
			URL:         "https://www.youtube.com/watch?v=vid-old",
			PublishedAt: at.Add(-24 * time.Hour),
		},
		{
			ChannelSlug: "lexfridman",
			YoutubeID:   "vid-new",
			Title:       "newer episode",
			ContentType: "podcast",
			PublishedAt: at,
		},
	}}
	channelRepo := &fakeChannelRepo{channels: []model.Channel{
		{Name: "Lex Fridman", YoutubeID: "UCSHZKyawb77ixDdsGog4iWA", Slug: "lexfridman"},
	}}
	srv := testServer(videoRepo, channelRepo)

	rec := doRequest(t, srv, http.MethodGet, "/channel/lexfridman/video")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []struct {
		YoutubeID   string    `json:"youtube_id"`
		Title       string    `json:"title"`
		ContentType string    `json:"content_type"`
		Duration    string    `json:"duration"`
		Thumbnail   string    `json:"thumbnail"`
		URL         string    `json:"url"`
		PublishedAt time.Time `json:"published_at"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)

	assert.Equal(t, "vid-new", resp[0].YoutubeID, "newest first")
	assert.Equal(t, "vid-old", resp[1].YoutubeID)
	assert.Equal(t, "older episode", resp[1].Title)
	assert.Equal(t, "podcast", resp[1].ContentType)
	assert.Equal(t, "2h 5m", resp[1].Duration)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid-old", resp[1].URL)
	assert.Equal(t, at.Add(-24*time.Hour), resp[1].PublishedAt)
}

func TestChannelAPI_VideosUnknownChannel(t *testing.T) {
	srv := testServer(&fakeVideoRepo{}, &fakeChannelRepo{})

	rec := doRequest(t, srv, http.MethodGet, "/channel/nobody/video")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "nobody")
}

func TestChannelAPI_UnknownSubpath(t *testing.T) {
	channelRepo := &fakeChannelRepo{channels: []model.Channel{
		{Name: "Lex Fridman", YoutubeID: "UCSHZKyawb77ixDdsGog4iWA", Slug: "lexfridman"},
	}}
	srv := testServer(&fakeVideoRepo{}, channelRepo)

	rec := doRequest(t, srv, http.MethodGet, "/channel/lexfridman/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, srv, http.MethodPost, "/channel")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestShiftPath(t *testing.T) {
	for _, tc := range []struct {
		path     string
		wantHead string
		wantTail string
	}{
		{"/", "", "/"},
		{"/channel", "channel", "/"},
		{"/channel/lexfridman", "channel", "/lexfridman"},
		{"/channel/lexfridman/video", "channel", "/lexfridman/video"},
		{"//channel//", "channel", "/"},
		{"/channel/../video", "video", "/"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			head, tail := ShiftPath(tc.path)
			assert.Equal(t, tc.wantHead, head)
			assert.Equal(t, tc.wantTail, tail)
		})
	}
}
