package storage

import (
	"context"
	"errors"
	"time"

	"go-mod.ewintr.nl/vidsync/model"
)

var (
	// ErrDuplicate is returned by Insert when a video with the same
	// (channel, youtube id) already exists. Callers treat it as "already
	// present", not as a failure.
	ErrDuplicate = errors.New("storage: duplicate video")
	ErrNotFound  = errors.New("storage: not found")
)

type VideoRepository interface {
	Exists(ctx context.Context, channelSlug string, ytID model.YoutubeVideoID) (bool, error)
	Insert(ctx context.Context, video *model.Video) error
	FindByChannel(ctx context.Context, channelSlug string) ([]*model.Video, error)
	CountByChannel(ctx context.Context, channelSlug string) (int, error)
	// LatestPublishedAt reports the newest publish time already imported
	// for a channel, the zero time when nothing is imported yet.
	LatestPublishedAt(ctx context.Context, channelSlug string) (time.Time, error)
}

type ChannelRepository interface {
	Upsert(ctx context.Context, channel model.Channel) error
	Find(ctx context.Context, slug string) (model.Channel, error)
	FindAll(ctx context.Context) ([]model.Channel, error)
}
