package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go-mod.ewintr.nl/vidsync/model"
	"go-mod.ewintr.nl/vidsync/retry"
	"go-mod.ewintr.nl/vidsync/storage"
	"golang.org/x/sync/errgroup"
)

const (
	defaultRequestTimeout = 30 * time.Second
)

type Config struct {
	// RequestTimeout bounds every single provider or store call.
	RequestTimeout time.Duration
	// Retry drives the backoff for transient failures.
	Retry retry.Config
	// LookbackPages is how many consecutive pages without a single new
	// video the syncer tolerates before it stops paging. Zero means stop
	// at the first page that holds only known videos.
	LookbackPages int
	// Concurrency is the number of channels synced at the same time.
	Concurrency int
	// DeepScan disables early stopping and walks every page of every
	// channel. Backfills videos missed by earlier runs.
	DeepScan bool
}

// Outcome is the per-channel result of a sync run.
type Outcome struct {
	Channel  string
	Inserted int
	Skipped  int
	Failed   int
	Err      error
}

// OK reports whether the channel synced without losing a single video.
func (o Outcome) OK() bool {
	return o.Err == nil && o.Failed == 0
}

// AnyFailed reports whether at least one channel in the run had a failure.
func AnyFailed(outcomes []Outcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return true
		}
	}

	return false
}

type Syncer struct {
	videoRepo   storage.VideoRepository
	channelRepo storage.ChannelRepository
	lister      ChannelLister
	cfg         Config
	logger      *slog.Logger
}

func NewSyncer(videoRepo storage.VideoRepository, channelRepo storage.ChannelRepository, lister ChannelLister, cfg Config, logger *slog.Logger) *Syncer {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.LookbackPages < 0 {
		cfg.LookbackPages = 0
	}

	return &Syncer{
		videoRepo:   videoRepo,
		channelRepo: channelRepo,
		lister:      lister,
		cfg:         cfg,
		logger:      logger,
	}
}

// Sync brings the store up to date for every given channel and returns one
// outcome per channel, in the same order. A failing channel never stops
// the others.
func (s *Syncer) Sync(ctx context.Context, channels []model.Channel) []Outcome {
	outcomes := make([]Outcome, len(channels))

	group := new(errgroup.Group)
	group.SetLimit(s.cfg.Concurrency)
	for i, channel := range channels {
		group.Go(func() error {
			outcome := s.syncChannel(ctx, channel)
			s.logOutcome(outcome)
			outcomes[i] = outcome

			return nil
		})
	}
	group.Wait()

	return outcomes
}

func (s *Syncer) syncChannel(ctx context.Context, channel model.Channel) Outcome {
	outcome := Outcome{Channel: channel.Slug}
	logger := s.logger.With(slog.String("channel", channel.Slug))

	if err := s.withRetry(ctx, transientStore, func(opCtx context.Context) error {
		return s.channelRepo.Upsert(opCtx, channel)
	}); err != nil {
		outcome.Err = fmt.Errorf("upsert channel: %w", err)

		return outcome
	}

	s.logCursor(ctx, logger, channel.Slug)

	token := ""
	knownPages := 0
	for {
		var page *Page
		if err := s.withRetry(ctx, TransientProvider, func(opCtx context.Context) error {
			var err error
			page, err = s.lister.ListUploads(opCtx, channel.YoutubeID, token)

			return err
		}); err != nil {
			outcome.Err = fmt.Errorf("list uploads: %w", err)

			return outcome
		}

		newInPage := 0
		for _, listing := range dedupe(page.Videos) {
			switch inserted, err := s.importListing(ctx, channel, listing); {
			case err != nil:
				outcome.Failed++
				outcome.Err = err
				logger.Error("failed to import video", slog.String("ytid", string(listing.YoutubeID)), slog.String("error", err.Error()))
			case inserted:
				outcome.Inserted++
				newInPage++
				logger.Debug("imported video", slog.String("ytid", string(listing.YoutubeID)), slog.String("title", listing.Title))
			default:
				outcome.Skipped++
			}
		}
		logger.Debug("synced page", slog.String("pagetoken", token), slog.Int("count", len(page.Videos)), slog.Int("new", newInPage))

		if page.NextPageToken == "" {
			break
		}
		if !s.cfg.DeepScan {
			if newInPage == 0 {
				knownPages++
				if knownPages > s.cfg.LookbackPages {
					break
				}
			} else {
				knownPages = 0
			}
		}
		token = page.NextPageToken
	}

	return outcome
}

// importListing stores one listed video unless it is already known. It
// reports whether a new record was written.
func (s *Syncer) importListing(ctx context.Context, channel model.Channel, listing Listing) (bool, error) {
	var exists bool
	if err := s.withRetry(ctx, transientStore, func(opCtx context.Context) error {
		var err error
		exists, err = s.videoRepo.Exists(opCtx, channel.Slug, listing.YoutubeID)

		return err
	}); err != nil {
		return false, fmt.Errorf("check video %s: %w", listing.YoutubeID, err)
	}
	if exists {
		return false, nil
	}

	video := &model.Video{
		ID:          uuid.New(),
		ChannelSlug: channel.Slug,
		YoutubeID:   listing.YoutubeID,
		Title:       listing.Title,
		Description: listing.Description,
		ContentType: channel.ContentType,
		Duration:    listing.Duration,
		Thumbnail:   listing.Thumbnail,
		URL:         listing.URL,
		PublishedAt: listing.PublishedAt,
	}
	err := s.withRetry(ctx, transientStore, func(opCtx context.Context) error {
		return s.videoRepo.Insert(opCtx, video)
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		// lost a race with a concurrent writer, the video is there
		return false, nil
	case err != nil:
		return false, fmt.Errorf("insert video %s: %w", listing.YoutubeID, err)
	}

	return true, nil
}

func (s *Syncer) withRetry(ctx context.Context, retryable retry.Classifier, op func(context.Context) error) error {
	return retry.Do(ctx, s.cfg.Retry, retryable, func(ctx context.Context) error {
		opCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()

		return op(opCtx)
	})
}

func (s *Syncer) logCursor(ctx context.Context, logger *slog.Logger, channelSlug string) {
	opCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	latest, err := s.videoRepo.LatestPublishedAt(opCtx, channelSlug)
	switch {
	case err != nil:
		logger.Warn("failed to read latest video", slog.String("error", err.Error()))
	case latest.IsZero():
		logger.Info("channel has no videos yet, starting from scratch")
	default:
		logger.Info("resuming sync", slog.Time("latest", latest))
	}
}

func (s *Syncer) logOutcome(outcome Outcome) {
	attrs := []any{
		slog.String("channel", outcome.Channel),
		slog.Int("inserted", outcome.Inserted),
		slog.Int("skipped", outcome.Skipped),
		slog.Int("failed", outcome.Failed),
	}
	if outcome.Err != nil {
		attrs = append(attrs, slog.String("error", outcome.Err.Error()))
		s.logger.Error("channel sync failed", attrs...)

		return
	}
	s.logger.Info("channel synced", attrs...)
}

// transientStore treats every store error as retryable except a duplicate
// row, which is a result, and a canceled context.
func transientStore(err error) bool {
	return !errors.Is(err, storage.ErrDuplicate) && !errors.Is(err, context.Canceled)
}

// dedupe drops repeated video ids within one page, keeping first
// occurrences in order.
func dedupe(listings []Listing) []Listing {
	seen := make(map[model.YoutubeVideoID]bool, len(listings))
	deduped := make([]Listing, 0, len(listings))
	for _, listing := range listings {
		if seen[listing.YoutubeID] {
			continue
		}
		seen[listing.YoutubeID] = true
		deduped = append(deduped, listing)
	}

	return deduped
}
