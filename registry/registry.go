// Package registry loads the static list of tracked channels.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"

	"go-mod.ewintr.nl/vidsync/model"
)

var (
	ErrInvalid  = errors.New("registry: invalid channel config")
	ErrNotFound = errors.New("registry: no channel matches")
)

var channelIDFormat = regexp.MustCompile(`^UC[a-zA-Z0-9_-]{22}$`)

// Registry is the ordered list of configured channels. Order follows the
// config file.
type Registry []model.Channel

// Load reads and validates a channel config file, a JSON array of objects
// with fields name, youtubeId and slug, plus an optional contentType that
// defaults to "podcast".
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var channels []model.Channel
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("%w: %s lists no channels", ErrInvalid, path)
	}

	seen := make(map[string]bool, len(channels))
	for i, ch := range channels {
		switch {
		case ch.Name == "":
			return nil, fmt.Errorf("%w: entry %d is missing a name", ErrInvalid, i)
		case ch.Slug == "":
			return nil, fmt.Errorf("%w: entry %d (%s) is missing a slug", ErrInvalid, i, ch.Name)
		case ch.YoutubeID == "":
			return nil, fmt.Errorf("%w: channel %q is missing a youtubeId", ErrInvalid, ch.Slug)
		case !channelIDFormat.MatchString(string(ch.YoutubeID)):
			return nil, fmt.Errorf("%w: channel %q has malformed youtubeId %q", ErrInvalid, ch.Slug, ch.YoutubeID)
		case seen[ch.Slug]:
			return nil, fmt.Errorf("%w: duplicate slug %q", ErrInvalid, ch.Slug)
		}
		seen[ch.Slug] = true
		if ch.ContentType == "" {
			channels[i].ContentType = model.DefaultContentType
		}
	}

	return channels, nil
}

// Filter narrows the registry to the channel with the given slug. An empty
// slug returns the registry unchanged.
func (r Registry) Filter(slug string) (Registry, error) {
	if slug == "" {
		return r, nil
	}
	for _, ch := range r {
		if ch.Slug == slug {
			return Registry{ch}, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNotFound, slug)
}
