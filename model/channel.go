package model

const DefaultContentType = "podcast"

// Channel is one tracked channel as configured in the registry file.
// Channels are immutable after load.
type Channel struct {
	Name        string           `json:"name"`
	YoutubeID   YoutubeChannelID `json:"youtubeId"`
	Slug        string           `json:"slug"`
	ContentType string           `json:"contentType,omitempty"`
}
