package models

// ImportRequest is the body of a podcast import: one channel, its category
// names, and its episodes (each with their own category names).
type ImportRequest struct {
	Channel    ChannelInput   `json:"channel"`
	Categories []string       `json:"categories"`
	Episodes   []EpisodeInput `json:"episodes"`
}

// ChannelInput describes a channel to import. Optional fields are pointers;
// nil means "use the default".
type ChannelInput struct {
	Title         string  `json:"title"`
	Link          string  `json:"link"`
	Description   string  `json:"description"`
	Copyright     *string `json:"copyright,omitempty"`
	Language      *string `json:"language,omitempty"`
	Author        *string `json:"author,omitempty"`
	OwnerEmail    *string `json:"ownerEmail,omitempty"`
	OwnerName     *string `json:"ownerName,omitempty"`
	ImageURL      *string `json:"imageUrl,omitempty"`
	LastBuildDate *string `json:"lastBuildDate,omitempty"` // RFC 3339
}

// EpisodeInput describes one episode to import.
type EpisodeInput struct {
	GUID            string   `json:"guid"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Link            string   `json:"link"`
	PubDate         string   `json:"pubDate"` // RFC 3339
	Duration        *int32   `json:"duration,omitempty"`
	Explicit        bool     `json:"explicit"`
	ImageURL        *string  `json:"imageUrl,omitempty"`
	MediaURL        *string  `json:"mediaUrl,omitempty"`
	MediaType       *string  `json:"mediaType,omitempty"`
	MediaLength     *int64   `json:"mediaLength,omitempty"`
	EpisodeCategory []string `json:"episodeCategory"`
}
