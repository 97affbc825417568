package models

import "time"

// Channel is a stored podcast channel row (podcast_channels).
type Channel struct {
	ID            int64     `json:"id,omitempty"`
	Title         string    `json:"title"`
	Link          string    `json:"link"`
	Description   string    `json:"description"`
	Copyright     *string   `json:"copyright,omitempty"`
	Language      string    `json:"language"`
	Author        string    `json:"author"`
	OwnerEmail    string    `json:"owner_email"`
	OwnerName     string    `json:"owner_name"`
	ImageURL      string    `json:"image_url"`
	LastBuildDate time.Time `json:"last_build_date"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Episode is a stored podcast episode row (podcast_episodes).
type Episode struct {
	ID          int64     `json:"id,omitempty"`
	ChannelID   int64     `json:"channel_id"`
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Link        string    `json:"link"`
	PubDate     time.Time `json:"pub_date"`
	Duration    int32     `json:"duration"`
	Explicit    bool      `json:"explicit"`
	ImageURL    *string   `json:"image_url,omitempty"`
	MediaURL    string    `json:"media_url"`
	MediaType   string    `json:"media_type"`
	MediaLength int64     `json:"media_length"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ChannelView is the client-facing channel with its categories and episodes.
// The same field names are used for the JSON and the CBOR encodings.
type ChannelView struct {
	ID            int64         `json:"id"`
	Title         string        `json:"title"`
	Link          string        `json:"link"`
	Description   string        `json:"description"`
	Copyright     *string       `json:"copyright"`
	Language      string        `json:"language"`
	Author        string        `json:"author"`
	OwnerEmail    string        `json:"ownerEmail"`
	OwnerName     string        `json:"ownerName"`
	ImageURL      string        `json:"imageUrl"`
	LastBuildDate string        `json:"lastBuildDate"`
	Categories    []string      `json:"categories"`
	Episodes      []EpisodeView `json:"episodes"`
}

// EpisodeView is the client-facing episode nested in a ChannelView.
type EpisodeView struct {
	ID              int64     `json:"id"`
	GUID            string    `json:"guid"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Link            string    `json:"link"`
	PubDate         time.Time `json:"pubDate"`
	Duration        int32     `json:"duration"`
	Explicit        bool      `json:"explicit"`
	ImageURL        *string   `json:"imageUrl"`
	MediaURL        string    `json:"mediaUrl"`
	MediaType       string    `json:"mediaType"`
	MediaLength     int64     `json:"mediaLength"`
	EpisodeCategory []string  `json:"episodeCategory"`
}
