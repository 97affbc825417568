package models

import "time"

// PodcastRequest is a user's request to add a podcast by RSS link.
type PodcastRequest struct {
	ID        int64      `json:"id,omitempty"`
	Requester string     `json:"requester,omitempty"`
	Title     string     `json:"title"`
	Author    string     `json:"author"`
	RSSLink   string     `json:"rssLink"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	ChannelID *int64     `json:"channelId,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}
