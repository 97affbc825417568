package service

import (
	"time"

	"github.com/voyagen/confsync/internal/models"
)

// GroupCategoryNames groups links by owner id, keeping their order.
func GroupCategoryNames(links []models.CategoryLink) map[int64][]string {
	out := make(map[int64][]string)
	for _, l := range links {
		out[l.OwnerID] = append(out[l.OwnerID], l.Name)
	}
	return out
}

// AssembleChannels joins channels with their episodes and category names.
// channels should already be ordered; episodes keep their input order per
// channel. Lists that have nothing to join are empty, never nil.
func AssembleChannels(
	channels []models.Channel,
	episodes []models.Episode,
	channelCats []models.CategoryLink,
	episodeCats []models.CategoryLink,
) []models.ChannelView {
	channelNames := GroupCategoryNames(channelCats)
	episodeNames := GroupCategoryNames(episodeCats)

	byChannel := make(map[int64][]models.EpisodeView, len(channels))
	for _, ep := range episodes {
		byChannel[ep.ChannelID] = append(byChannel[ep.ChannelID], models.EpisodeView{
			ID:              ep.ID,
			GUID:            ep.GUID,
			Title:           ep.Title,
			Description:     ep.Description,
			Link:            ep.Link,
			PubDate:         ep.PubDate.UTC(),
			Duration:        ep.Duration,
			Explicit:        ep.Explicit,
			ImageURL:        ep.ImageURL,
			MediaURL:        ep.MediaURL,
			MediaType:       ep.MediaType,
			MediaLength:     ep.MediaLength,
			EpisodeCategory: nonNil(episodeNames[ep.ID]),
		})
	}

	out := make([]models.ChannelView, 0, len(channels))
	for _, ch := range channels {
		out = append(out, models.ChannelView{
			ID:            ch.ID,
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			Copyright:     ch.Copyright,
			Language:      ch.Language,
			Author:        ch.Author,
			OwnerEmail:    ch.OwnerEmail,
			OwnerName:     ch.OwnerName,
			ImageURL:      ch.ImageURL,
			LastBuildDate: ch.LastBuildDate.UTC().Format(time.RFC3339),
			Categories:    nonNil(channelNames[ch.ID]),
			Episodes:      nonNil(byChannel[ch.ID]),
		})
	}
	return out
}

// GroupSessionLinks groups speaker ids and category ids by session id.
func GroupSessionLinks(
	speakers []models.SessionSpeaker,
	categories []models.SessionCategory,
) (map[string][]string, map[string][]int32) {
	speakerIDs := make(map[string][]string)
	for _, l := range speakers {
		speakerIDs[l.SessionID] = append(speakerIDs[l.SessionID], l.SpeakerID)
	}
	categoryIDs := make(map[string][]int32)
	for _, l := range categories {
		categoryIDs[l.SessionID] = append(categoryIDs[l.SessionID], l.CategoryID)
	}
	return speakerIDs, categoryIDs
}

// AssembleSessions attaches speaker and category ids to each session.
func AssembleSessions(
	sessions []models.Session,
	speakers []models.SessionSpeaker,
	categories []models.SessionCategory,
) []models.SessionView {
	speakerIDs, categoryIDs := GroupSessionLinks(speakers, categories)

	out := make([]models.SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, models.SessionView{
			ID:               s.ID,
			Title:            s.Title,
			Description:      s.Description,
			StartsAt:         models.SessionTime(s.StartsAt),
			EndsAt:           models.SessionTime(s.EndsAt),
			RoomID:           s.RoomID,
			IsServiceSession: s.IsServiceSession,
			IsPlenumSession:  s.IsPlenumSession,
			Status:           s.Status,
			SpeakerIDs:       nonNil(speakerIDs[s.ID]),
			CategoryIDs:      nonNil(categoryIDs[s.ID]),
		})
	}
	return out
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
