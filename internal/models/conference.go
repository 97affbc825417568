package models

import (
	"encoding/json"
	"time"
)

// SessionTimeLayout is the wire format of session start/end times: UTC
// without a zone designator.
const SessionTimeLayout = "2006-01-02T15:04:05"

// SessionTime marshals as SessionTimeLayout in UTC.
type SessionTime time.Time

func (t SessionTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(SessionTimeLayout))
}

func (t *SessionTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.ParseInLocation(SessionTimeLayout, s, time.UTC)
	if err != nil {
		return err
	}
	*t = SessionTime(parsed)
	return nil
}

// Session is a stored conference session row.
type Session struct {
	ID               string
	Title            string
	Description      *string
	StartsAt         time.Time
	EndsAt           time.Time
	RoomID           *int32
	IsServiceSession bool
	IsPlenumSession  bool
	Status           string
	UpdatedAt        time.Time
}

// SessionSpeaker is one row of session_speakers.
type SessionSpeaker struct {
	SessionID string
	SpeakerID string
}

// SessionCategory is one row of session_categories.
type SessionCategory struct {
	SessionID  string
	CategoryID int32
}

// SessionView is the client-facing session with speaker and category ids.
type SessionView struct {
	ID               string      `json:"id"`
	Title            string      `json:"title"`
	Description      *string     `json:"description"`
	StartsAt         SessionTime `json:"startsAt"`
	EndsAt           SessionTime `json:"endsAt"`
	RoomID           *int32      `json:"roomId"`
	IsServiceSession bool        `json:"isServiceSession"`
	IsPlenumSession  bool        `json:"isPlenumSession"`
	Status           string      `json:"status"`
	SpeakerIDs       []string    `json:"speakerIds"`
	CategoryIDs      []int32     `json:"categoryIds"`
}

// Speaker is a conference speaker.
type Speaker struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	Bio            *string   `json:"bio"`
	TagLine        *string   `json:"tagLine"`
	ProfilePicture *string   `json:"profilePicture"`
	IsTopSpeaker   bool      `json:"isTopSpeaker"`
	UpdatedAt      time.Time `json:"-"`
}

// Room is a conference room.
type Room struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Sort      *int32    `json:"sort"`
	UpdatedAt time.Time `json:"-"`
}

// ConferenceCategory is a session category (track, level, format, ...).
type ConferenceCategory struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Sort      *int32    `json:"sort"`
	TypeName  *string   `json:"type_name"`
	UpdatedAt time.Time `json:"-"`
}
