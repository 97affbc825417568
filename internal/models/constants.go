package models

// Defaults applied to optional import fields so stored rows carry no NULLs
// that downstream consumers would have to handle.
const (
	DefaultLanguage  = "en"
	DefaultMediaType = "audio/mpeg"
)

// Podcast request statuses.
const (
	RequestStatusPending  = "pending"
	RequestStatusImported = "imported"
	RequestStatusFailed   = "failed"
)
