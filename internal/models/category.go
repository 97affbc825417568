package models

// Namespace separates channel-level from episode-level category names.
// The same spelling in two namespaces is two different categories.
type Namespace int16

const (
	NamespaceChannel Namespace = 0
	NamespaceEpisode Namespace = 1
)

func (n Namespace) String() string {
	switch n {
	case NamespaceChannel:
		return "channel"
	case NamespaceEpisode:
		return "episode"
	default:
		return "unknown"
	}
}

// Category is a named taxonomy entry within one namespace.
type Category struct {
	ID        int64     `json:"id,omitempty"`
	Namespace Namespace `json:"namespace"`
	Name      string    `json:"name"`
}

// CategoryLink is one row of a mapping table joined to the category name:
// OwnerID is the channel id or episode id depending on the namespace.
type CategoryLink struct {
	OwnerID int64
	Name    string
}
