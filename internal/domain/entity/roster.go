package entity

// RosterEntry is a user other than the current one, annotated with the preview
// of the most recent message exchanged with them.
type RosterEntry struct {
	User    *User  `json:"user"`
	Preview string `json:"preview,omitempty"`
}
