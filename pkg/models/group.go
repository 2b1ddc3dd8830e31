package models

// Group is a cohort startup team. Like User it is owned by an external
// subsystem; the messaging core reads it to build the peer directory.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members,omitempty"`
}

// PeerEntry is a user projected into the chat directory, annotated with
// the group name when the peer is reachable via group membership and the
// viewer's live unread count for that peer.
type PeerEntry struct {
	User
	GroupName string `json:"group_name,omitempty"`
	Unread    int    `json:"unread"`
}
