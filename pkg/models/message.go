package models

// Message is a directed message between two users.
type Message struct {
	ID       string `json:"id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Body     string `json:"body"`
	// TS is the creation time in UnixNano, assigned by the store and
	// immutable afterwards. It is the total order for display.
	TS int64 `json:"ts"`
	// Seen is flipped to true once, by the receiver, when the message
	// enters their active view. It never goes back to false.
	Seen bool `json:"seen"`
	// Edited is set permanently after the sender rewrites the body.
	Edited bool `json:"edited,omitempty"`
}

// Between reports whether the message belongs to the conversation between
// users a and b, in either direction.
func (m Message) Between(a, b string) bool {
	return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
}
