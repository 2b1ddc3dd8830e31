package chat

import (
	"time"

	"marianchat/pkg/models"
)

// DefaultEditWindow is how long a sender may edit a message after
// sending it. The boundary is inclusive.
const DefaultEditWindow = 5 * time.Minute

// Policy decides who may change a message and until when.
type Policy struct {
	EditWindow time.Duration
}

// NewPolicy returns a policy with the given edit window, falling back to
// the default when zero.
func NewPolicy(window time.Duration) Policy {
	if window <= 0 {
		window = DefaultEditWindow
	}
	return Policy{EditWindow: window}
}

// CanEdit reports whether actor may edit m at time now. Only the sender
// may edit, and only while now-sentAt <= window. An edit at exactly the
// window boundary is allowed.
func (p Policy) CanEdit(m models.Message, actor string, now time.Time) error {
	if m.Sender != actor {
		return ErrPermission
	}
	sentAt := time.Unix(0, m.TS)
	if now.Sub(sentAt) > p.EditWindow {
		return ErrEditWindow
	}
	return nil
}

// CanDelete reports whether actor may delete m. Only the sender may
// delete; there is no time limit.
func (p Policy) CanDelete(m models.Message, actor string) error {
	if m.Sender != actor {
		return ErrPermission
	}
	return nil
}

// CanMarkSeen reports whether actor may mark m seen. Only the receiver
// flips the flag.
func (p Policy) CanMarkSeen(m models.Message, actor string) error {
	if m.Receiver != actor {
		return ErrPermission
	}
	return nil
}
