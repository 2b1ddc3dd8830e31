package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"marianchat/pkg/logger"
	"marianchat/pkg/models"
)

// Conversation is a live view of the two-way message history between a
// user and one peer. It streams full snapshots sorted by send time, and
// marks incoming unseen messages as seen exactly once each as they
// appear, mirroring a user who has the exchange open on screen.
type Conversation struct {
	userID string
	peerID string

	sub  *Subscription
	out  chan []models.Message
	done chan struct{}
	once sync.Once
}

// OpenConversation opens a live conversation view between userID and
// peerID. Messages in either direction between the pair are included;
// everything else is filtered out.
func (s *Service) OpenConversation(ctx context.Context, userID, peerID string) (*Conversation, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(peerID) == "" {
		return nil, fmt.Errorf("%w: user and peer ids are required", ErrValidation)
	}
	if userID == peerID {
		return nil, fmt.Errorf("%w: cannot open a conversation with yourself", ErrValidation)
	}
	c := &Conversation{
		userID: userID,
		peerID: peerID,
		out:    make(chan []models.Message, 1),
		done:   make(chan struct{}),
	}
	c.sub = s.Subscribe(ctx, func(m models.Message) bool {
		return m.Between(userID, peerID)
	})
	go c.run(s)
	logger.Debug("conversation_opened", "user", userID, "peer", peerID)
	return c, nil
}

// Snapshots returns the delivery channel of conversation snapshots. It
// is closed when the conversation is closed.
func (c *Conversation) Snapshots() <-chan []models.Message { return c.out }

// Peer returns the id of the other participant.
func (c *Conversation) Peer() string { return c.peerID }

// Close stops the conversation view. Safe to call multiple times.
func (c *Conversation) Close() {
	c.once.Do(c.sub.Cancel)
	<-c.done
}

func (c *Conversation) run(s *Service) {
	defer func() {
		close(c.out)
		close(c.done)
	}()

	// Each incoming message is marked seen at most once per view, even
	// if the write fails and the message reappears unseen in a later
	// snapshot.
	marked := make(map[string]bool)

	for snap := range c.sub.Snapshots() {
		for _, m := range snap {
			if m.Receiver != c.userID || m.Seen || marked[m.ID] {
				continue
			}
			marked[m.ID] = true
			if err := s.MarkSeen(c.userID, m.ID); err != nil {
				logger.Warn("conversation_mark_seen_failed", "id", m.ID, "user", c.userID, "error", err)
			}
		}
		c.deliver(snap)
	}
}

func (c *Conversation) deliver(snap []models.Message) {
	select {
	case <-c.out:
	default:
	}
	c.out <- snap
}
