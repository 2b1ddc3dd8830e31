package chat

import (
	"context"
	"sync"

	"marianchat/pkg/logger"
)

// Session tracks one user's live views. A session holds at most one open
// conversation at a time: opening a new peer closes the previous view
// first, so auto seen-marking never runs for a conversation the user has
// navigated away from.
type Session struct {
	UserID string

	mu     sync.Mutex
	svc    *Service
	conv   *Conversation
	unread *UnreadWatch
	closed bool
}

// NewSession creates a session for userID.
func (s *Service) NewSession(userID string) *Session {
	return &Session{UserID: userID, svc: s}
}

// OpenConversation switches the session's active conversation to peerID,
// closing any previously open one.
func (sess *Session) OpenConversation(ctx context.Context, peerID string) (*Conversation, error) {
	sess.mu.Lock()
	prev := sess.conv
	sess.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	conv, err := sess.svc.OpenConversation(ctx, sess.UserID, peerID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.closed {
		conv.Close()
		return nil, ErrValidation
	}
	sess.conv = conv
	return conv, nil
}

// CloseConversation closes the active conversation, if any.
func (sess *Session) CloseConversation() {
	sess.mu.Lock()
	conv := sess.conv
	sess.conv = nil
	sess.mu.Unlock()
	if conv != nil {
		conv.Close()
	}
}

// WatchUnread starts (or returns the already running) unseen-count watch
// for the session user.
func (sess *Session) WatchUnread(ctx context.Context) *UnreadWatch {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.unread == nil {
		sess.unread = sess.svc.WatchUnread(ctx, sess.UserID)
	}
	return sess.unread
}

// Close shuts down all live views held by the session. Safe to call
// multiple times.
func (sess *Session) Close() {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	sess.closed = true
	conv := sess.conv
	unread := sess.unread
	sess.conv = nil
	sess.unread = nil
	sess.mu.Unlock()

	if conv != nil {
		conv.Close()
	}
	if unread != nil {
		unread.Cancel()
	}
	logger.Debug("session_closed", "user", sess.UserID)
}
