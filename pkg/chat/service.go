package chat

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"marianchat/pkg/logger"
	"marianchat/pkg/metrics"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
	"marianchat/pkg/utils"
	"marianchat/pkg/validation"
)

// Options tunes a Service. Zero values fall back to defaults.
type Options struct {
	EditWindow time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
}

const (
	defaultBackoffMin = 100 * time.Millisecond
	defaultBackoffMax = 5 * time.Second
)

// Service implements the messaging core on top of the store: send, edit,
// mark seen, delete, and snapshot reads. All methods are safe for
// concurrent use; persistence is shared package state in store.
type Service struct {
	policy     Policy
	backoffMin time.Duration
	backoffMax time.Duration

	// now and readSnapshot are swappable for tests.
	now          func() time.Time
	readSnapshot func(func(models.Message) bool) ([]models.Message, error)
}

// NewService builds a Service with the given options.
func NewService(opts Options) *Service {
	s := &Service{
		policy:     NewPolicy(opts.EditWindow),
		backoffMin: opts.BackoffMin,
		backoffMax: opts.BackoffMax,
		now:        time.Now,
	}
	if s.backoffMin <= 0 {
		s.backoffMin = defaultBackoffMin
	}
	if s.backoffMax < s.backoffMin {
		s.backoffMax = defaultBackoffMax
	}
	s.readSnapshot = s.Snapshot
	return s
}

// Policy exposes the edit/delete policy in effect.
func (s *Service) Policy() Policy { return s.policy }

// Send validates and persists a new message from sender to receiver. The
// message gets a fresh id, the current timestamp, and starts unseen.
func (s *Service) Send(sender, receiver, body string) (models.Message, error) {
	if err := validation.ValidateInput(sender, receiver, body); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m := models.Message{
		ID:       utils.GenID(),
		Sender:   sender,
		Receiver: receiver,
		Body:     body,
		TS:       s.now().UTC().UnixNano(),
	}
	if err := store.SaveMessage(m); err != nil {
		logger.Error("send_failed", "sender", sender, "receiver", receiver, "error", err)
		return models.Message{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.MessagesSent.Inc()
	logger.Info("message_sent", "id", m.ID, "sender", sender, "receiver", receiver)
	return m, nil
}

// Edit replaces the body of an existing message. Only the sender may
// edit, and only within the edit window measured from the original send
// time; the boundary instant is still editable. The timestamp and order
// of the message do not change. Editing a message that no longer exists
// is a no-op.
func (s *Service) Edit(actor, id, body string) error {
	m, err := store.GetMessage(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.policy.CanEdit(m, actor, s.now()); err != nil {
		reason := "permission"
		if errors.Is(err, ErrEditWindow) {
			reason = "window"
		}
		metrics.EditRejections.WithLabelValues(reason).Inc()
		return err
	}
	if err := validation.ValidateBody(body); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m.Body = body
	m.Edited = true
	if err := store.UpdateMessage(m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.MessagesEdited.Inc()
	logger.AuditEvent("message_edited", "id", id, "actor", actor)
	return nil
}

// MarkSeen flips the seen flag of a message. Only the receiver may mark
// a message seen; marking an already-seen or missing message is a no-op.
func (s *Service) MarkSeen(actor, id string) error {
	m, err := store.GetMessage(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.policy.CanMarkSeen(m, actor); err != nil {
		return err
	}
	if m.Seen {
		return nil
	}
	m.Seen = true
	if err := store.UpdateMessage(m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.MessagesSeen.Inc()
	return nil
}

// Delete removes a message permanently. Only the sender may delete, at
// any time. Deleting a missing message is a no-op.
func (s *Service) Delete(actor, id string) error {
	m, err := store.GetMessage(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := s.policy.CanDelete(m, actor); err != nil {
		return err
	}
	if err := store.DeleteMessage(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	metrics.MessagesDeleted.Inc()
	logger.AuditEvent("message_deleted", "id", id, "actor", actor)
	return nil
}

// Get returns a single message by id.
func (s *Service) Get(id string) (models.Message, error) {
	m, err := store.GetMessage(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return m, ErrNotFound
		}
		return m, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return m, nil
}

// Snapshot returns the full set of messages matching filter, sorted by
// timestamp ascending. A nil filter returns everything.
func (s *Service) Snapshot(filter func(models.Message) bool) ([]models.Message, error) {
	msgs, err := store.ListMessages(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].TS < msgs[j].TS })
	return msgs, nil
}
