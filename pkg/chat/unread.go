package chat

import (
	"context"
	"sync"

	"marianchat/pkg/models"
)

// UnreadCounts maps sender id to the number of unseen messages that
// sender has addressed to the watched receiver.
type UnreadCounts map[string]int

// CountUnread returns the current unseen message counts for receiver,
// grouped by sender. Senders with no unseen messages are absent.
func (s *Service) CountUnread(receiver string) (UnreadCounts, error) {
	msgs, err := s.Snapshot(func(m models.Message) bool {
		return m.Receiver == receiver && !m.Seen
	})
	if err != nil {
		return nil, err
	}
	counts := make(UnreadCounts)
	for _, m := range msgs {
		counts[m.Sender]++
	}
	return counts, nil
}

// UnreadWatch streams unseen-count snapshots for one receiver. Like
// message subscriptions, deliveries conflate to the latest state.
type UnreadWatch struct {
	sub  *Subscription
	out  chan UnreadCounts
	done chan struct{}
	once sync.Once
}

// WatchUnread starts a live unseen-count watch for receiver. A count
// snapshot is delivered immediately and then after every store change
// that affects the receiver's unseen set.
func (s *Service) WatchUnread(ctx context.Context, receiver string) *UnreadWatch {
	w := &UnreadWatch{
		out:  make(chan UnreadCounts, 1),
		done: make(chan struct{}),
	}
	w.sub = s.Subscribe(ctx, func(m models.Message) bool {
		return m.Receiver == receiver && !m.Seen
	})
	go w.run()
	return w
}

// Counts returns the delivery channel. It is closed after Cancel.
func (w *UnreadWatch) Counts() <-chan UnreadCounts { return w.out }

// Cancel stops the watch and waits for the delivery channel to close.
// Safe to call multiple times.
func (w *UnreadWatch) Cancel() {
	w.once.Do(w.sub.Cancel)
	<-w.done
}

func (w *UnreadWatch) run() {
	defer func() {
		close(w.out)
		close(w.done)
	}()
	for snap := range w.sub.Snapshots() {
		counts := make(UnreadCounts)
		for _, m := range snap {
			counts[m.Sender]++
		}
		select {
		case <-w.out:
		default:
		}
		w.out <- counts
	}
}
