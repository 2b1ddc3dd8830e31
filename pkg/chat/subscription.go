package chat

import (
	"context"
	"sync"
	"time"

	"marianchat/pkg/logger"
	"marianchat/pkg/metrics"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
)

// Subscription streams full snapshots of the messages matching its
// filter. Every store mutation triggers a fresh snapshot; deliveries
// conflate, so a slow consumer always gets the latest state rather than
// a backlog of intermediate ones.
type Subscription struct {
	out    chan []models.Message
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Snapshots returns the delivery channel. It is closed after Cancel or
// when the subscription's context ends.
func (sub *Subscription) Snapshots() <-chan []models.Message { return sub.out }

// Done is closed once the subscription has fully stopped.
func (sub *Subscription) Done() <-chan struct{} { return sub.done }

// Cancel stops the subscription and waits for the delivery channel to be
// closed. Safe to call multiple times.
func (sub *Subscription) Cancel() {
	sub.once.Do(sub.cancel)
	<-sub.done
}

// Subscribe starts a snapshot subscription for messages matching filter.
// The first snapshot is delivered immediately; afterwards one follows
// every store change. If the store read fails the last delivered
// snapshot stays current and the read is retried with backoff.
func (s *Service) Subscribe(ctx context.Context, filter func(models.Message) bool) *Subscription {
	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		out:    make(chan []models.Message, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	metrics.ActiveSubscriptions.Inc()
	go sub.run(ctx, s, filter)
	return sub
}

func (sub *Subscription) run(ctx context.Context, s *Service, filter func(models.Message) bool) {
	defer func() {
		close(sub.out)
		metrics.ActiveSubscriptions.Dec()
		close(sub.done)
	}()

	backoff := s.backoffMin
	for {
		// Grab the change channel before reading so a write landing
		// between snapshot and wait still wakes us.
		changed := store.Changed()

		snap, err := s.readSnapshot(filter)
		if err != nil {
			logger.Warn("subscription_snapshot_failed", "error", err, "retry_in", backoff.String())
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > s.backoffMax {
				backoff = s.backoffMax
			}
			continue
		}
		backoff = s.backoffMin

		sub.deliver(snap)
		metrics.SnapshotsDelivered.Inc()

		select {
		case <-ctx.Done():
			return
		case <-changed:
		}
	}
}

// deliver replaces any undelivered snapshot with the new one.
func (sub *Subscription) deliver(snap []models.Message) {
	select {
	case <-sub.out:
	default:
	}
	sub.out <- snap
}
