package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"marianchat/pkg/logger"
	"marianchat/pkg/models"
	"marianchat/pkg/store"
)

// fakeClock lets tests move the service's notion of now.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	logger.InitWithLevel("error")
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	clock := &fakeClock{t: time.Now()}
	svc := NewService(Options{BackoffMin: 10 * time.Millisecond, BackoffMax: 50 * time.Millisecond})
	svc.now = clock.Now
	return svc, clock
}

// waitSnapshot reads snapshots until pred holds or the deadline hits.
func waitSnapshot(t *testing.T, ch <-chan []models.Message, pred func([]models.Message) bool) []models.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				t.Fatal("snapshot channel closed while waiting")
			}
			if pred(snap) {
				return snap
			}
		case <-deadline:
			t.Fatal("timed out waiting for snapshot")
		}
	}
}

// waitCounts reads unread counts until pred holds or the deadline hits.
func waitCounts(t *testing.T, ch <-chan UnreadCounts, pred func(UnreadCounts) bool) UnreadCounts {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case counts, ok := <-ch:
			if !ok {
				t.Fatal("counts channel closed while waiting")
			}
			if pred(counts) {
				return counts
			}
		case <-deadline:
			t.Fatal("timed out waiting for counts")
		}
	}
}

func contextWithCleanup(t *testing.T) (context.Context, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx, cancel
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed in time")
		}
	}
}
