package store

import "sync"

// Change notification: every mutation closes the current watch channel
// and installs a fresh one. Readers grab Changed() before taking a
// snapshot so a write landing between the two still wakes them.
var (
	watchMu sync.Mutex
	watchCh = make(chan struct{})
)

// Changed returns a channel that is closed after the next store
// mutation. Call it before reading to avoid missing updates.
func Changed() <-chan struct{} {
	watchMu.Lock()
	defer watchMu.Unlock()
	return watchCh
}

func notify() {
	watchMu.Lock()
	close(watchCh)
	watchCh = make(chan struct{})
	watchMu.Unlock()
}
