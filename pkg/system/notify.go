package system

import "sync"

// Notifier is a broadcast wakeup primitive for single-writer/single-reader
// coordination. A waiter snapshots the current generation channel, re-checks
// its condition, and then blocks on the channel; Notify closes the current
// generation so every outstanding waiter wakes exactly once. Unlike
// sync.Cond, the returned channel composes with select and contexts, which
// the suspension points of the buffer (full writer, empty reader) require.
type Notifier struct {
	mu sync.Mutex
	ch chan struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{})}
}

// Waiting returns a channel that is closed at the next Notify. Callers must
// obtain the channel before re-checking the condition they are waiting on,
// otherwise a wakeup between the check and the wait is lost.
func (n *Notifier) Waiting() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ch
}

// Notify wakes all current waiters.
func (n *Notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	close(n.ch)
	n.ch = make(chan struct{})
}
