package channel

import (
	"sync"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/pkg/system"
)

// limitedQueue is a bounded in-memory FIFO used by memory stages. Capacity
// is counted in slots; a reservation holds a slot until it is committed or
// cancelled, so a committed item never finds the queue full. The optional
// byte bound gates admission on the bytes already queued: item sizes are
// unknown at reservation time, so the total may overshoot by the in-flight
// items.
type limitedQueue[T any] struct {
	mu       sync.Mutex
	items    []T
	bytes    uint64
	reserved int
	closed   bool

	maxEvents int
	maxBytes  uint64
	sizeOf    func(T) int

	notEmpty *system.Notifier
	notFull  *system.Notifier
}

func newLimitedQueue[T any](opts *domain.MemoryOptions, sizeOf func(T) int) *limitedQueue[T] {
	if sizeOf == nil {
		sizeOf = func(T) int { return 0 }
	}

	return &limitedQueue[T]{
		maxEvents: opts.MaxEvents,
		maxBytes:  opts.MaxBytes,
		sizeOf:    sizeOf,
		notEmpty:  system.NewNotifier(),
		notFull:   system.NewNotifier(),
	}
}

// tryReserve claims one slot if the queue is open, a slot is free, and the
// queued bytes are still under the byte bound.
func (q *limitedQueue[T]) tryReserve() (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false, domain.ErrBufferClosed
	}
	if len(q.items)+q.reserved >= q.maxEvents {
		return false, nil
	}
	if q.maxBytes > 0 && q.bytes >= q.maxBytes {
		return false, nil
	}

	q.reserved++
	return true, nil
}

func (q *limitedQueue[T]) cancelReserve() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.reserved > 0 {
		q.reserved--
	}
	q.notFull.Notify()
}

// commitReserved consumes one held slot. The caller must hold a successful
// reservation; commit never blocks.
func (q *limitedQueue[T]) commitReserved(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		if q.reserved > 0 {
			q.reserved--
		}
		return domain.ErrBufferClosed
	}

	if q.reserved > 0 {
		q.reserved--
	}
	q.items = append(q.items, item)
	q.bytes += uint64(q.sizeOf(item))

	q.notEmpty.Notify()
	return nil
}

// tryPop removes the oldest item. A closed and drained queue reports
// ErrBufferClosed; a merely empty one reports no item.
func (q *limitedQueue[T]) tryPop() (T, bool, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		if q.closed {
			return zero, false, domain.ErrBufferClosed
		}
		return zero, false, nil
	}

	item := q.items[0]
	q.items[0] = zero // release the reference
	q.items = q.items[1:]
	q.bytes -= uint64(q.sizeOf(item))

	q.notFull.Notify()
	return item, true, nil
}

// close rejects further reservations and commits. Queued items remain
// poppable until drained.
func (q *limitedQueue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.notEmpty.Notify()
	q.notFull.Notify()
}

func (q *limitedQueue[T]) length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *limitedQueue[T]) byteSize() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bytes
}
