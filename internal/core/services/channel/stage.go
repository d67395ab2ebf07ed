package channel

import (
	"context"
	"sync/atomic"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/services/disk"
)

// Source is the uniform producer/consumer surface a Sender/Receiver
// pair runs against, implemented by the in-memory stage and the disk
// stage. Reservation is advisory admission; Commit hands over the item.
type Source[T any] interface {
	// TryReserve reports whether the stage can admit one item right now.
	TryReserve() (bool, error)

	// ReserveWaiter returns a channel closed the next time admission may
	// have become possible.
	ReserveWaiter() <-chan struct{}

	// CancelReserve releases a reservation that will not be committed.
	CancelReserve()

	// Commit hands over one item under a prior successful reservation.
	Commit(ctx context.Context, item T) error

	// TryNext pops the next item without blocking. A drained, closed
	// stage reports ErrBufferClosed.
	TryNext() (T, bool, error)

	// ReadyWaiter returns a channel closed the next time an item may have
	// become available.
	ReadyWaiter() <-chan struct{}

	// Ack reports n delivered items as durably processed, releasing
	// whatever resources the stage still holds for them.
	Ack(n int)

	// Flush forces any buffered state toward durability.
	Flush(ctx context.Context) error

	// Close stops admission and flushes. Queued items stay readable.
	Close(ctx context.Context) error
}

// MemoryStage adapts limitedQueue to the stage surface.
type MemoryStage[T any] struct {
	queue *limitedQueue[T]
}

func NewMemoryStage[T any](opts *domain.MemoryOptions, sizeOf func(T) int) *MemoryStage[T] {
	prepared := *opts
	if prepared.MaxEvents == 0 {
		prepared.MaxEvents = domain.DefaultMaxEvents
	}
	return &MemoryStage[T]{queue: newLimitedQueue[T](&prepared, sizeOf)}
}

func (m *MemoryStage[T]) TryReserve() (bool, error) { return m.queue.tryReserve() }

func (m *MemoryStage[T]) ReserveWaiter() <-chan struct{} { return m.queue.notFull.Waiting() }

func (m *MemoryStage[T]) CancelReserve() { m.queue.cancelReserve() }

func (m *MemoryStage[T]) TryNext() (T, bool, error) { return m.queue.tryPop() }

func (m *MemoryStage[T]) ReadyWaiter() <-chan struct{} { return m.queue.notEmpty.Waiting() }

func (m *MemoryStage[T]) Flush(ctx context.Context) error { return nil }

// Ack is a no-op: memory slots are released at pop time.
func (m *MemoryStage[T]) Ack(n int) {}
func (m *MemoryStage[T]) Commit(ctx context.Context, item T) error {
	return m.queue.commitReserved(item)
}

func (m *MemoryStage[T]) Close(ctx context.Context) error {
	m.queue.close()
	return nil
}

// DiskStage adapts a disk buffer to the stage surface. Reservation admits
// on unacked-byte headroom; the strict byte bound is still enforced inside
// the buffer's write path, so an admitted Commit may briefly block there.
type DiskStage[T any] struct {
	buffer     *disk.Buffer[T]
	sendClosed atomic.Bool
}

func NewDiskStage[T any](buffer *disk.Buffer[T]) *DiskStage[T] {
	return &DiskStage[T]{buffer: buffer}
}

func (d *DiskStage[T]) TryReserve() (bool, error) {
	if d.sendClosed.Load() {
		return false, domain.ErrBufferClosed
	}
	return d.buffer.HasCapacity(), nil
}

func (d *DiskStage[T]) ReserveWaiter() <-chan struct{} { return d.buffer.CapacityWaiter() }

func (d *DiskStage[T]) CancelReserve() {}

func (d *DiskStage[T]) Commit(ctx context.Context, item T) error {
	if d.sendClosed.Load() {
		return domain.ErrBufferClosed
	}
	return d.buffer.Write(ctx, item)
}

func (d *DiskStage[T]) TryNext() (T, bool, error) { return d.buffer.TryNext() }

// Ack releases acknowledged records' bytes toward the capacity bound.
func (d *DiskStage[T]) Ack(n int) { d.buffer.Ack(n) }

func (d *DiskStage[T]) ReadyWaiter() <-chan struct{} { return d.buffer.ReadyWaiter() }

func (d *DiskStage[T]) Flush(ctx context.Context) error { return d.buffer.Flush(ctx) }

// Close stops admission and flushes buffered writes to disk. The buffer
// instance itself stays open for draining; full teardown happens at the
// pipeline level.
func (d *DiskStage[T]) Close(ctx context.Context) error {
	if !d.sendClosed.CompareAndSwap(false, true) {
		return nil
	}
	return d.buffer.Flush(ctx)
}
