package channel

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// Receiver is the consuming half of a backpressure channel. It drains one
// or more sources: the base stage plus every overflow stage down the
// chain. Order within one source is strict FIFO; interleaving between
// sources is unspecified. Preference rotates across sources on every call
// so neither the base nor an overflow stage can be starved.
//
// The receiver remembers which source produced each delivered item, in
// delivery order, so acknowledgements can be routed back to the owning
// stage. Next/TryNext serve one consumer goroutine; Ack may be called from
// a different goroutine.
type Receiver[T any] struct {
	sources []Source[T]
	next    int
	closed  atomic.Bool

	ackMu   sync.Mutex
	origins []int // source index per delivered, unacked item, FIFO
}

// NewReceiver builds a receiver over a stage chain ordered base-first.
func NewReceiver[T any](sources ...Source[T]) *Receiver[T] {
	return &Receiver[T]{sources: sources}
}

// Next returns the next available item, suspending until one of the
// sources produces. It returns ErrBufferClosed once the receiver is closed
// or every source is closed and drained.
func (r *Receiver[T]) Next(ctx context.Context) (T, error) {
	var zero T

	for {
		if r.closed.Load() {
			return zero, domain.ErrBufferClosed
		}

		// Snapshot every source's wakeup channel before polling, so
		// progress between the poll and the wait is not lost.
		waiters := make([]<-chan struct{}, len(r.sources))
		for i, src := range r.sources {
			waiters[i] = src.ReadyWaiter()
		}

		item, ok, err := r.poll()
		if err != nil {
			return zero, err
		}
		if ok {
			return item, nil
		}

		if err := waitAny(ctx, waiters); err != nil {
			return zero, err
		}
	}
}

// TryNext polls all sources once without blocking.
func (r *Receiver[T]) TryNext() (T, bool, error) {
	var zero T
	if r.closed.Load() {
		return zero, false, domain.ErrBufferClosed
	}
	return r.poll()
}

// Ack acknowledges the n oldest delivered items, routing each back to the
// stage that produced it.
func (r *Receiver[T]) Ack(n int) {
	r.ackMu.Lock()
	if n > len(r.origins) {
		n = len(r.origins)
	}
	acked := r.origins[:n]

	counts := make(map[int]int, len(r.sources))
	for _, src := range acked {
		counts[src]++
	}
	r.origins = r.origins[n:]
	r.ackMu.Unlock()

	for src, count := range counts {
		r.sources[src].Ack(count)
	}
}

// poll tries each source once, starting from the rotating preference
// point. Closed-and-drained sources only surface as an error once all of
// them are.
func (r *Receiver[T]) poll() (T, bool, error) {
	var zero T

	start := r.next
	r.next = (r.next + 1) % len(r.sources)

	drained := 0
	for i := range r.sources {
		idx := (start + i) % len(r.sources)

		item, ok, err := r.sources[idx].TryNext()
		if ok {
			r.ackMu.Lock()
			r.origins = append(r.origins, idx)
			r.ackMu.Unlock()
			return item, true, nil
		}
		if err != nil {
			if errors.Is(err, domain.ErrBufferClosed) {
				drained++
				continue
			}
			return zero, false, err
		}
	}

	if drained == len(r.sources) {
		return zero, false, domain.ErrBufferClosed
	}
	return zero, false, nil
}

// Close makes subsequent calls return ErrBufferClosed. It does not tear
// down the underlying stages; that is the pipeline's job.
func (r *Receiver[T]) Close() {
	r.closed.Store(true)
}

// waitAny blocks until any waiter fires or the context is done. Chains are
// short, so the reflective select stays cheap.
func waitAny(ctx context.Context, waiters []<-chan struct{}) error {
	switch len(waiters) {
	case 1:
		select {
		case <-waiters[0]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}

	case 2:
		select {
		case <-waiters[0]:
			return nil
		case <-waiters[1]:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	cases := make([]reflect.SelectCase, 0, len(waiters)+1)
	for _, w := range waiters {
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(w)})
	}
	cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})

	if chosen, _, _ := reflect.Select(cases); chosen == len(waiters) {
		return ctx.Err()
	}
	return nil
}
