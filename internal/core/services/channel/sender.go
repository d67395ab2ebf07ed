package channel

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// reservation is the sender's protocol state between RequestCapacity and
// Commit.
type reservation uint8

const (
	resNone reservation = iota
	resPrimary
	resOverflow
	resDrop
)

// Sender is the producing half of a backpressure channel. The protocol is
// two-phase: a successful RequestCapacity must be followed by exactly one
// Commit, which hands the item to whichever target the reservation picked
// (primary stage, overflow chain, or the drop bin).
//
// Misusing the protocol panics: Commit without a reservation, or a second
// RequestCapacity while one is held, indicates a caller bug that would
// otherwise corrupt slot accounting. A Sender serves one producer
// goroutine.
type Sender[T any] struct {
	stage    string
	queue    Source[T]
	policy   domain.WhenFull
	overflow *Sender[T]
	metrics  *Metrics
	logger   *zap.SugaredLogger

	state  reservation
	closed atomic.Bool
}

// NewSender wraps a stage with a when-full policy. An overflow sender is
// required exactly when the policy is Overflow; topology construction
// validates the chain is acyclic and finite.
func NewSender[T any](
	stage string,
	queue Source[T],
	policy domain.WhenFull,
	overflow *Sender[T],
	metrics *Metrics,
	logger *zap.SugaredLogger,
) *Sender[T] {
	return &Sender[T]{
		stage:    stage,
		queue:    queue,
		policy:   policy,
		overflow: overflow,
		metrics:  metrics,
		logger:   logger,
	}
}

// RequestCapacity reserves a destination for the next Commit. Under Block
// it suspends until the stage admits, wakeup-driven and honoring context
// cancellation. Under DropNewest it always succeeds, arming the drop bin
// when the stage was full. Under Overflow it falls through to the overflow
// chain.
func (s *Sender[T]) RequestCapacity(ctx context.Context) error {
	if s.state != resNone {
		panic("channel: RequestCapacity called with a reservation already held")
	}
	if s.closed.Load() {
		return domain.ErrBufferClosed
	}

	for {
		ok, err := s.queue.TryReserve()
		if err != nil {
			return err
		}
		if ok {
			s.state = resPrimary
			return nil
		}

		switch s.policy {
		case domain.DropNewest:
			s.state = resDrop
			return nil

		case domain.Overflow:
			if err := s.overflow.RequestCapacity(ctx); err != nil {
				return err
			}
			s.state = resOverflow
			return nil
		}

		// Block: snapshot the wakeup channel, then re-check, so an ack
		// landing in between is not lost.
		waiter := s.queue.ReserveWaiter()
		ok, err = s.queue.TryReserve()
		if err != nil {
			return err
		}
		if ok {
			s.state = resPrimary
			return nil
		}

		select {
		case <-waiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Commit hands the item to the destination picked by the last successful
// RequestCapacity. The reservation is consumed either way.
func (s *Sender[T]) Commit(ctx context.Context, item T) error {
	state := s.state
	s.state = resNone

	switch state {
	case resPrimary:
		if err := s.queue.Commit(ctx, item); err != nil {
			return err
		}
		s.metrics.Sent.Inc()
		return nil

	case resOverflow:
		if err := s.overflow.Commit(ctx, item); err != nil {
			return err
		}
		s.metrics.Overflowed.Inc()
		return nil

	case resDrop:
		s.metrics.Dropped.Inc()
		s.logger.Warnw("dropped record: stage full", "stage", s.stage)
		return nil

	default:
		panic("channel: Commit called without a successful RequestCapacity")
	}
}

// Flush pushes buffered state toward durability on the primary and the
// whole overflow chain. Both sides always run; the first error wins.
func (s *Sender[T]) Flush(ctx context.Context) error {
	err := s.queue.Flush(ctx)

	if s.overflow != nil {
		if oerr := s.overflow.Flush(ctx); oerr != nil && err == nil {
			err = oerr
		}
	}
	return err
}

// Close stops admission, releases any held reservation, and flushes the
// primary and the overflow chain. Idempotent; repeat calls return nil.
func (s *Sender[T]) Close(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	if s.state == resPrimary {
		s.queue.CancelReserve()
	}
	s.state = resNone

	err := s.queue.Close(ctx)

	if s.overflow != nil {
		if oerr := s.overflow.Close(ctx); oerr != nil && err == nil {
			err = oerr
		}
	}
	return err
}
