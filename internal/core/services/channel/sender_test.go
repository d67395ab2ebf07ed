package channel

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/pkg/logger"
)

func newTestSender(policy domain.WhenFull, maxEvents int, overflow *Sender[string]) (*Sender[string], *MemoryStage[string], *Metrics) {
	stage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: maxEvents}, nil)
	metrics := NewMetrics(prometheus.NewRegistry(), "test")
	sender := NewSender[string]("test", stage, policy, overflow, metrics, logger.NewNop())
	return sender, stage, metrics
}

func send(t *testing.T, ctx context.Context, s *Sender[string], item string) {
	t.Helper()
	require.NoError(t, s.RequestCapacity(ctx))
	require.NoError(t, s.Commit(ctx, item))
}

func TestSenderDropNewestKeepsOldest(t *testing.T) {
	ctx := context.Background()
	sender, stage, metrics := newTestSender(domain.DropNewest, 1, nil)

	// A occupies the single slot; B reports success but is discarded.
	send(t, ctx, sender, "A")
	send(t, ctx, sender, "B")

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Dropped))
	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Sent))

	receiver := NewReceiver[string](stage)
	item, ok, err := receiver.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A", item)

	_, ok, err = receiver.TryNext()
	require.NoError(t, err)
	require.False(t, ok, "the dropped item must never surface")
}

func TestSenderPanicsOnProtocolMisuse(t *testing.T) {
	ctx := context.Background()

	sender, _, _ := newTestSender(domain.Block, 4, nil)
	require.Panics(t, func() { sender.Commit(ctx, "no reservation") })

	sender, _, _ = newTestSender(domain.Block, 4, nil)
	require.NoError(t, sender.RequestCapacity(ctx))
	require.Panics(t, func() { sender.RequestCapacity(ctx) })
}

func TestSenderBlockSuspendsUntilCapacity(t *testing.T) {
	ctx := context.Background()
	sender, stage, _ := newTestSender(domain.Block, 1, nil)

	send(t, ctx, sender, "A")

	done := make(chan error, 1)
	go func() {
		if err := sender.RequestCapacity(ctx); err != nil {
			done <- err
			return
		}
		done <- sender.Commit(ctx, "B")
	}()

	select {
	case err := <-done:
		t.Fatalf("send should have blocked, returned %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	receiver := NewReceiver[string](stage)
	item, ok, err := receiver.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "A", item)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("send did not unblock after a slot freed")
	}

	item, ok, err = receiver.TryNext()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B", item)
}

func TestSenderBlockedRequestHonorsCancellation(t *testing.T) {
	ctx := context.Background()
	sender, _, _ := newTestSender(domain.Block, 1, nil)
	send(t, ctx, sender, "A")

	reqCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sender.RequestCapacity(reqCtx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked request ignored cancellation")
	}
}

func TestSenderOverflowDivertsWhenFull(t *testing.T) {
	ctx := context.Background()

	secondary, secondaryStage, _ := newTestSender(domain.Block, 8, nil)

	primaryStage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 1}, nil)
	metrics := NewMetrics(prometheus.NewRegistry(), "primary")
	primary := NewSender[string]("primary", primaryStage, domain.Overflow, secondary, metrics, logger.NewNop())

	send(t, ctx, primary, "first")
	send(t, ctx, primary, "second")
	send(t, ctx, primary, "third")

	require.Equal(t, float64(1), testutil.ToFloat64(metrics.Sent))
	require.Equal(t, float64(2), testutil.ToFloat64(metrics.Overflowed))

	// Overflowed items appear in the secondary's read order.
	overflowReceiver := NewReceiver[string](secondaryStage)
	for _, want := range []string{"second", "third"} {
		item, ok, err := overflowReceiver.TryNext()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, item)
	}
}

// faultyStage fails Flush and Close so propagation can be observed.
type faultyStage[T any] struct {
	Source[T]
	err     error
	flushed bool
	closed  bool
}

func (f *faultyStage[T]) Flush(ctx context.Context) error {
	f.flushed = true
	return f.err
}

func (f *faultyStage[T]) Close(ctx context.Context) error {
	f.closed = true
	return f.err
}

func TestSenderFlushAndCloseRunBothSides(t *testing.T) {
	ctx := context.Background()
	primaryErr := errors.New("primary flush failed")

	overflowFault := &faultyStage[string]{
		Source: NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 1}, nil),
	}
	overflow := NewSender[string]("overflow", overflowFault, domain.Block, nil,
		NewMetrics(prometheus.NewRegistry(), "overflow"), logger.NewNop())

	primaryFault := &faultyStage[string]{
		Source: NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 1}, nil),
		err:    primaryErr,
	}
	sender := NewSender[string]("primary", primaryFault, domain.Overflow, overflow,
		NewMetrics(prometheus.NewRegistry(), "primary"), logger.NewNop())

	// Both sides run; the first error is the one reported.
	require.ErrorIs(t, sender.Flush(ctx), primaryErr)
	require.True(t, primaryFault.flushed)
	require.True(t, overflowFault.flushed)

	require.ErrorIs(t, sender.Close(ctx), primaryErr)
	require.True(t, primaryFault.closed)
	require.True(t, overflowFault.closed)

	// Close is idempotent.
	require.NoError(t, sender.Close(ctx))

	require.ErrorIs(t, sender.RequestCapacity(ctx), domain.ErrBufferClosed)
}
