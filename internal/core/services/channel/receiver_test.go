package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

func fillStage(t *testing.T, stage *MemoryStage[string], items ...string) {
	t.Helper()
	ctx := context.Background()

	for _, item := range items {
		ok, err := stage.TryReserve()
		require.NoError(t, err)
		require.True(t, ok)
		require.NoError(t, stage.Commit(ctx, item))
	}
}

func TestReceiverRotatesPreferenceAcrossSources(t *testing.T) {
	base := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 8}, nil)
	overflow := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 8}, nil)

	fillStage(t, base, "base-1", "base-2")
	fillStage(t, overflow, "over-1", "over-2")

	receiver := NewReceiver[string](Source[string](base), Source[string](overflow))

	var got []string
	for i := 0; i < 4; i++ {
		item, ok, err := receiver.TryNext()
		require.NoError(t, err)
		require.True(t, ok)
		got = append(got, item)
	}

	// Preference rotates each call, so neither source starves and order
	// within each source is preserved.
	require.Equal(t, []string{"base-1", "over-1", "base-2", "over-2"}, got)
}

func TestReceiverNextWakesOnCommit(t *testing.T) {
	ctx := context.Background()
	stage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 4}, nil)
	receiver := NewReceiver[string](Source[string](stage))

	type result struct {
		item string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		item, err := receiver.Next(ctx)
		done <- result{item, err}
	}()

	select {
	case r := <-done:
		t.Fatalf("next should have blocked, returned %q/%v", r.item, r.err)
	case <-time.After(50 * time.Millisecond):
	}

	fillStage(t, stage, "wakeup")

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Equal(t, "wakeup", r.item)
	case <-time.After(2 * time.Second):
		t.Fatal("next did not wake on commit")
	}
}

func TestReceiverReportsClosedOnceDrained(t *testing.T) {
	ctx := context.Background()
	stage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 4}, nil)
	fillStage(t, stage, "last")
	require.NoError(t, stage.Close(ctx))

	receiver := NewReceiver[string](Source[string](stage))

	item, err := receiver.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "last", item)

	_, err = receiver.Next(ctx)
	require.ErrorIs(t, err, domain.ErrBufferClosed)
}

func TestReceiverCloseStopsDelivery(t *testing.T) {
	stage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 4}, nil)
	fillStage(t, stage, "unreached")

	receiver := NewReceiver[string](Source[string](stage))
	receiver.Close()

	_, _, err := receiver.TryNext()
	require.ErrorIs(t, err, domain.ErrBufferClosed)
}

func TestReceiverNextWakesWhenSourceCloses(t *testing.T) {
	ctx := context.Background()
	stage := NewMemoryStage[string](&domain.MemoryOptions{MaxEvents: 4}, nil)
	receiver := NewReceiver[string](Source[string](stage))

	done := make(chan error, 1)
	go func() {
		_, err := receiver.Next(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, stage.Close(ctx))

	select {
	case err := <-done:
		require.ErrorIs(t, err, domain.ErrBufferClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("blocked receiver not woken by source close")
	}
}
