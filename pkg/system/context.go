// Package system provides small concurrency helpers shared by the buffer
// services: context-aware execution of shutdown work, and the wakeup
// notifier that drives the writer/reader suspension points.
package system

import (
	"context"
)

// RunWithContext executes an operation while honoring cancellation of the
// caller's context. The operation runs on its own context so that it can
// finish critical cleanup (flushing, ledger persistence) even when the
// caller's context is already expired; cancellation of the caller's context
// signals the operation to stop, and the result is always awaited so no
// goroutine is leaked.
func RunWithContext(ctx context.Context, operation func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- operation(opCtx)
		close(done)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		// Signal the operation to wrap up, then wait for it so resources
		// are never released while the operation is still running.
		cancel()
		return <-done
	}
}
