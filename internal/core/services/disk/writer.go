package disk

import (
	"bufio"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	bufferrors "github.com/telemetrydev/bufferline/pkg/errors"
	"github.com/telemetrydev/bufferline/pkg/pool"
)

// writer is the single appending side of a disk buffer. It owns the current
// data file exclusively: all appends, rotations and flushes go through it.
// I/O errors on the write path are fatal to the buffer instance and are
// propagated without internal retry; the caller decides between crashing
// and disabling the pipeline edge.
type writer[T any] struct {
	opts     *domain.DiskOptions
	codec    ports.Codec[T]
	checksum ports.Checksum
	storage  ports.Storage
	ledger   *ledger
	logger   *zap.SugaredLogger

	bufferPool *pool.BufferPool

	// flushMu serializes appends, rotations and flushes. The periodic
	// flush loop ticks concurrently with Write, so buffered-writer state
	// must never be touched without it.
	flushMu sync.Mutex
	file    ports.AppendFile
	bufw    *bufio.Writer

	closed *atomic.Bool
}

func newWriter[T any](
	opts *domain.DiskOptions,
	codec ports.Codec[T],
	sum ports.Checksum,
	storage ports.Storage,
	led *ledger,
	logger *zap.SugaredLogger,
	closed *atomic.Bool,
) (*writer[T], error) {
	w := &writer[T]{
		opts:       opts,
		codec:      codec,
		checksum:   sum,
		storage:    storage,
		ledger:     led,
		logger:     logger,
		closed:     closed,
		bufferPool: pool.NewBufferPool(int(opts.WriteBufferSize)),
	}

	if err := w.openCurrentFile(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *writer[T]) openCurrentFile() error {
	file, err := w.storage.OpenAppend(dataFileName(w.ledger.writerFileID.Load()))
	if err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "open data file", err)
	}

	w.file = file
	w.bufw = bufio.NewWriterSize(file, int(w.opts.WriteBufferSize))
	return nil
}

// HasCapacity reports whether the buffer can admit at least a minimal
// record right now. Used by the channel layer's reservation phase; the
// strict byte bound is still enforced inside Write.
func (w *writer[T]) HasCapacity() bool {
	return w.ledger.unackedSize.Load()+domain.FrameOverhead <= w.opts.MaxBufferSize
}

// CapacityWaiter returns a channel closed the next time acknowledged bytes
// free capacity.
func (w *writer[T]) CapacityWaiter() <-chan struct{} {
	return w.ledger.writerWake.Waiting()
}

// Write appends one item. It blocks while the unacked-byte bound is
// reached; the suspension is wakeup-driven by reader acknowledgements and
// honors context cancellation.
func (w *writer[T]) Write(ctx context.Context, item T) error {
	if w.closed.Load() {
		return domain.ErrBufferClosed
	}

	buf := w.bufferPool.Get()
	defer w.bufferPool.Put(buf)

	// Encode straight into the frame buffer after the reserved header, so
	// the payload is never copied.
	start := beginFrame(buf)
	if err := w.codec.Encode(item, buf); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorCodec, "encode record", err)
	}

	payloadLen := uint64(buf.Len() - start - domain.FrameHeaderSize)
	if payloadLen > w.opts.MaxRecordSize {
		return fmt.Errorf("%w: %d > %d", domain.ErrRecordTooLarge, payloadLen, w.opts.MaxRecordSize)
	}

	frameSize := payloadLen + domain.FrameOverhead
	if err := w.waitForCapacity(ctx, frameSize); err != nil {
		return err
	}

	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if w.closed.Load() {
		return domain.ErrBufferClosed
	}

	// Rotate when the frame would push the current file past its bound.
	// An empty file always accepts one frame, however large; validation
	// guarantees a frame fits a fresh file.
	offset := w.ledger.writerOffset.Load()
	if offset > 0 && offset+frameSize > w.opts.MaxDataFileSize {
		if err := w.rotateLocked(); err != nil {
			return err
		}
	}

	id := w.ledger.nextRecordID.Load()
	finishFrame(buf, start, id, w.checksum)

	frame := buf.Bytes()[start:]
	if nn, err := w.bufw.Write(frame); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "append record", err)
	} else if nn != len(frame) {
		return bufferrors.NewBufferError(
			bufferrors.ErrorStorage, "append record",
			fmt.Errorf("short write: %d != %d", nn, len(frame)),
		)
	}

	w.ledger.recordWrite(frameSize)
	return nil
}

// waitForCapacity suspends until the frame fits under the unacked-byte
// bound. The bound is strict: unacked bytes never exceed MaxBufferSize.
func (w *writer[T]) waitForCapacity(ctx context.Context, frameSize uint64) error {
	for {
		// Snapshot the wakeup channel before re-checking, so an ack or a
		// close landing between check and wait is not lost. Close sets
		// the flag before notifying.
		waiter := w.ledger.writerWake.Waiting()

		if w.closed.Load() {
			return domain.ErrBufferClosed
		}
		if w.ledger.unackedSize.Load()+frameSize <= w.opts.MaxBufferSize {
			return nil
		}

		select {
		case <-waiter:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// rotateLocked closes the current data file and opens the next one. The
// ledger is persisted before any write lands in the new file, so a crash
// mid-rotation resumes with a consistent ledger either before or after the
// transition, never pointing into a half-written file.
func (w *writer[T]) rotateLocked() error {
	if err := w.flushLocked(true); err != nil {
		return err
	}
	if err := w.file.Close(); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "close data file", err)
	}

	next := w.ledger.recordRotation()
	if err := w.openCurrentFile(); err != nil {
		return err
	}
	if err := w.ledger.persist(); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "persist ledger", err)
	}

	w.logger.Infow("rotated data file", "file_id", next)
	return nil
}

// Flush moves buffered data to the backend and, unless disabled, syncs it,
// then persists the ledger.
func (w *writer[T]) Flush() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if err := w.flushLocked(!w.opts.DisableSyncOnFlush); err != nil {
		return err
	}
	if err := w.ledger.persist(); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "persist ledger", err)
	}
	return nil
}

func (w *writer[T]) flushLocked(sync bool) error {
	if err := w.bufw.Flush(); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "flush data file", err)
	}

	if sync {
		if err := w.file.Sync(); err != nil {
			return bufferrors.NewBufferError(bufferrors.ErrorStorage, "sync data file", err)
		}
	}

	// Appends become visible to the reader only once they leave the
	// coalescing buffer, so the flush is the reader's real wakeup.
	w.ledger.readerWake.Notify()
	return nil
}

// closeFile flushes with a final sync and closes the data file. Called by
// the buffer's Close; idempotency is handled there via the shared flag.
func (w *writer[T]) closeFile() error {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if err := w.flushLocked(true); err != nil {
		return err
	}
	return w.file.Close()
}
