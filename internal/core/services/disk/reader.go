package disk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	bufferrors "github.com/telemetrydev/bufferline/pkg/errors"
)

// ackEntry tracks one delivered-but-unacknowledged frame, in delivery
// order. Acknowledgements consume entries FIFO.
type ackEntry struct {
	fileID    uint64
	endOffset uint64
	frameSize uint64
}

// reader is the single consuming side of a disk buffer. It tracks its own
// (file, offset) position independently of the writer and may lag behind it
// across any number of rotations. Only acknowledged positions are made
// durable, so a crash re-delivers everything handed out but never acked
// (at-least-once).
type reader[T any] struct {
	opts     *domain.DiskOptions
	codec    ports.Codec[T]
	checksum ports.Checksum
	storage  ports.Storage
	ledger   *ledger
	logger   *zap.SugaredLogger

	mu     sync.Mutex
	file   ports.ReadFile
	fileID uint64
	offset uint64

	pending     []ackEntry
	outstanding map[uint64]uint64 // per-file delivered-but-unacked counts
	passed      map[uint64]bool   // files the reader has advanced past

	closed *atomic.Bool
}

func newReader[T any](
	opts *domain.DiskOptions,
	codec ports.Codec[T],
	sum ports.Checksum,
	storage ports.Storage,
	led *ledger,
	logger *zap.SugaredLogger,
	closed *atomic.Bool,
) *reader[T] {
	return &reader[T]{
		opts:        opts,
		codec:       codec,
		checksum:    sum,
		storage:     storage,
		ledger:      led,
		logger:      logger,
		closed:      closed,
		fileID:      led.readerFileID.Load(),
		offset:      led.readerOffset.Load(),
		outstanding: make(map[uint64]uint64),
		passed:      make(map[uint64]bool),
	}
}

// Next returns the next record in FIFO order, suspending while no complete
// record is available. The suspension is wakeup-driven by writer progress.
func (r *reader[T]) Next(ctx context.Context) (T, error) {
	var zero T

	for {
		// Snapshot the wakeup channel before polling, so a write or a
		// close landing between the poll and the wait is not lost; Close
		// sets the flag before notifying.
		waiter := r.ledger.readerWake.Waiting()

		r.mu.Lock()
		record, err := r.tryNextLocked()
		r.mu.Unlock()

		if err == nil {
			item, derr := r.codec.Decode(record.Payload)
			if derr != nil {
				return zero, bufferrors.NewBufferError(bufferrors.ErrorCodec, "decode record", derr)
			}
			return item, nil
		}

		if !errors.Is(err, errFramePending) {
			return zero, err
		}

		// A closed buffer cannot produce more data, so pending there
		// means drained.
		if r.closed.Load() {
			return zero, domain.ErrBufferClosed
		}

		select {
		case <-waiter:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// TryNext attempts to produce a record without blocking. The second return
// reports whether a record was produced.
func (r *reader[T]) TryNext() (T, bool, error) {
	var zero T

	r.mu.Lock()
	record, err := r.tryNextLocked()
	r.mu.Unlock()

	if err != nil {
		if errors.Is(err, errFramePending) {
			if r.closed.Load() {
				return zero, false, domain.ErrBufferClosed
			}
			return zero, false, nil
		}
		return zero, false, err
	}

	item, derr := r.codec.Decode(record.Payload)
	if derr != nil {
		return zero, false, bufferrors.NewBufferError(bufferrors.ErrorCodec, "decode record", derr)
	}
	return item, true, nil
}

// ReadyWaiter returns a channel closed at the next writer progress.
func (r *reader[T]) ReadyWaiter() <-chan struct{} {
	return r.ledger.readerWake.Waiting()
}

// tryNextLocked advances the reader state machine by at most one record.
// It returns errFramePending when no complete record is available yet, and
// a terminal error on corruption or storage failure. Delivery bookkeeping
// happens here so Next and TryNext cannot diverge.
func (r *reader[T]) tryNextLocked() (*domain.Record, error) {
	for {
		if err := r.ensureFileLocked(); err != nil {
			return nil, err
		}

		fr := &frameReader{file: r.file, checksum: r.checksum, maxRecordSize: r.opts.MaxRecordSize}

		record, frameSize, err := r.readWithRetry(fr)
		if err == nil {
			end := r.offset + frameSize
			r.pending = append(r.pending, ackEntry{fileID: r.fileID, endOffset: end, frameSize: frameSize})
			r.outstanding[r.fileID]++
			r.offset = end
			return record, nil
		}

		onCurrentFile := r.fileID >= r.ledger.writerFileID.Load()

		switch {
		case errors.Is(err, errFramePending) && !onCurrentFile:
			// Clean end of a rotated file: the writer only rotates at
			// frame boundaries, so there is nothing torn here. Move on.
			r.advanceFileLocked()

		case errors.Is(err, errFramePending):
			return nil, errFramePending

		case errors.Is(err, errFrameInvalid) && !onCurrentFile:
			// Rotated files end exactly at a frame boundary; invalid
			// bytes in the middle cannot be skipped safely.
			return nil, fmt.Errorf("%w: file %d offset %d", domain.ErrCorrupt, r.fileID, r.offset)

		case errors.Is(err, errFrameInvalid):
			// The writer truncates its torn tail at open, so invalid
			// bytes on the current file below the writer offset are
			// real corruption. At or past the writer offset they are
			// merely not-yet-written.
			if r.offset < r.ledger.writerOffset.Load() {
				return nil, fmt.Errorf("%w: file %d offset %d", domain.ErrCorrupt, r.fileID, r.offset)
			}
			return nil, errFramePending

		default:
			return nil, bufferrors.NewBufferError(bufferrors.ErrorStorage, "read record", err)
		}
	}
}

// readWithRetry retries transient backend errors a bounded number of
// times. Pending/invalid frames are not retried here; they are state
// machine inputs, not failures.
func (r *reader[T]) readWithRetry(fr *frameReader) (*domain.Record, uint64, error) {
	var lastErr error
	for attempt := 0; attempt < readRetryAttempts; attempt++ {
		record, frameSize, err := fr.readAt(r.offset)
		if err == nil || errors.Is(err, errFramePending) || errors.Is(err, errFrameInvalid) {
			return record, frameSize, err
		}
		lastErr = err
	}
	return nil, 0, lastErr
}

// ensureFileLocked opens the reader's current data file if needed. A
// missing file below the writer's position was fully acked and deleted
// before a restart; skip it.
func (r *reader[T]) ensureFileLocked() error {
	for r.file == nil {
		file, err := r.storage.OpenRead(dataFileName(r.fileID))
		if err == nil {
			r.file = file
			return nil
		}

		exists, serr := r.storage.Exists(dataFileName(r.fileID))
		if serr == nil && !exists {
			if r.fileID < r.ledger.writerFileID.Load() {
				r.fileID++
				r.offset = 0
				continue
			}
			// The writer has not created this file yet.
			return errFramePending
		}

		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "open data file", err)
	}
	return nil
}

func (r *reader[T]) advanceFileLocked() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	r.passed[r.fileID] = true
	r.fileID++
	r.offset = 0
}

// Ack acknowledges the n oldest delivered records, releasing their bytes
// from the backpressure accounting and advancing the durable reader
// frontier. Only acknowledged bytes are ever reclaimed.
func (r *reader[T]) Ack(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < n && len(r.pending) > 0; i++ {
		entry := r.pending[0]
		r.pending = r.pending[1:]

		if r.outstanding[entry.fileID] > 0 {
			r.outstanding[entry.fileID]--
		}
		r.ledger.recordAck(entry.fileID, entry.endOffset, entry.frameSize)
	}
}

// sweep deletes data files the reader has advanced past once every record
// delivered from them has been acknowledged. Called from the buffer's
// periodic maintenance and on close.
func (r *reader[T]) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for fileID := range r.passed {
		if r.outstanding[fileID] == 0 {
			if err := r.storage.Delete(dataFileName(fileID)); err != nil {
				r.logger.Warnw("failed to delete data file", "file_id", fileID, "error", err)
				continue
			}

			delete(r.passed, fileID)
			delete(r.outstanding, fileID)
			r.logger.Debugw("deleted acked data file", "file_id", fileID)
		}
	}
}

func (r *reader[T]) closeFile() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}
