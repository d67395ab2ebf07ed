package disk

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	checksums "github.com/telemetrydev/bufferline/internal/adapters/checksum"
	codecs "github.com/telemetrydev/bufferline/internal/adapters/codec"
	"github.com/telemetrydev/bufferline/internal/adapters/compression"
	"github.com/telemetrydev/bufferline/internal/adapters/storage"
	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	bufferrors "github.com/telemetrydev/bufferline/pkg/errors"
	"github.com/telemetrydev/bufferline/pkg/system"
)

// Buffer is a durable FIFO record queue backed by append-only data files
// and a memory-mapped control ledger. One goroutine may write and one may
// read concurrently; neither side is safe for concurrent use with itself.
//
// Records survive process restarts. Delivery is at-least-once: only
// acknowledged records are considered consumed, so a crash re-delivers
// anything read but not yet acked.
type Buffer[T any] struct {
	opts   *domain.DiskOptions
	ledger *ledger
	writer *writer[T]
	reader *reader[T]
	logger *zap.SugaredLogger

	compressor ports.Compression

	closed    atomic.Bool
	closeOnce sync.Once
	stopFlush chan struct{}
	flushDone chan struct{}
}

// Open opens a disk buffer in the configured directory, recovering any
// state left by a previous instance. A missing or corrupt ledger is
// rebuilt from the data files; a torn record at the writer's tail is
// truncated away.
func Open[T any](ctx context.Context, opts *domain.DiskOptions, codec ports.Codec[T], logger *zap.SugaredLogger) (*Buffer[T], error) {
	prepareDefaults(opts)

	if err := Validate(opts); err != nil {
		return nil, err
	}

	store := opts.Storage
	if store == nil {
		fs, err := storage.NewFilesystem(opts.Directory)
		if err != nil {
			return nil, bufferrors.NewBufferError(bufferrors.ErrorStorage, "open buffer directory", err)
		}
		store = fs
	}

	sum := opts.ChecksumOptions.Custom
	if sum == nil {
		sum = checksums.New(opts.ChecksumOptions.Algorithm)
	}

	var compressor ports.Compression
	if opts.CompressionOptions.Enable {
		z, err := compression.NewZstd(opts.CompressionOptions)
		if err != nil {
			return nil, err
		}
		compressor = z
		codec = codecs.NewCompressed(codec, z)
	}

	led, loaded, err := openLedger(store, sum)
	if err != nil {
		return nil, bufferrors.NewBufferError(bufferrors.ErrorStorage, "open ledger", err)
	}

	if err := recoverState(store, sum, led, opts, loaded, logger); err != nil {
		led.close()
		return nil, err
	}

	b := &Buffer[T]{
		opts:       opts,
		ledger:     led,
		logger:     logger,
		compressor: compressor,
		stopFlush:  make(chan struct{}),
		flushDone:  make(chan struct{}),
	}

	b.writer, err = newWriter(opts, codec, sum, store, led, logger, &b.closed)
	if err != nil {
		led.close()
		return nil, err
	}
	b.reader = newReader(opts, codec, sum, store, led, logger, &b.closed)

	go b.flushLoop()

	logger.Infow("opened disk buffer",
		"directory", opts.Directory,
		"recovered_records", led.totalRecords.Load(),
		"unacked_bytes", led.unackedSize.Load(),
	)
	return b, nil
}

// recoverState reconciles the ledger against the data files actually on
// disk. All frames past the acknowledged reader frontier are unconsumed,
// so the unacked and total counters are recomputed by scanning from there
// to the last valid frame of the newest file. Files entirely below the
// frontier are fully acknowledged leftovers and are deleted.
func recoverState(
	store ports.Storage,
	sum ports.Checksum,
	led *ledger,
	opts *domain.DiskOptions,
	loaded bool,
	logger *zap.SugaredLogger,
) error {
	ids, err := listDataFiles(store)
	if err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "list data files", err)
	}

	if !loaded && len(ids) > 0 {
		led.readerFileID.Store(ids[0])
		led.readerOffset.Store(0)
		led.writerFileID.Store(ids[len(ids)-1])
		logger.Warnw("rebuilding ledger from data files",
			"first_file", ids[0], "last_file", ids[len(ids)-1])
	}

	readerFile := led.readerFileID.Load()
	readerOffset := led.readerOffset.Load()
	writerFile := led.writerFileID.Load()

	var unacked, total, lastRecordID, writerEnd uint64
	writerSeen := false

	for _, id := range ids {
		name := dataFileName(id)

		if id < readerFile {
			if err := store.Delete(name); err != nil {
				return bufferrors.NewBufferError(bufferrors.ErrorStorage, "delete acked data file", err)
			}
			logger.Infow("deleted fully acked data file", "file_id", id)
			continue
		}

		from := uint64(0)
		if id == readerFile {
			from = readerOffset
		}

		scan, err := scanDataFile(store, sum, name, from, opts.MaxRecordSize)
		if err != nil {
			return bufferrors.NewBufferError(bufferrors.ErrorStorage, "scan data file", err)
		}

		if scan.validEnd > from {
			unacked += scan.validEnd - from
		}
		total += scan.records
		if scan.lastRecordID > lastRecordID {
			lastRecordID = scan.lastRecordID
		}

		// A file newer than the recorded writer position exists when a
		// crash hit between rotation and the ledger persist; adopt it.
		if id >= writerFile {
			writerFile = id
			writerEnd = scan.validEnd
			writerSeen = true
		}
	}

	led.writerFileID.Store(writerFile)
	led.writerOffset.Store(writerEnd)
	led.unackedSize.Store(unacked)
	led.totalRecords.Store(total)
	if lastRecordID > 0 {
		led.nextRecordID.Store(lastRecordID + 1)
	} else if led.nextRecordID.Load() == 0 {
		led.nextRecordID.Store(1)
	}

	if writerSeen {
		name := dataFileName(writerFile)
		size, err := store.Size(name)
		if err != nil {
			return bufferrors.NewBufferError(bufferrors.ErrorStorage, "stat data file", err)
		}

		if uint64(size) > writerEnd {
			file, err := store.OpenAppend(name)
			if err != nil {
				return bufferrors.NewBufferError(bufferrors.ErrorStorage, "open data file", err)
			}
			if err := file.Truncate(int64(writerEnd)); err != nil {
				file.Close()
				return bufferrors.NewBufferError(bufferrors.ErrorStorage, "truncate torn tail", err)
			}
			if err := file.Close(); err != nil {
				return bufferrors.NewBufferError(bufferrors.ErrorStorage, "close data file", err)
			}
			logger.Warnw("truncated torn record tail",
				"file_id", writerFile, "from", size, "to", writerEnd)
		}
	}

	if err := led.persist(); err != nil {
		return bufferrors.NewBufferError(bufferrors.ErrorStorage, "persist ledger", err)
	}
	return nil
}

// flushLoop periodically flushes buffered writes and sweeps data files
// that became fully acknowledged.
func (b *Buffer[T]) flushLoop() {
	defer close(b.flushDone)

	ticker := time.NewTicker(b.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.writer.Flush(); err != nil {
				b.logger.Errorw("periodic flush failed", "error", err)
			}
			b.reader.sweep()
		case <-b.stopFlush:
			return
		}
	}
}

// Write appends one record, blocking while the unacked-byte bound is
// reached. Safe for one producer goroutine.
func (b *Buffer[T]) Write(ctx context.Context, item T) error {
	return b.writer.Write(ctx, item)
}

// Next returns the next record in FIFO order, blocking until one is
// available. Safe for one consumer goroutine.
func (b *Buffer[T]) Next(ctx context.Context) (T, error) {
	return b.reader.Next(ctx)
}

// TryNext returns the next record without blocking; the second return
// reports whether one was available.
func (b *Buffer[T]) TryNext() (T, bool, error) {
	return b.reader.TryNext()
}

// Ack acknowledges the n oldest delivered records, releasing their bytes
// toward the capacity bound.
func (b *Buffer[T]) Ack(n int) {
	b.reader.Ack(n)
}

// Flush forces buffered data to the backend and persists the ledger.
func (b *Buffer[T]) Flush(ctx context.Context) error {
	if b.closed.Load() {
		return domain.ErrBufferClosed
	}
	return system.RunWithContext(ctx, func(context.Context) error { return b.writer.Flush() })
}

// HasCapacity reports whether at least a minimal record fits right now.
func (b *Buffer[T]) HasCapacity() bool { return b.writer.HasCapacity() }

// CapacityWaiter returns a channel closed the next time an ack frees
// capacity.
func (b *Buffer[T]) CapacityWaiter() <-chan struct{} { return b.writer.CapacityWaiter() }

// ReadyWaiter returns a channel closed the next time the writer appends.
func (b *Buffer[T]) ReadyWaiter() <-chan struct{} { return b.reader.ReadyWaiter() }

// Summary returns an operational snapshot of the buffer state. Counter
// fields are estimates between flushes.
func (b *Buffer[T]) Summary() domain.LedgerSummary {
	return b.ledger.Summary()
}

// Close flushes outstanding data, persists the ledger and releases all
// resources. It is idempotent; concurrent blocked writers and readers are
// woken and fail with ErrBufferClosed.
func (b *Buffer[T]) Close(ctx context.Context) error {
	var closeErr error

	b.closeOnce.Do(func() {
		closeErr = system.RunWithContext(ctx, func(context.Context) error {
			b.closed.Store(true)

			// Wake anything parked on capacity or readiness so it can
			// observe the closed flag.
			b.ledger.writerWake.Notify()
			b.ledger.readerWake.Notify()

			close(b.stopFlush)
			<-b.flushDone

			err := b.writer.closeFile()

			b.reader.sweep()
			b.reader.closeFile()

			if perr := b.ledger.persist(); perr != nil && err == nil {
				err = bufferrors.NewBufferError(bufferrors.ErrorStorage, "persist ledger", perr)
			}
			if cerr := b.ledger.close(); cerr != nil && err == nil {
				err = bufferrors.NewBufferError(bufferrors.ErrorStorage, "close ledger", cerr)
			}

			if b.compressor != nil {
				b.compressor.Close()
			}

			b.logger.Infow("closed disk buffer", "pending_records", b.ledger.totalRecords.Load())
			return err
		})
	})

	return closeErr
}
