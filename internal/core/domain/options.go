package domain

import (
	"time"

	"github.com/telemetrydev/bufferline/internal/core/ports"
)

// DiskOptions is the validated, immutable configuration of a disk buffer
// instance. Invariants enforced at construction: MaxRecordSize (plus frame
// overhead) must fit within MaxDataFileSize, and MaxBufferSize must hold at
// least one full data file.
type DiskOptions struct {
	// Directory is the storage root for this buffer instance: one ledger
	// file plus numbered data files. Must be unique per buffer instance;
	// the ledger and data files are owned exclusively by one writer/reader
	// pair.
	Directory string

	// MaxDataFileSize is the rotation threshold. A data file is rotated
	// once the next frame would push it past this size.
	//
	// Default: 128MB
	MaxDataFileSize uint64

	// MaxBufferSize bounds the total framed bytes across all unacked data.
	// Reaching it turns into backpressure on the writer rather than an
	// unbounded disk fill.
	//
	// Default: 1GB
	MaxBufferSize uint64

	// MaxRecordSize caps a single encoded record payload.
	//
	// Default: 8MB
	MaxRecordSize uint64

	// WriteBufferSize is the size of the writer's in-memory coalescing
	// buffer. Larger buffers reduce syscalls at the cost of a wider
	// data-loss window between flushes.
	//
	// Default: 256KB
	WriteBufferSize uint32

	// FlushInterval is the cadence of the periodic durability flush: data
	// file flush + fsync and ledger persistence.
	//
	// Default: 500ms
	FlushInterval time.Duration

	// DisableSyncOnFlush skips the fsync on periodic flushes, trading the
	// crash-durability window for throughput. Flushes on rotation and close
	// always sync.
	//
	// Default: false (flushes sync)
	DisableSyncOnFlush bool

	// Storage is the backend implementation to run against. Defaults to
	// the real filesystem rooted at Directory; tests substitute the
	// in-memory fake.
	Storage ports.Storage

	// ChecksumOptions selects the frame checksum algorithm.
	ChecksumOptions *ChecksumOptions

	// CompressionOptions configures the compressing codec wrapper.
	CompressionOptions *CompressionOptions
}

// DefaultMaxEvents is the slot bound of a memory stage when none is set.
const DefaultMaxEvents = 512

// MemoryOptions configures a bounded in-memory buffer stage.
type MemoryOptions struct {
	// MaxEvents bounds the number of queued items.
	//
	// Default: 512
	MaxEvents int

	// MaxBytes bounds the queued payload bytes. Admission stops once the
	// queued total reaches the bound, so it may be exceeded by the items
	// admitted while it was still under. 0 disables the byte bound; the
	// queue then tracks bytes for observability only.
	MaxBytes uint64
}
