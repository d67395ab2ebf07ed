package disk

import (
	"time"

	"github.com/telemetrydev/bufferline/internal/adapters/checksum"
	"github.com/telemetrydev/bufferline/internal/adapters/compression"
	"github.com/telemetrydev/bufferline/internal/core/domain"
)

const (
	// DefaultMaxDataFileSize keeps individual data files small enough to
	// reclaim promptly but large enough to amortize rotation cost.
	DefaultMaxDataFileSize uint64 = 128 * 1024 * 1024 // 128MB

	// DefaultMaxBufferSize bounds total unacked bytes across all files.
	DefaultMaxBufferSize uint64 = 1024 * 1024 * 1024 // 1GB

	// DefaultMaxRecordSize caps a single encoded payload.
	DefaultMaxRecordSize uint64 = 8 * 1024 * 1024 // 8MB

	// DefaultWriteBufferSize aligns with the I/O sizes exposed by major
	// cloud block storage.
	DefaultWriteBufferSize uint32 = 256 * 1024 // 256KB

	// DefaultFlushInterval is the acceptable window of data loss between
	// durability flushes for non-critical workloads.
	DefaultFlushInterval = 500 * time.Millisecond

	// readRetryAttempts bounds reader-side retries of transient I/O errors
	// before they are surfaced.
	readRetryAttempts = 3
)

// prepareDefaults fills unset options in place and returns them.
func prepareDefaults(opts *domain.DiskOptions) *domain.DiskOptions {
	if opts.MaxDataFileSize == 0 {
		opts.MaxDataFileSize = DefaultMaxDataFileSize
	}

	if opts.MaxBufferSize == 0 {
		opts.MaxBufferSize = DefaultMaxBufferSize
	}

	if opts.MaxRecordSize == 0 {
		opts.MaxRecordSize = DefaultMaxRecordSize
	}

	if opts.WriteBufferSize == 0 {
		opts.WriteBufferSize = DefaultWriteBufferSize
	}

	if opts.FlushInterval == 0 {
		opts.FlushInterval = DefaultFlushInterval
	}

	if opts.ChecksumOptions == nil {
		opts.ChecksumOptions = checksum.DefaultOptions()
	}

	if opts.CompressionOptions == nil {
		opts.CompressionOptions = compression.DefaultOptions()
	}

	return opts
}
