package disk

import (
	"fmt"
	"time"

	"github.com/telemetrydev/bufferline/internal/adapters/checksum"
	"github.com/telemetrydev/bufferline/internal/adapters/compression"
	"github.com/telemetrydev/bufferline/internal/core/domain"
	validation "github.com/telemetrydev/bufferline/pkg/errors"
)

// Validate checks the size relationships and intervals of disk buffer
// options. Violations are configuration errors: they are rejected here, at
// construction, and never reach the runtime read/write paths.
func Validate(opts *domain.DiskOptions) error {
	if opts.Directory == "" && opts.Storage == nil {
		return validation.NewValidationError(
			"directory", opts.Directory,
			fmt.Errorf("directory is required when no storage backend is provided"),
		)
	}

	if opts.MaxRecordSize+domain.FrameOverhead > opts.MaxDataFileSize {
		return validation.NewValidationError(
			"maxRecordSize", opts.MaxRecordSize,
			fmt.Errorf(
				"maxRecordSize (%d) plus frame overhead must be smaller than maxDataFileSize (%d)",
				opts.MaxRecordSize, opts.MaxDataFileSize,
			),
		)
	}

	if opts.MaxBufferSize < opts.MaxDataFileSize {
		return validation.NewValidationError(
			"maxBufferSize", opts.MaxBufferSize,
			fmt.Errorf(
				"maxBufferSize (%d) must hold at least one full data file (%d)",
				opts.MaxBufferSize, opts.MaxDataFileSize,
			),
		)
	}

	if opts.FlushInterval < time.Millisecond {
		return validation.NewValidationError(
			"flushInterval", opts.FlushInterval,
			fmt.Errorf("flush interval must be at least 1ms, got %s", opts.FlushInterval),
		)
	}

	if opts.WriteBufferSize < 4*1024 {
		return validation.NewValidationError(
			"writeBufferSize", opts.WriteBufferSize,
			fmt.Errorf("write buffer size must be at least 4KB, got %d", opts.WriteBufferSize),
		)
	}

	if opts.ChecksumOptions != nil {
		if err := checksum.Validate(opts.ChecksumOptions); err != nil {
			return err
		}
	}

	if opts.CompressionOptions != nil && opts.CompressionOptions.Enable {
		if err := compression.Validate(opts.CompressionOptions); err != nil {
			return err
		}
	}

	return nil
}
