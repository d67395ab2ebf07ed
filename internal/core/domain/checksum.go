package domain

import (
	"github.com/telemetrydev/bufferline/internal/core/ports"
)

// ChecksumAlgorithm identifies a built-in checksum implementation for the
// trailing frame checksum word.
type ChecksumAlgorithm string

// ChecksumOptions selects the frame checksum implementation.
type ChecksumOptions struct {
	// Algorithm names a built-in implementation.
	// Defaults to crc32-castagnoli if not specified.
	Algorithm ChecksumAlgorithm

	// Custom plugs in a caller-provided implementation.
	// If provided, it takes precedence over Algorithm.
	Custom ports.Checksum
}
