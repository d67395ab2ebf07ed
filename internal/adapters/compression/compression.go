// Package compression provides payload compression for buffered records
// using the zstd algorithm.
package compression

import (
	"fmt"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// DefaultOptions returns balanced compression settings.
func DefaultOptions() *domain.CompressionOptions {
	return &domain.CompressionOptions{
		Enable: false,
		Level:  DefaultLevel,
	}
}

// Validate checks compression settings. A zero level means "use the
// default" and is accepted.
func Validate(input *domain.CompressionOptions) error {
	if input.Level > BestLevel {
		return fmt.Errorf(
			"compression level must be between %d and %d, got %d",
			FastestLevel, BestLevel, input.Level,
		)
	}

	if input.EncoderConcurrency > 16 {
		return fmt.Errorf("encoder concurrency must not exceed 16, got %d", input.EncoderConcurrency)
	}

	if input.DecoderConcurrency > 16 {
		return fmt.Errorf("decoder concurrency must not exceed 16, got %d", input.DecoderConcurrency)
	}

	return nil
}
