package checksum

import (
	"fmt"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
)

const (
	// CRC32Castagnoli uses the Castagnoli polynomial, the common choice for
	// storage engines due to hardware acceleration on modern CPUs.
	CRC32Castagnoli domain.ChecksumAlgorithm = "crc32-castagnoli"

	// CRC32IEEE uses the IEEE polynomial for CRC32 checksums.
	CRC32IEEE domain.ChecksumAlgorithm = "crc32-ieee"

	// XXHash32 uses the 64-bit xxHash digest truncated to 32 bits.
	XXHash32 domain.ChecksumAlgorithm = "xxhash32"
)

// DefaultOptions returns the recommended checksum settings.
func DefaultOptions() *domain.ChecksumOptions {
	return &domain.ChecksumOptions{Algorithm: CRC32Castagnoli}
}

// New returns the checksum implementation for the given algorithm,
// defaulting to crc32-castagnoli for unknown names.
func New(algorithm domain.ChecksumAlgorithm) ports.Checksum {
	switch algorithm {
	case CRC32IEEE:
		return NewCRC32IEEE()
	case XXHash32:
		return NewXXHash32()
	default:
		return NewCRC32Castagnoli()
	}
}

func Validate(input *domain.ChecksumOptions) error {
	if input.Custom == nil {
		switch input.Algorithm {
		case CRC32Castagnoli, CRC32IEEE, XXHash32, "":
		default:
			return fmt.Errorf("unsupported checksum algorithm: %s", input.Algorithm)
		}
	}
	return nil
}
