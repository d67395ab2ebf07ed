package ports

// Checksum calculates and verifies the 32-bit trailing checksum word of a
// record frame. Implementations must be deterministic and safe for
// concurrent use.
type Checksum interface {
	// Calculate returns the checksum of the provided data.
	Calculate(data []byte) uint32

	// Verify reports whether the data matches the expected checksum.
	Verify(data []byte, expected uint32) bool

	// Name returns the algorithm identifier.
	Name() string
}
