package ports

// Compression abstracts payload compression so the algorithm can be swapped
// without touching the codec or storage layers.
type Compression interface {
	// Compress reduces data size. Implementations may return the input
	// unchanged when compression would not help; callers must mark
	// compressed payloads themselves.
	Compress(data []byte) ([]byte, error)

	// Decompress restores original data.
	Decompress(data []byte) ([]byte, error)

	// Level returns the configured compression level.
	Level() uint8

	// Close releases compressor resources.
	Close() error
}
