package domain

// CompressionOptions configures payload compression. Compression is applied
// per record by the compressing codec wrapper, before framing, so the
// storage engine itself only ever sees opaque payload bytes.
type CompressionOptions struct {
	// Enable toggles payload compression.
	Enable bool

	// Level defines the zstd compression level when compression is enabled.
	// Levels 1 (fastest) through 4 (best) are supported; the default is the
	// balanced level 3.
	Level uint8

	// EncoderConcurrency specifies the number of concurrent compression
	// operations. 0 means one per CPU core.
	EncoderConcurrency uint8

	// DecoderConcurrency specifies the number of concurrent decompression
	// operations. 0 means one per CPU core.
	DecoderConcurrency uint8
}
