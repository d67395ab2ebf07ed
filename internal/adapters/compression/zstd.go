package compression

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/zstd"

	"github.com/telemetrydev/bufferline/internal/core/domain"
)

// Compression level constants define the trade-off between compression
// ratio and speed.
const (
	FastestLevel uint8 = 1 // Optimized for speed with minimal compression.
	DefaultLevel uint8 = 3 // Balanced between speed and compression ratio.
	BestLevel    uint8 = 4 // Maximum compression ratio, higher CPU usage.
)

// ZstdCompression implements ports.Compression using zstd. Both the encoder
// and decoder are safe for concurrent use via EncodeAll/DecodeAll.
type ZstdCompression struct {
	level   uint8
	decoder *zstd.Decoder
	encoder *zstd.Encoder
}

// NewZstd creates a zstd compression instance from the given options.
func NewZstd(opts *domain.CompressionOptions) (*ZstdCompression, error) {
	if err := Validate(opts); err != nil {
		return nil, err
	}

	level := opts.Level
	if level == 0 {
		level = DefaultLevel
	}

	encoderConcurrency := int(opts.EncoderConcurrency)
	if encoderConcurrency == 0 {
		encoderConcurrency = runtime.GOMAXPROCS(0)
	}
	decoderConcurrency := int(opts.DecoderConcurrency)
	if decoderConcurrency == 0 {
		decoderConcurrency = runtime.GOMAXPROCS(0)
	}

	encoder, err := zstd.NewWriter(
		nil,
		zstd.WithEncoderLevel(zstd.EncoderLevel(level)),
		zstd.WithEncoderConcurrency(encoderConcurrency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(decoderConcurrency))
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	return &ZstdCompression{encoder: encoder, decoder: decoder, level: level}, nil
}

// Compress compresses the input data. Small payloads and payloads that do
// not shrink are returned unchanged; the compressing codec marks which form
// was stored, so this transparency is safe.
func (z *ZstdCompression) Compress(data []byte) ([]byte, error) {
	if len(data) < 64 {
		return data, nil
	}

	compressed := z.encoder.EncodeAll(data, nil)
	if len(compressed) < len(data) {
		return compressed, nil
	}

	return data, nil
}

// Decompress restores the original data from its compressed form.
func (z *ZstdCompression) Decompress(data []byte) ([]byte, error) {
	decompressed, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompression failed: %w", err)
	}

	return decompressed, nil
}

// Level returns the configured compression level.
func (z *ZstdCompression) Level() uint8 {
	return z.level
}

// Close releases encoder and decoder resources. The instance cannot be
// used afterwards.
func (z *ZstdCompression) Close() error {
	if err := z.encoder.Close(); err != nil {
		return fmt.Errorf("error closing encoder : %w", err)
	}

	z.decoder.Close()
	return nil
}
