package codec

import (
	"bytes"
	"fmt"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
)

// Payload markers for the compressing codec. The single leading byte
// records which form was stored, so the compressor is free to skip payloads
// that would not shrink.
const (
	markerRaw  byte = 0
	markerZstd byte = 1
)

// Compressed wraps an inner codec and compresses its output per record,
// before framing. The storage engine only ever sees opaque payload bytes.
type Compressed[T any] struct {
	inner      ports.Codec[T]
	compressor ports.Compression
}

func NewCompressed[T any](inner ports.Codec[T], compressor ports.Compression) Compressed[T] {
	return Compressed[T]{inner: inner, compressor: compressor}
}

func (c Compressed[T]) Encode(item T, buf *bytes.Buffer) error {
	var scratch bytes.Buffer
	if hint := c.inner.SizeHint(item); hint > 0 {
		scratch.Grow(hint)
	}

	if err := c.inner.Encode(item, &scratch); err != nil {
		return err
	}

	raw := scratch.Bytes()
	compressed, err := c.compressor.Compress(raw)
	if err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}

	marker := markerRaw
	if len(compressed) < len(raw) {
		marker = markerZstd
	} else {
		compressed = raw
	}

	if err := buf.WriteByte(marker); err != nil {
		return err
	}
	_, err = buf.Write(compressed)
	return err
}

func (c Compressed[T]) Decode(payload []byte) (T, error) {
	var zero T
	if len(payload) == 0 {
		return zero, fmt.Errorf("%w: missing compression marker", domain.ErrDecode)
	}

	marker, body := payload[0], payload[1:]
	switch marker {
	case markerRaw:
		return c.inner.Decode(body)
	case markerZstd:
		raw, err := c.compressor.Decompress(body)
		if err != nil {
			return zero, fmt.Errorf("%w: %v", domain.ErrDecode, err)
		}
		return c.inner.Decode(raw)
	default:
		return zero, fmt.Errorf("%w: unknown compression marker %d", domain.ErrDecode, marker)
	}
}

func (c Compressed[T]) SizeHint(item T) int {
	// Compression makes the final size unknowable ahead of encoding.
	return 0
}
