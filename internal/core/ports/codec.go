package ports

import "bytes"

// Codec is the encode/decode contract that makes a caller type
// buffer-eligible. It is the only integration point the encompassing
// pipeline sees: sources hand items to a Sender, the codec turns them into
// opaque payload bytes for framing, and the Receiver side decodes them
// back. Decode failures must wrap domain.ErrDecode so they stay
// distinguishable from I/O errors.
type Codec[T any] interface {
	// Encode serializes the item into the buffer.
	Encode(item T, buf *bytes.Buffer) error

	// Decode deserializes an item from its payload bytes. The payload
	// slice is only valid for the duration of the call.
	Decode(payload []byte) (T, error)

	// SizeHint returns the encoded size when cheaply known, or 0.
	// The writer uses it to pre-size its framing buffer.
	SizeHint(item T) int
}
