// Package codec provides ready-made implementations of the record
// encode/decode contract: raw bytes, JSON, protobuf, and a compressing
// wrapper that can be layered over any of them.
package codec

import (
	"bytes"
)

// Bytes is the identity codec for callers that already hold encoded
// payloads.
type Bytes struct{}

func NewBytes() Bytes { return Bytes{} }

func (Bytes) Encode(item []byte, buf *bytes.Buffer) error {
	_, err := buf.Write(item)
	return err
}

func (Bytes) Decode(payload []byte) ([]byte, error) {
	// The payload slice aliases the read buffer; hand the caller a copy.
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, nil
}

func (Bytes) SizeHint(item []byte) int {
	return len(item)
}
