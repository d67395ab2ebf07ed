// Package domain defines the core types shared by the buffer engine: the
// framed record, the persisted ledger state, configuration options and the
// when-full policy.
package domain

// Frame layout constants. Every record is stored as a length-prefixed,
// checksummed frame:
//
//	[id: u64][payload_len: u32][payload bytes][checksum: u32]
//
// The 12-byte header and the trailing checksum word are fixed; the checksum
// covers both the header and the payload, so a torn header is detected the
// same way as a torn payload.
const (
	// FrameHeaderSize is the fixed size of the id + length prefix.
	FrameHeaderSize = 12

	// FrameChecksumSize is the size of the trailing checksum word.
	FrameChecksumSize = 4

	// FrameOverhead is the total per-record framing cost on disk.
	FrameOverhead = FrameHeaderSize + FrameChecksumSize
)

// Record is a single buffered item: an opaque, caller-defined payload plus
// the engine-assigned monotonically increasing sequence id.
type Record struct {
	// ID is assigned by the writer at append time. IDs are strictly
	// increasing within a buffer instance and survive restarts.
	ID uint64

	// Payload is the encoded caller item. The engine never interprets it;
	// the codec contract is the only integration point.
	Payload []byte
}

// FrameSize returns the on-disk size of this record once framed.
func (r *Record) FrameSize() uint64 {
	return uint64(len(r.Payload)) + FrameOverhead
}
