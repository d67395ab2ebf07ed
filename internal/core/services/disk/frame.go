package disk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
)

var (
	// errFramePending indicates the bytes at the requested offset do not yet
	// form a complete frame. On the writer's current file this means "nothing
	// more to read yet"; after a crash it marks the torn tail.
	errFramePending = errors.New("frame incomplete")

	// errFrameInvalid indicates bytes are present but do not form a valid
	// frame: the checksum does not match or the declared length is
	// impossible. At the tail of the writer's file this is crash garbage;
	// anywhere else it is corruption.
	errFrameInvalid = errors.New("frame invalid")
)

// beginFrame reserves the frame header in buf and returns the header start
// index. The caller encodes the payload directly after it and finishes with
// finishFrame, avoiding a payload copy.
func beginFrame(buf *bytes.Buffer) int {
	start := buf.Len()
	buf.Write(make([]byte, domain.FrameHeaderSize))
	return start
}

// finishFrame fills in the header for the payload encoded after start and
// appends the trailing checksum word. It returns the total frame size.
func finishFrame(buf *bytes.Buffer, start int, id uint64, sum ports.Checksum) uint64 {
	frame := buf.Bytes()[start:]
	payloadLen := len(frame) - domain.FrameHeaderSize

	binary.LittleEndian.PutUint64(frame[0:8], id)
	binary.LittleEndian.PutUint32(frame[8:12], uint32(payloadLen))

	var word [domain.FrameChecksumSize]byte
	binary.LittleEndian.PutUint32(word[:], sum.Calculate(frame))
	buf.Write(word[:])

	return uint64(payloadLen) + domain.FrameOverhead
}

// frameReader reads frames from a data file at explicit offsets. ReadAt
// semantics let the same offset be retried once a torn tail grows into a
// complete frame.
type frameReader struct {
	file          ports.ReadFile
	checksum      ports.Checksum
	maxRecordSize uint64
}

// readAt decodes the frame at offset. It returns the record, the total
// frame size, and one of: nil, errFramePending, errFrameInvalid, or an I/O
// error from the backend.
func (fr *frameReader) readAt(offset uint64) (*domain.Record, uint64, error) {
	var header [domain.FrameHeaderSize]byte
	if _, err := fr.file.ReadAt(header[:], int64(offset)); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errFramePending
		}
		return nil, 0, err
	}

	id := binary.LittleEndian.Uint64(header[0:8])
	payloadLen := binary.LittleEndian.Uint32(header[8:12])

	// A length beyond the configured record cap cannot come from a valid
	// write; the header bytes are garbage.
	if uint64(payloadLen) > fr.maxRecordSize {
		return nil, 0, errFrameInvalid
	}

	body := make([]byte, int(payloadLen)+domain.FrameChecksumSize)
	if _, err := fr.file.ReadAt(body, int64(offset)+domain.FrameHeaderSize); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, 0, errFramePending
		}
		return nil, 0, err
	}

	payload := body[:payloadLen]
	expected := binary.LittleEndian.Uint32(body[payloadLen:])

	// The checksum covers header and payload together, so torn headers and
	// torn payloads are caught the same way.
	checked := make([]byte, 0, domain.FrameHeaderSize+int(payloadLen))
	checked = append(checked, header[:]...)
	checked = append(checked, payload...)
	if !fr.checksum.Verify(checked, expected) {
		return nil, 0, errFrameInvalid
	}

	record := &domain.Record{ID: id, Payload: payload}
	return record, record.FrameSize(), nil
}
