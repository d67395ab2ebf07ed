package disk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/bufferline/internal/adapters/checksum"
	"github.com/telemetrydev/bufferline/internal/adapters/storage"
	"github.com/telemetrydev/bufferline/internal/core/domain"
)

func writeFrame(t *testing.T, store *storage.Memory, name string, id uint64, payload []byte) uint64 {
	t.Helper()

	var buf bytes.Buffer
	start := beginFrame(&buf)
	buf.Write(payload)
	size := finishFrame(&buf, start, id, checksum.NewCRC32Castagnoli())

	file, err := store.OpenAppend(name)
	require.NoError(t, err)
	_, err = file.Write(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, file.Close())

	return size
}

func TestFrameRoundTrip(t *testing.T) {
	store := storage.NewMemory()
	payload := []byte("a telemetry record payload")
	size := writeFrame(t, store, "0.dat", 42, payload)
	require.Equal(t, uint64(len(payload))+domain.FrameOverhead, size)

	file, err := store.OpenRead("0.dat")
	require.NoError(t, err)
	defer file.Close()

	fr := &frameReader{file: file, checksum: checksum.NewCRC32Castagnoli(), maxRecordSize: 1 << 20}

	record, frameSize, err := fr.readAt(0)
	require.NoError(t, err)
	require.Equal(t, uint64(42), record.ID)
	require.Equal(t, payload, record.Payload)
	require.Equal(t, size, frameSize)

	// Past the frame there is nothing yet.
	_, _, err = fr.readAt(frameSize)
	require.ErrorIs(t, err, errFramePending)
}

func TestFrameTruncatedTailIsPending(t *testing.T) {
	store := storage.NewMemory()
	size := writeFrame(t, store, "0.dat", 1, []byte("payload bytes"))

	// Chop the trailing checksum word off, as a crash mid-append would.
	file, err := store.OpenAppend("0.dat")
	require.NoError(t, err)
	require.NoError(t, file.Truncate(int64(size)-2))
	require.NoError(t, file.Close())

	read, err := store.OpenRead("0.dat")
	require.NoError(t, err)
	defer read.Close()

	fr := &frameReader{file: read, checksum: checksum.NewCRC32Castagnoli(), maxRecordSize: 1 << 20}
	_, _, err = fr.readAt(0)
	require.ErrorIs(t, err, errFramePending)
}

func TestFrameCorruptPayloadIsInvalid(t *testing.T) {
	store := storage.NewMemory()
	writeFrame(t, store, "0.dat", 1, []byte("payload bytes"))

	// Flip one payload byte in place through the map view.
	mapped, err := store.OpenMap("0.dat", int64(domain.FrameHeaderSize)+1, true)
	require.NoError(t, err)
	mapped.Bytes()[domain.FrameHeaderSize] ^= 0xFF
	require.NoError(t, mapped.Close())

	read, err := store.OpenRead("0.dat")
	require.NoError(t, err)
	defer read.Close()

	fr := &frameReader{file: read, checksum: checksum.NewCRC32Castagnoli(), maxRecordSize: 1 << 20}
	_, _, err = fr.readAt(0)
	require.ErrorIs(t, err, errFrameInvalid)
}

func TestFrameImpossibleLengthIsInvalid(t *testing.T) {
	store := storage.NewMemory()
	writeFrame(t, store, "0.dat", 1, bytes.Repeat([]byte("x"), 128))

	read, err := store.OpenRead("0.dat")
	require.NoError(t, err)
	defer read.Close()

	// A cap below the written payload makes the declared length garbage
	// from this reader's point of view.
	fr := &frameReader{file: read, checksum: checksum.NewCRC32Castagnoli(), maxRecordSize: 16}
	_, _, err = fr.readAt(0)
	require.ErrorIs(t, err, errFrameInvalid)
}

func TestScanDataFileStopsAtTornTail(t *testing.T) {
	store := storage.NewMemory()
	first := writeFrame(t, store, "0.dat", 1, []byte("first"))
	second := writeFrame(t, store, "0.dat", 2, []byte("second"))

	// Garbage after the last full frame.
	file, err := store.OpenAppend("0.dat")
	require.NoError(t, err)
	_, err = file.Write([]byte{0xDE, 0xAD, 0xBE})
	require.NoError(t, err)
	require.NoError(t, file.Close())

	scan, err := scanDataFile(store, checksum.NewCRC32Castagnoli(), "0.dat", 0, 1<<20)
	require.NoError(t, err)
	require.Equal(t, first+second, scan.validEnd)
	require.Equal(t, uint64(2), scan.records)
	require.Equal(t, uint64(2), scan.lastRecordID)
}
