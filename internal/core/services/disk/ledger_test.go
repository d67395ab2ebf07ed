package disk

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/bufferline/internal/adapters/checksum"
	"github.com/telemetrydev/bufferline/internal/adapters/storage"
)

func TestLedgerPersistAndLoad(t *testing.T) {
	store := storage.NewMemory()
	sum := checksum.NewCRC32Castagnoli()

	led, loaded, err := openLedger(store, sum)
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, uint64(1), led.nextRecordID.Load())

	led.writerFileID.Store(3)
	led.writerOffset.Store(4096)
	led.readerFileID.Store(2)
	led.readerOffset.Store(512)
	led.unackedSize.Store(9000)
	led.totalRecords.Store(41)
	led.nextRecordID.Store(42)
	require.NoError(t, led.persist())
	require.NoError(t, led.close())

	reloaded, loaded, err := openLedger(store, sum)
	require.NoError(t, err)
	require.True(t, loaded)

	state := reloaded.State()
	require.Equal(t, uint64(3), state.WriterFileID)
	require.Equal(t, uint64(4096), state.WriterOffset)
	require.Equal(t, uint64(2), state.ReaderFileID)
	require.Equal(t, uint64(512), state.ReaderOffset)
	require.Equal(t, uint64(9000), state.UnackedSize)
	require.Equal(t, uint64(41), state.TotalRecords)
	require.Equal(t, uint64(42), state.NextRecordID)
}

func TestLedgerCorruptStateForcesRebuild(t *testing.T) {
	store := storage.NewMemory()
	sum := checksum.NewCRC32Castagnoli()

	led, _, err := openLedger(store, sum)
	require.NoError(t, err)
	led.writerOffset.Store(1024)
	require.NoError(t, led.persist())
	require.NoError(t, led.close())

	// Flip a state byte without fixing the checksum.
	mapped, err := store.OpenMap(ledgerFileName, ledgerLen, true)
	require.NoError(t, err)
	mapped.Bytes()[16] ^= 0xFF
	require.NoError(t, mapped.Close())

	_, loaded, err := openLedger(store, sum)
	require.NoError(t, err)
	require.False(t, loaded)
}

func TestLedgerAckAccounting(t *testing.T) {
	store := storage.NewMemory()
	led, _, err := openLedger(store, checksum.NewCRC32Castagnoli())
	require.NoError(t, err)

	led.recordWrite(100)
	led.recordWrite(200)
	require.Equal(t, uint64(300), led.unackedSize.Load())
	require.Equal(t, uint64(2), led.totalRecords.Load())
	require.Equal(t, uint64(3), led.nextRecordID.Load())

	writerWaiter := led.writerWake.Waiting()
	led.recordAck(0, 100, 100)

	require.Equal(t, uint64(200), led.unackedSize.Load())
	require.Equal(t, uint64(1), led.totalRecords.Load())
	require.Equal(t, uint64(0), led.readerFileID.Load())
	require.Equal(t, uint64(100), led.readerOffset.Load())

	select {
	case <-writerWaiter:
	default:
		t.Fatal("ack did not wake the writer")
	}
}
