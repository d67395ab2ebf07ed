package disk

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/telemetrydev/bufferline/internal/core/domain"
	"github.com/telemetrydev/bufferline/internal/core/ports"
	"github.com/telemetrydev/bufferline/pkg/system"
)

const (
	// ledgerFileName is the control file inside the buffer directory.
	ledgerFileName = "buffer.ledger"

	ledgerMagic   uint32 = 0x424C4752 // "BLGR"
	ledgerVersion uint32 = 1

	// Fixed little-endian layout: magic, version, seven u64 state fields,
	// trailing crc32 over everything before it.
	ledgerStateEnd = 8 + 7*8
	ledgerLen      = ledgerStateEnd + domain.FrameChecksumSize
)

// ledger holds the authoritative in-memory control state of a disk buffer
// and persists it into a fixed-size memory-mapped file. The atomics are the
// source of truth between persists; the mapped bytes are only written on
// persist (rotation, flush ticks, close), which is what makes the on-disk
// unacked/total counters upper-bound estimates rather than exact counts.
//
// The ledger also owns the two wakeup channels of the buffer: writerWake is
// notified when acks free capacity, readerWake when the writer makes
// progress.
type ledger struct {
	mapped   ports.MappedFile
	checksum ports.Checksum

	writerFileID atomic.Uint64
	writerOffset atomic.Uint64
	readerFileID atomic.Uint64
	readerOffset atomic.Uint64
	unackedSize  atomic.Uint64
	totalRecords atomic.Uint64
	nextRecordID atomic.Uint64

	writerWake *system.Notifier
	readerWake *system.Notifier

	persistMu sync.Mutex
}

// openLedger maps the ledger file and loads persisted state. The second
// return value reports whether a valid persisted state was found; callers
// must rebuild from a data-file scan when it is false.
func openLedger(storage ports.Storage, checksum ports.Checksum) (*ledger, bool, error) {
	existed, err := storage.Exists(ledgerFileName)
	if err != nil {
		return nil, false, err
	}

	mapped, err := storage.OpenMap(ledgerFileName, ledgerLen, true)
	if err != nil {
		return nil, false, fmt.Errorf("error mapping ledger : %w", err)
	}

	l := &ledger{
		mapped:     mapped,
		checksum:   checksum,
		writerWake: system.NewNotifier(),
		readerWake: system.NewNotifier(),
	}

	if !existed {
		l.nextRecordID.Store(1)
		return l, false, nil
	}

	if err := l.load(); err != nil {
		// Missing or corrupt ledger state is recoverable: the caller
		// rebuilds from the data files instead of silently losing them.
		l.nextRecordID.Store(1)
		return l, false, nil
	}

	return l, true, nil
}

// load validates and reads the mapped state into the atomics.
func (l *ledger) load() error {
	b := l.mapped.Bytes()
	if len(b) < ledgerLen {
		return domain.ErrLedgerInvalid
	}

	if binary.LittleEndian.Uint32(b[0:4]) != ledgerMagic {
		return domain.ErrLedgerInvalid
	}
	if binary.LittleEndian.Uint32(b[4:8]) != ledgerVersion {
		return fmt.Errorf("%w: unsupported version %d", domain.ErrLedgerInvalid, binary.LittleEndian.Uint32(b[4:8]))
	}

	expected := binary.LittleEndian.Uint32(b[ledgerStateEnd:ledgerLen])
	if !l.checksum.Verify(b[:ledgerStateEnd], expected) {
		return domain.ErrLedgerInvalid
	}

	l.writerFileID.Store(binary.LittleEndian.Uint64(b[8:16]))
	l.writerOffset.Store(binary.LittleEndian.Uint64(b[16:24]))
	l.readerFileID.Store(binary.LittleEndian.Uint64(b[24:32]))
	l.readerOffset.Store(binary.LittleEndian.Uint64(b[32:40]))
	l.unackedSize.Store(binary.LittleEndian.Uint64(b[40:48]))
	l.totalRecords.Store(binary.LittleEndian.Uint64(b[48:56]))
	l.nextRecordID.Store(binary.LittleEndian.Uint64(b[56:64]))
	return nil
}

// persist writes the current state into the map and syncs it.
func (l *ledger) persist() error {
	l.persistMu.Lock()
	defer l.persistMu.Unlock()

	b := l.mapped.Bytes()
	binary.LittleEndian.PutUint32(b[0:4], ledgerMagic)
	binary.LittleEndian.PutUint32(b[4:8], ledgerVersion)
	binary.LittleEndian.PutUint64(b[8:16], l.writerFileID.Load())
	binary.LittleEndian.PutUint64(b[16:24], l.writerOffset.Load())
	binary.LittleEndian.PutUint64(b[24:32], l.readerFileID.Load())
	binary.LittleEndian.PutUint64(b[32:40], l.readerOffset.Load())
	binary.LittleEndian.PutUint64(b[40:48], l.unackedSize.Load())
	binary.LittleEndian.PutUint64(b[48:56], l.totalRecords.Load())
	binary.LittleEndian.PutUint64(b[56:64], l.nextRecordID.Load())
	binary.LittleEndian.PutUint32(b[ledgerStateEnd:ledgerLen], l.checksum.Calculate(b[:ledgerStateEnd]))

	return l.mapped.Sync()
}

func (l *ledger) close() error {
	return l.mapped.Close()
}

// State returns a consistent-enough snapshot for resumption and summaries.
// Fields are loaded individually; the slack is inherent to the out-of-band
// acknowledgement model and callers must tolerate it.
func (l *ledger) State() domain.LedgerState {
	return domain.LedgerState{
		WriterFileID: l.writerFileID.Load(),
		WriterOffset: l.writerOffset.Load(),
		ReaderFileID: l.readerFileID.Load(),
		ReaderOffset: l.readerOffset.Load(),
		UnackedSize:  l.unackedSize.Load(),
		TotalRecords: l.totalRecords.Load(),
		NextRecordID: l.nextRecordID.Load(),
	}
}

// Summary derives the operational snapshot exposed to observability
// tooling. It never blocks the writer or reader.
func (l *ledger) Summary() domain.LedgerSummary {
	state := l.State()
	return domain.LedgerSummary{
		WriterFileID: state.WriterFileID,
		WriterOffset: state.WriterOffset,
		ReaderFileID: state.ReaderFileID,
		ReaderOffset: state.ReaderOffset,
		UnackedSize:  state.UnackedSize,
		TotalRecords: state.TotalRecords,
	}
}

// recordWrite accounts for one appended frame and wakes the reader.
func (l *ledger) recordWrite(frameSize uint64) {
	l.writerOffset.Add(frameSize)
	l.unackedSize.Add(frameSize)
	l.totalRecords.Add(1)
	l.nextRecordID.Add(1)
	l.readerWake.Notify()
}

// recordRotation moves the writer to the next data file.
func (l *ledger) recordRotation() uint64 {
	next := l.writerFileID.Add(1)
	l.writerOffset.Store(0)
	return next
}

// recordAck releases acknowledged bytes, advances the durable reader
// frontier, and wakes a writer blocked on capacity. The frontier tracks
// acknowledged records, not delivered ones, so a crash re-delivers anything
// handed out but never acked.
func (l *ledger) recordAck(fileID, endOffset, frameSize uint64) {
	l.readerFileID.Store(fileID)
	l.readerOffset.Store(endOffset)
	l.unackedSize.Add(^(frameSize - 1)) // atomic subtract
	l.totalRecords.Add(^uint64(0))
	l.writerWake.Notify()
}
