package domain

// LedgerState is the persisted control structure of a disk buffer. It is
// the sole source of truth for where the writer and reader resume after a
// restart. The writer mutates the writer-side fields on every successful
// append, the reader mutates the reader-side fields on every read and ack;
// the state is persisted on rotation, on flush-interval ticks and on close.
type LedgerState struct {
	// WriterFileID is the data file currently being appended to.
	WriterFileID uint64

	// WriterOffset is the byte offset within the writer's file at which the
	// next frame will be written.
	WriterOffset uint64

	// ReaderFileID is the data file currently being read from. It may lag
	// WriterFileID by any number of rotations.
	ReaderFileID uint64

	// ReaderOffset is the byte offset of the next frame to read.
	ReaderOffset uint64

	// UnackedSize is the total framed bytes written but not yet
	// acknowledged. Because acknowledgement is out-of-band relative to
	// delivery, this is an upper-bound estimate between flushes, not an
	// instantaneous exact count.
	UnackedSize uint64

	// TotalRecords is the number of written-but-unacked records.
	TotalRecords uint64

	// NextRecordID is the sequence id the writer will assign next.
	NextRecordID uint64
}

// LedgerSummary is the human-readable operational snapshot derived from the
// ledger. It is produced without blocking the writer or reader and carries
// no stability guarantee as a wire format.
type LedgerSummary struct {
	WriterFileID uint64 `json:"writer_file_id"`
	WriterOffset uint64 `json:"writer_offset"`
	ReaderFileID uint64 `json:"reader_file_id"`
	ReaderOffset uint64 `json:"reader_offset"`
	UnackedSize  uint64 `json:"unacked_size"`
	TotalRecords uint64 `json:"total_records"`
}
