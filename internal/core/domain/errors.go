package domain

import "errors"

var (
	// ErrBufferClosed indicates an operation on a closed buffer, sender or
	// receiver.
	ErrBufferClosed = errors.New("buffer is closed")

	// ErrRecordTooLarge indicates a record whose encoded frame exceeds
	// MaxRecordSize. The record is rejected deterministically at the
	// boundary and never partially written.
	ErrRecordTooLarge = errors.New("record exceeds maximum record size")

	// ErrDecode is the base error for codec decode failures. It is distinct
	// from I/O errors so callers can tell corrupt data from a failing disk.
	ErrDecode = errors.New("record decode failed")

	// ErrChecksumMismatch indicates a frame whose trailing checksum does
	// not match its contents.
	ErrChecksumMismatch = errors.New("record checksum mismatch")

	// ErrCorrupt indicates non-tail corruption in a data file. Unlike a
	// torn trailing record, this cannot be safely skipped and is fatal to
	// the buffer instance.
	ErrCorrupt = errors.New("data file is corrupt")

	// ErrLedgerInvalid indicates the ledger file is missing, truncated or
	// fails its checksum. Startup falls back to rebuilding state from a
	// scan of the data files.
	ErrLedgerInvalid = errors.New("ledger is missing or invalid")
)
