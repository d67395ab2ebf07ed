package errors

import (
	"fmt"
	"time"
)

// ErrorCategory classifies the failure modes of buffer operations so that
// callers can decide between fail-fast, retry, and disable-the-edge handling.
type ErrorCategory int

const (
	// ErrorStorage indicates errors from the underlying storage backend:
	// file I/O, disk space, permissions.
	ErrorStorage ErrorCategory = iota + 1

	// ErrorCodec indicates a record failed to encode or decode.
	ErrorCodec

	// ErrorCorruption indicates non-recoverable on-disk corruption, such as
	// a checksum mismatch on a record that is not the trailing record of a
	// data file.
	ErrorCorruption

	// ErrorCapacity indicates a record was rejected at the boundary because
	// it exceeds a configured size limit.
	ErrorCapacity

	// ErrorContract indicates programmer misuse of the two-phase send
	// protocol. These are surfaced as panics, never as recoverable errors.
	ErrorContract
)

// String returns the string representation of the error category.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorStorage:
		return "storage"
	case ErrorCodec:
		return "codec"
	case ErrorCorruption:
		return "corruption"
	case ErrorCapacity:
		return "capacity"
	case ErrorContract:
		return "contract"
	default:
		return "unknown"
	}
}

// BufferError wraps a failure from the buffer engine with its category,
// the operation that produced it and the time it occurred.
type BufferError struct {
	Err       error
	Operation string
	Timestamp time.Time
	Category  ErrorCategory
}

func NewBufferError(category ErrorCategory, operation string, err error) *BufferError {
	return &BufferError{
		Err:       err,
		Category:  category,
		Operation: operation,
		Timestamp: time.Now(),
	}
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Operation, e.Err)
}

func (e *BufferError) Unwrap() error {
	return e.Err
}

// IsRetryAble reports whether errors of this category may be retried.
// Reader-side storage errors are the only retryable kind; everything else
// either implies corruption or a caller bug.
func (e *BufferError) IsRetryAble() bool {
	return e.Category == ErrorStorage
}
