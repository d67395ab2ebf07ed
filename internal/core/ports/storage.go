package ports

import "io"

// AppendFile is an append-only handle to a data file. Writes always land at
// the end of the file; Truncate exists only for repairing a torn trailing
// record at open time.
type AppendFile interface {
	io.Writer
	io.Closer

	// Sync forces written data to durable storage.
	Sync() error

	// Truncate discards everything past the given size.
	Truncate(size int64) error
}

// ReadFile is a read-only handle. ReaderAt is required because the reader
// re-reads the same offset after a torn tail grows into a complete frame.
type ReadFile interface {
	io.ReaderAt
	io.Closer
}

// MappedFile is a fixed-size memory-mapped view of a file, used for the
// ledger. The backing file is created and truncated to size on first open.
type MappedFile interface {
	// Bytes returns the mapped region. The slice stays valid until Close.
	Bytes() []byte

	// Sync flushes the mapped region to durable storage.
	Sync() error

	io.Closer
}

// Storage is the capability set the buffer engine needs from its backing
// store. Names are relative to the backend's root. Implementations: the
// real filesystem, and an in-memory fake used by deterministic tests so the
// engine's logic can be exercised without OS-level I/O.
type Storage interface {
	// OpenAppend opens (creating if needed) a file for appending.
	OpenAppend(name string) (AppendFile, error)

	// OpenRead opens a file for random-access reads.
	OpenRead(name string) (ReadFile, error)

	// OpenMap opens (creating and sizing if needed) a writable
	// memory-mapped view of a file. Writable is false for inspection-only
	// views such as the ledger summary tooling.
	OpenMap(name string, size int64, writable bool) (MappedFile, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(name string) error

	// List returns the names of all files in the backend root.
	List() ([]string, error)

	// Size returns the current size of a file in bytes.
	Size(name string) (int64, error)

	// Exists reports whether a file is present.
	Exists(name string) (bool, error)
}
