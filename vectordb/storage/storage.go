// Package storage defines an append-only value store index backends use to
// keep chunk payloads outside the heap.
package storage

import "errors"

var (
	// ErrClosed is returned after the store has been closed.
	ErrClosed = errors.New("storage: store closed")

	// ErrInvalidPtr indicates the pointer does not reference a stored value.
	ErrInvalidPtr = errors.New("storage: invalid pointer")

	// ErrCorrupt indicates stored data failed its checksum.
	ErrCorrupt = errors.New("storage: data corruption detected")
)

// Ptr locates a value: the segment holding it, the byte offset of its
// payload and the payload length. A Ptr stays valid for the lifetime of the
// store's files.
type Ptr struct {
	SegmentID uint32
	Offset    uint64
	Length    uint32
}

// Stats carries best-effort store counters.
type Stats struct {
	Appends      uint64
	BytesWritten uint64
	BytesRead    uint64
	Segments     int
}

// ValueStore is an append-only payload store, safe for concurrent reads
// with a single writer.
type ValueStore interface {
	// Append stores value and returns its pointer.
	Append(value []byte) (Ptr, error)

	// Read returns the value at ptr.
	Read(ptr Ptr) ([]byte, error)

	// Delete marks the value at ptr dead; space is reclaimed by compaction.
	Delete(ptr Ptr) error

	// Sync flushes buffered state to stable storage.
	Sync() error

	// Close releases file handles and mappings.
	Close() error

	// Stats returns current counters.
	Stats() Stats
}
