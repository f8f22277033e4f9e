// Package memstore keeps values in a single in-memory buffer. It backs
// external-value sets that have no on-disk location and tests of code
// written against ValueStore.
package memstore

import (
	"sync"

	"policyrag/vectordb/storage"
)

// Store is an in-memory ValueStore with one implicit segment.
type Store struct {
	mu     sync.Mutex
	buf    []byte
	stats  storage.Stats
	closed bool
}

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Append adds value to the buffer.
func (s *Store) Append(value []byte) (storage.Ptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.Ptr{}, storage.ErrClosed
	}
	off := len(s.buf)
	s.buf = append(s.buf, value...)
	s.stats.Appends++
	s.stats.BytesWritten += uint64(len(value))
	return storage.Ptr{Offset: uint64(off), Length: uint32(len(value))}, nil
}

// Read returns a copy of the bytes at ptr.
func (s *Store) Read(ptr storage.Ptr) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, storage.ErrClosed
	}
	if err := s.check(ptr); err != nil {
		return nil, err
	}
	out := make([]byte, ptr.Length)
	copy(out, s.buf[ptr.Offset:ptr.Offset+uint64(ptr.Length)])
	s.stats.BytesRead += uint64(len(out))
	return out, nil
}

// Delete validates ptr; buffer space is not reclaimed.
func (s *Store) Delete(ptr storage.Ptr) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	return s.check(ptr)
}

// Sync is a no-op.
func (s *Store) Sync() error {
	return nil
}

// Close drops the buffer; further calls return ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.buf = nil
	return nil
}

// Stats returns current counters.
func (s *Store) Stats() storage.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := s.stats
	ret.Segments = 1
	return ret
}

func (s *Store) check(ptr storage.Ptr) error {
	if ptr.SegmentID != 0 || ptr.Offset+uint64(ptr.Length) > uint64(len(s.buf)) {
		return storage.ErrInvalidPtr
	}
	return nil
}

var _ storage.ValueStore = (*Store)(nil)
