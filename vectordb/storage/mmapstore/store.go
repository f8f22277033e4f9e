// Package mmapstore is an append-only ValueStore over segmented files.
// Writes go through the file API; reads prefer a read-only mmap view and
// fall back to direct I/O where mapping is unavailable.
//
// Record layout: [kind:1][len:uvarint][payload:len][crc32:4], with
// Ptr.Offset addressing the payload.
package mmapstore

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sync"
	"time"

	"policyrag/vectordb/storage"
)

const (
	kindValue     = 0x01
	kindTombstone = 0xFE

	catalogName        = "segments.json"
	defaultSegmentSize = 256 << 20
)

// Option configures a Store.
type Option func(s *Store)

// WithSegmentSize sets the soft per-segment byte limit before rotation.
func WithSegmentSize(bytes int64) Option {
	return func(s *Store) {
		if bytes > 0 {
			s.segmentSize = bytes
		}
	}
}

// Store implements storage.ValueStore over segment files in a directory.
type Store struct {
	mu          sync.RWMutex
	dir         string
	segmentSize int64
	catalog     catalog
	segments    map[uint32]*segment
	active      *segment
	closed      bool
	stats       storage.Stats
}

type catalog struct {
	Version     int           `json:"version"`
	CreatedAt   time.Time     `json:"createdAt"`
	SegmentSize int64         `json:"segmentSize"`
	NextID      uint32        `json:"nextId"`
	Active      uint32        `json:"active"`
	Segments    []segmentInfo `json:"segments"`
}

type segmentInfo struct {
	ID   uint32 `json:"id"`
	Tail int64  `json:"tail"`
}

type segment struct {
	id   uint32
	f    *os.File
	size int64 // physical file size
	tail int64 // end of verified records

	// read-only mmap view, nil when mapping is unavailable
	data []byte
}

// Open creates or opens a store rooted at dir.
func Open(dir string, options ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("mmapstore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mmapstore: mkdir: %w", err)
	}
	s := &Store{
		dir:         dir,
		segmentSize: defaultSegmentSize,
		segments:    make(map[uint32]*segment),
	}
	for _, opt := range options {
		opt(s)
	}
	if err := s.load(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(filepath.Join(s.dir, catalogName))
	if errors.Is(err, os.ErrNotExist) {
		seg, err := s.openSegment(0)
		if err != nil {
			return err
		}
		s.segments[0] = seg
		s.active = seg
		s.catalog = catalog{
			Version:     1,
			CreatedAt:   time.Now(),
			SegmentSize: s.segmentSize,
			NextID:      1,
			Segments:    []segmentInfo{{ID: 0}},
		}
		return s.writeCatalog()
	}
	if err != nil {
		return fmt.Errorf("mmapstore: read catalog: %w", err)
	}
	if err := json.Unmarshal(data, &s.catalog); err != nil {
		return fmt.Errorf("mmapstore: decode catalog: %w", err)
	}
	for _, info := range s.catalog.Segments {
		seg, err := s.openSegment(info.ID)
		if err != nil {
			return err
		}
		if err := seg.recover(info.Tail); err != nil {
			return err
		}
		s.segments[info.ID] = seg
	}
	s.active = s.segments[s.catalog.Active]
	if s.active == nil {
		return fmt.Errorf("mmapstore: active segment %d missing", s.catalog.Active)
	}
	return nil
}

func (s *Store) segmentPath(id uint32) string {
	return filepath.Join(s.dir, fmt.Sprintf("seg_%06d.dat", id))
}

func (s *Store) openSegment(id uint32) (*segment, error) {
	f, err := os.OpenFile(s.segmentPath(id), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("mmapstore: open segment: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	seg := &segment{id: id, f: f, size: info.Size(), tail: info.Size()}
	seg.remap()
	return seg, nil
}

// writeCatalog persists segment tails through a temp file rename.
func (s *Store) writeCatalog() error {
	for i := range s.catalog.Segments {
		if seg := s.segments[s.catalog.Segments[i].ID]; seg != nil {
			s.catalog.Segments[i].Tail = seg.tail
		}
	}
	tmp := filepath.Join(s.dir, ".segments.tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(&s.catalog); err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, filepath.Join(s.dir, catalogName))
}

// recover walks records forward from the last checkpointed tail and
// truncates anything that fails to verify, so a crash mid-append cannot
// leave a torn record behind.
func (seg *segment) recover(from int64) error {
	if from < 0 || from > seg.size {
		from = 0
	}
	off := from
	var head [1 + binary.MaxVarintLen64]byte
	for off < seg.size {
		n, _ := seg.f.ReadAt(head[:], off)
		if n < 2 {
			break
		}
		if head[0] != kindValue && head[0] != kindTombstone {
			break
		}
		length, consumed := binary.Uvarint(head[1:n])
		if consumed <= 0 {
			break
		}
		payloadOff := off + 1 + int64(consumed)
		next := payloadOff + int64(length) + 4
		if next > seg.size {
			break
		}
		payload := make([]byte, length)
		if _, err := seg.f.ReadAt(payload, payloadOff); err != nil {
			break
		}
		var crcBuf [4]byte
		if _, err := seg.f.ReadAt(crcBuf[:], payloadOff+int64(length)); err != nil {
			break
		}
		if binary.LittleEndian.Uint32(crcBuf[:]) != crc32.ChecksumIEEE(payload) {
			break
		}
		off = next
	}
	if off < seg.size {
		if err := seg.f.Truncate(off); err != nil {
			return err
		}
	}
	seg.size = off
	seg.tail = off
	seg.remap()
	return nil
}

// Append implements storage.ValueStore.Append.
func (s *Store) Append(value []byte) (storage.Ptr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRecord(kindValue, value)
}

// Delete implements storage.ValueStore.Delete by appending a tombstone that
// names the dead pointer; compaction reclaims the space later.
func (s *Store) Delete(ptr storage.Ptr) error {
	payload := make([]byte, 16)
	binary.LittleEndian.PutUint32(payload[:4], ptr.SegmentID)
	binary.LittleEndian.PutUint64(payload[4:12], ptr.Offset)
	binary.LittleEndian.PutUint32(payload[12:], ptr.Length)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.appendRecord(kindTombstone, payload)
	return err
}

func (s *Store) appendRecord(kind byte, payload []byte) (storage.Ptr, error) {
	if s.closed {
		return storage.Ptr{}, storage.ErrClosed
	}
	record := encodeRecord(kind, payload)
	if err := s.rotateIfNeeded(int64(len(record))); err != nil {
		return storage.Ptr{}, err
	}
	seg := s.active
	off := seg.tail
	if _, err := seg.f.WriteAt(record, off); err != nil {
		return storage.Ptr{}, err
	}
	seg.tail += int64(len(record))
	if seg.tail > seg.size {
		seg.size = seg.tail
	}
	s.stats.Appends++
	s.stats.BytesWritten += uint64(len(record))
	payloadOff := off + int64(len(record)) - int64(len(payload)) - 4
	return storage.Ptr{SegmentID: seg.id, Offset: uint64(payloadOff), Length: uint32(len(payload))}, nil
}

func encodeRecord(kind byte, payload []byte) []byte {
	record := make([]byte, 0, 1+binary.MaxVarintLen64+len(payload)+4)
	record = append(record, kind)
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
	record = append(record, lenBuf[:n]...)
	record = append(record, payload...)
	var crcBuf [4]byte
	binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(payload))
	return append(record, crcBuf[:]...)
}

// rotateIfNeeded opens a fresh segment when the record would push the active
// one past its size limit. An oversize record still lands in an empty
// segment rather than rotating forever.
func (s *Store) rotateIfNeeded(recordLen int64) error {
	seg := s.active
	if seg == nil {
		return fmt.Errorf("mmapstore: no active segment")
	}
	if seg.tail == 0 || seg.tail+recordLen <= s.segmentSize {
		return nil
	}
	id := s.catalog.NextID
	next, err := s.openSegment(id)
	if err != nil {
		return err
	}
	s.segments[id] = next
	s.active = next
	s.catalog.Active = id
	s.catalog.NextID = id + 1
	s.catalog.Segments = append(s.catalog.Segments, segmentInfo{ID: id})
	return s.writeCatalog()
}

// Read implements storage.ValueStore.Read.
func (s *Store) Read(ptr storage.Ptr) ([]byte, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, storage.ErrClosed
	}
	seg := s.segments[ptr.SegmentID]
	s.mu.RUnlock()
	if seg == nil {
		return nil, storage.ErrInvalidPtr
	}
	if ptr.Length == 0 {
		return []byte{}, nil
	}
	payload, err := seg.read(ptr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.stats.BytesRead += uint64(len(payload))
	s.mu.Unlock()
	return payload, nil
}

// read serves the payload from the mapped view when it covers the record and
// falls back to direct I/O otherwise. Both paths verify the checksum.
func (seg *segment) read(ptr storage.Ptr) ([]byte, error) {
	end := int64(ptr.Offset) + int64(ptr.Length) + 4
	if seg.data != nil && end <= int64(len(seg.data)) {
		start := int(ptr.Offset)
		payload := make([]byte, ptr.Length)
		copy(payload, seg.data[start:start+int(ptr.Length)])
		if binary.LittleEndian.Uint32(seg.data[start+int(ptr.Length):]) != crc32.ChecksumIEEE(payload) {
			return nil, storage.ErrCorrupt
		}
		return payload, nil
	}
	payload := make([]byte, ptr.Length)
	if _, err := seg.f.ReadAt(payload, int64(ptr.Offset)); err != nil {
		return nil, err
	}
	var crcBuf [4]byte
	if _, err := seg.f.ReadAt(crcBuf[:], int64(ptr.Offset)+int64(ptr.Length)); err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(crcBuf[:]) != crc32.ChecksumIEEE(payload) {
		return nil, storage.ErrCorrupt
	}
	return payload, nil
}

// Sync flushes segment data and the catalog.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrClosed
	}
	for _, seg := range s.segments {
		if err := seg.f.Sync(); err != nil {
			return err
		}
	}
	return s.writeCatalog()
}

// Close releases segment files and mappings.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var firstErr error
	for _, seg := range s.segments {
		seg.unmap()
		if seg.f != nil {
			if err := seg.f.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Stats returns current counters.
func (s *Store) Stats() storage.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ret := s.stats
	ret.Segments = len(s.segments)
	return ret
}

var _ storage.ValueStore = (*Store)(nil)
