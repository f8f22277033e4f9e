package manifest

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"policyrag/document"
)

// Entry is the persisted record of one source document as of its last
// successful reconcile.
type Entry struct {
	LastProcessed time.Time       `json:"last_processed"`
	Chunks        document.Chunks `json:"chunks"`
}

// Fingerprints returns the distinct fingerprints recorded for the document.
// A nil entry yields the empty set.
func (e *Entry) Fingerprints() []string {
	if e == nil {
		return nil
	}
	return e.Chunks.Fingerprints()
}

// Manifest maps document paths to their last-processed chunk records. It is
// the source of truth for what the vector index currently holds and is safe
// for concurrent use.
type Manifest struct {
	data map[string]*Entry
	sync.RWMutex
}

// New creates an empty manifest.
func New() *Manifest {
	return &Manifest{data: make(map[string]*Entry)}
}

// Get retrieves the entry for a document path, with existence check.
func (m *Manifest) Get(path string) (*Entry, bool) {
	m.RLock()
	defer m.RUnlock()
	entry, ok := m.data[path]
	return entry, ok
}

// Set replaces the entry for a document path wholesale.
func (m *Manifest) Set(path string, entry *Entry) {
	m.Lock()
	defer m.Unlock()
	m.data[path] = entry
}

// Delete removes the entry for a document path.
func (m *Manifest) Delete(path string) {
	m.Lock()
	defer m.Unlock()
	delete(m.data, path)
}

// Has checks whether a document path has an entry.
func (m *Manifest) Has(path string) bool {
	m.RLock()
	defer m.RUnlock()
	_, ok := m.data[path]
	return ok
}

// Size returns the number of tracked documents.
func (m *Manifest) Size() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.data)
}

// Paths returns all tracked document paths in sorted order.
func (m *Manifest) Paths() []string {
	m.RLock()
	defer m.RUnlock()
	paths := make([]string, 0, len(m.data))
	for path := range m.data {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Data serializes the manifest as one indented JSON object.
func (m *Manifest) Data() ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	return json.MarshalIndent(m.data, "", "  ")
}

// Load populates the manifest from JSON data. Individual entries that fail to
// decode are dropped so their documents are treated as never processed;
// only a malformed top-level object is an error.
func (m *Manifest) Load(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Lock()
	defer m.Unlock()
	m.data = make(map[string]*Entry, len(raw))
	for path, payload := range raw {
		entry := &Entry{}
		if err := json.Unmarshal(payload, entry); err != nil {
			continue
		}
		m.data[path] = entry
	}
	return nil
}
