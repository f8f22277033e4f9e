package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

const (
	manifestFileName = "manifest.json"
	lockFileName     = "manifest.lock"
)

// Store reads and writes the manifest as a single JSON asset in a state
// location. The whole manifest is read once at run start and written after
// each successful per-document reconcile.
type Store struct {
	fs       afs.Service
	baseURL  string
	manifest *Manifest
	lock     *runLock
}

// NewStore creates a manifest store rooted at the supplied state location.
func NewStore(baseURL string) *Store {
	return &Store{
		fs:       afs.New(),
		baseURL:  url.Normalize(baseURL, "file"),
		manifest: New(),
	}
}

// Manifest exposes the in-memory manifest.
func (s *Store) Manifest() *Manifest {
	return s.manifest
}

// URL returns the manifest asset URL.
func (s *Store) URL() string {
	return url.Join(s.baseURL, manifestFileName)
}

// Load reads the manifest from storage. An absent asset yields an empty
// manifest, never an error.
func (s *Store) Load(ctx context.Context) error {
	URL := s.URL()
	exists, _ := s.fs.Exists(ctx, URL)
	if !exists {
		return nil
	}
	data, err := s.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return fmt.Errorf("failed to read manifest %v: %w", URL, err)
	}
	if err := s.manifest.Load(data); err != nil {
		return fmt.Errorf("failed to decode manifest %v: %w", URL, err)
	}
	return nil
}

// Persist writes the full manifest back to storage.
func (s *Store) Persist(ctx context.Context) error {
	data, err := s.manifest.Data()
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := s.fs.Upload(ctx, s.URL(), file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to persist manifest: %w", err)
	}
	return nil
}

// Lock acquires an exclusive advisory lock on the state location so two batch
// runs cannot share one manifest file. It is a no-op for non-file locations,
// where exclusivity is the operator's responsibility.
func (s *Store) Lock() error {
	if url.Scheme(s.baseURL, "file") != "file" {
		return nil
	}
	dir := url.Path(s.baseURL)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state location %v: %w", dir, err)
	}
	lock, err := acquireRunLock(filepath.Join(dir, lockFileName))
	if err != nil {
		if errors.Is(err, errLockHeld) {
			return fmt.Errorf("manifest at %v is locked by another process", s.baseURL)
		}
		return fmt.Errorf("failed to lock manifest: %w", err)
	}
	s.lock = lock
	return nil
}

// Unlock releases the advisory lock acquired by Lock.
func (s *Store) Unlock() error {
	err := s.lock.release()
	s.lock = nil
	return err
}
