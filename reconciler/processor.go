package reconciler

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"

	"policyrag/loader"
	"policyrag/manifest"
	"policyrag/matching"
	"policyrag/vectordb"
	"policyrag/vectorstores"
)

// Stats summarizes one batch run. Processed counts every examined document,
// so Processed = New + Updated + Unchanged + Skipped.
type Stats struct {
	Processed     int `json:"processed"`
	New           int `json:"new"`
	Updated       int `json:"updated"`
	Unchanged     int `json:"unchanged"`
	Skipped       int `json:"skipped,omitempty"`
	Deleted       int `json:"deleted,omitempty"`
	ChunksAdded   int `json:"chunks_added"`
	ChunksRemoved int `json:"chunks_removed"`
}

// Processor drives a batch run: it lists the corpus, reconciles each
// document against the manifest, applies the add/remove sets to the vector
// index and replaces the manifest entry only after the index mutation
// succeeded. Documents present in the manifest but gone from the corpus are
// reconciled to an empty chunk set.
type Processor struct {
	fs      loader.Service
	loader  *loader.Loader
	matcher *matching.Manager
	index   vectordb.Index
	store   *manifest.Store

	concurrency  int
	keepGoing    bool
	now          func() time.Time
	logf         func(format string, args ...interface{})
	indexOptions []vectorstores.Option

	persistMux sync.Mutex
}

// NewProcessor creates a Processor. The index must be safe for concurrent
// use when concurrency is raised above one.
func NewProcessor(fs loader.Service, documents *loader.Loader, matcher *matching.Manager, index vectordb.Index, store *manifest.Store, opts ...Option) *Processor {
	ret := &Processor{
		fs:          fs,
		loader:      documents,
		matcher:     matcher,
		index:       index,
		store:       store,
		concurrency: 4,
		now:         time.Now,
		logf:        func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Run reconciles every document under location and returns batch statistics.
// The manifest must be loaded and locked by the caller for the duration of
// the run.
func (p *Processor) Run(ctx context.Context, location string) (*Stats, error) {
	norm, err := normalizeLocation(location)
	if err != nil {
		return nil, err
	}
	files, err := p.listDocuments(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("failed to list %v: %w", location, err)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].URL() < files[j].URL() })

	stats := &Stats{}
	seen := make(map[string]bool, len(files))
	for _, object := range files {
		seen[url.Path(object.URL())] = true
	}

	var mux sync.Mutex
	var firstErr error
	limiter := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for _, object := range files {
		select {
		case <-ctx.Done():
			wg.Wait()
			return stats, ctx.Err()
		default:
		}
		mux.Lock()
		abort := firstErr != nil && !p.keepGoing
		mux.Unlock()
		if abort {
			break
		}
		wg.Add(1)
		limiter <- struct{}{} // Acquire a token.
		go func(object storage.Object) {
			defer wg.Done()
			defer func() { <-limiter }() // Release the token when done.

			source := url.Path(object.URL())
			result, err := p.processDocument(ctx, source, object)

			mux.Lock()
			defer mux.Unlock()
			stats.Processed++
			if err != nil {
				stats.Skipped++
				if firstErr == nil {
					firstErr = fmt.Errorf("failed to process %v: %w", source, err)
				}
				p.logf("skipped %v: %v", source, err)
				return
			}
			switch result.Status {
			case StatusNew:
				stats.New++
			case StatusUpdated:
				stats.Updated++
			case StatusUnchanged:
				stats.Unchanged++
			}
			stats.ChunksAdded += len(result.ToAdd)
			stats.ChunksRemoved += len(result.ToRemove)
			p.logf("%v %v (+%d -%d)", result.Status, source, len(result.ToAdd), len(result.ToRemove))
		}(object)
	}
	wg.Wait()

	if firstErr != nil && !p.keepGoing {
		return stats, firstErr
	}

	if err := p.removeDeleted(ctx, norm, seen, stats); err != nil {
		if !p.keepGoing {
			return stats, err
		}
		p.logf("cleanup incomplete: %v", err)
	}

	if persister, ok := p.index.(vectordb.Persister); ok {
		if err := persister.Persist(ctx); err != nil {
			return stats, fmt.Errorf("failed to persist index: %w", err)
		}
	}
	return stats, nil
}

// processDocument reconciles a single document and applies the outcome:
// stale chunks leave the index, new chunks enter it, and only then is the
// manifest entry replaced wholesale.
func (p *Processor) processDocument(ctx context.Context, source string, object storage.Object) (*Result, error) {
	data, err := p.fs.Download(ctx, object)
	if err != nil {
		return nil, fmt.Errorf("failed to download: %w", err)
	}
	segments := p.loader.Load(source, data)
	chunks := ComputeChunks(source, segments)
	prev, _ := p.store.Manifest().Get(source)
	result := Reconcile(source, chunks, prev)
	if err := p.apply(ctx, &result); err != nil {
		return nil, err
	}
	entry := &manifest.Entry{LastProcessed: p.now(), Chunks: chunks}
	if err := p.saveEntry(ctx, source, entry); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Processor) apply(ctx context.Context, result *Result) error {
	if len(result.ToRemove) > 0 {
		if err := p.index.DeleteByFingerprints(ctx, result.ToRemove, p.indexOptions...); err != nil {
			return fmt.Errorf("failed to delete stale chunks: %w", err)
		}
	}
	if len(result.ToAdd) > 0 {
		if _, err := p.index.AddDocuments(ctx, result.ToAdd.Documents(), p.indexOptions...); err != nil {
			return fmt.Errorf("failed to add chunks: %w", err)
		}
	}
	return nil
}

// saveEntry replaces the manifest entry and persists the manifest; persists
// are serialized across worker goroutines.
func (p *Processor) saveEntry(ctx context.Context, source string, entry *manifest.Entry) error {
	p.persistMux.Lock()
	defer p.persistMux.Unlock()
	p.store.Manifest().Set(source, entry)
	return p.store.Persist(ctx)
}

// removeDeleted drops manifest entries whose documents vanished from the
// corpus, deleting their chunks from the index first. Only entries under the
// processed location are considered, so a partial run never evicts siblings.
func (p *Processor) removeDeleted(ctx context.Context, location string, seen map[string]bool, stats *Stats) error {
	root := strings.TrimSuffix(url.Path(location), "/")
	prefix := root + "/"
	for _, source := range p.store.Manifest().Paths() {
		if seen[source] || !strings.HasPrefix(source, prefix) {
			continue
		}
		entry, ok := p.store.Manifest().Get(source)
		if !ok {
			continue
		}
		fingerprints := entry.Fingerprints()
		if len(fingerprints) > 0 {
			if err := p.index.DeleteByFingerprints(ctx, fingerprints, p.indexOptions...); err != nil {
				return fmt.Errorf("failed to delete chunks of removed %v: %w", source, err)
			}
		}
		p.persistMux.Lock()
		p.store.Manifest().Delete(source)
		err := p.store.Persist(ctx)
		p.persistMux.Unlock()
		if err != nil {
			return err
		}
		stats.Deleted++
		stats.ChunksRemoved += len(fingerprints)
		p.logf("removed %v (%d chunks)", source, len(fingerprints))
	}
	return nil
}

// listDocuments lists processable files under location recursively, applying
// the corpus matcher to both files and directories.
func (p *Processor) listDocuments(ctx context.Context, location string) ([]storage.Object, error) {
	objects, err := p.fs.List(ctx, location)
	if err != nil {
		return nil, err
	}
	var files []storage.Object
	for _, object := range objects {
		if object.IsDir() && (url.Equals(object.URL(), location) || url.Path(object.URL()) == url.Path(location)) {
			continue
		}
		if p.matcher.IsExcluded(url.Path(object.URL()), object.Size()) {
			continue
		}
		if object.IsDir() {
			sub, err := p.listDocuments(ctx, url.Join(location, object.Name()))
			if err != nil {
				return nil, err
			}
			files = append(files, sub...)
			continue
		}
		files = append(files, object)
	}
	return files, nil
}

// normalizeLocation makes a relative path absolute and turns schemeless
// absolute paths into file URLs so storage listing behaves the same across
// platforms.
func normalizeLocation(location string) (string, error) {
	norm := location
	if url.Scheme(norm, "") == "" && url.IsRelative(norm) {
		abs, err := filepath.Abs(norm)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path for %s: %w", location, err)
		}
		norm = abs
	}
	if url.Scheme(norm, "") == "" && !url.IsRelative(norm) {
		norm = url.ToFileURL(norm)
	}
	return norm, nil
}
