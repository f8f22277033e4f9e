package matching

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"

	"policyrag/matching/option"
)

// IgnoreFileName is looked up at the corpus root; when present it carries
// extra exclusion patterns, one per line.
const IgnoreFileName = ".policyignore"

// Manager decides which corpus files get processed.
type Manager struct {
	options *option.Options
	fs      afs.Service
}

// New creates an exclusion manager with the given options
func New(opts ...option.Option) *Manager {
	return &Manager{
		options: option.NewOptions(opts...),
		fs:      afs.New(),
	}
}

// LoadIgnore appends patterns from the ignore file at baseURL when present.
func (m *Manager) LoadIgnore(ctx context.Context, baseURL string) error {
	URL := url.Join(baseURL, IgnoreFileName)
	ok, err := m.fs.Exists(ctx, URL)
	if err != nil || !ok {
		return err
	}
	data, err := m.fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return err
	}
	m.options.Exclusions = append(m.options.Exclusions, option.ParseIgnore(bytes.NewReader(data))...)
	return nil
}

// IsExcluded checks whether a file should be skipped given its location and
// size in bytes.
func (m *Manager) IsExcluded(location string, size int64) bool {
	if m.options.MaxFileSize > 0 && size > m.options.MaxFileSize {
		return true
	}
	filePath := strings.ReplaceAll(url.Path(location), "\\", "/")
	if len(m.options.Inclusions) > 0 && !m.matchesAny(filePath, m.options.Inclusions) {
		return true
	}
	return m.matchesAny(filePath, m.options.Exclusions)
}

func (m *Manager) matchesAny(filePath string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		// Skip comments or empty lines
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}
		if matchPattern(filePath, pattern) {
			return true
		}
	}
	return false
}

// matchPattern supports three pattern forms: "name/" matches any file under
// a directory segment called name, a slash-free glob or literal matches the
// basename, and a pattern with slashes glob-matches the trailing path
// segments. A leading "**/" is accepted and ignored.
func matchPattern(filePath, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, "**/")
	if strings.HasSuffix(pattern, "/") {
		return hasSegment(filePath, strings.TrimSuffix(pattern, "/"))
	}
	if !strings.Contains(pattern, "/") {
		base := path.Base(filePath)
		if matched, _ := path.Match(pattern, base); matched {
			return true
		}
		return pattern == base
	}
	return matchTrailing(filePath, pattern)
}

// hasSegment reports whether dir names one of the parent directories of
// filePath.
func hasSegment(filePath, dir string) bool {
	segments := strings.Split(filePath, "/")
	if len(segments) < 2 {
		return false
	}
	for _, segment := range segments[:len(segments)-1] {
		if segment == dir {
			return true
		}
	}
	return false
}

// matchTrailing glob-matches a multi-segment pattern against the same number
// of trailing path segments, so "archive/*.pdf" matches any archive
// directory anywhere in the tree.
func matchTrailing(filePath, pattern string) bool {
	patternSegments := strings.Split(pattern, "/")
	segments := strings.Split(filePath, "/")
	if len(segments) < len(patternSegments) {
		return false
	}
	tail := strings.Join(segments[len(segments)-len(patternSegments):], "/")
	matched, _ := path.Match(pattern, tail)
	return matched
}
