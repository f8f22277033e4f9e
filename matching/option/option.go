// Package option configures corpus file selection: inclusion and exclusion
// glob patterns plus a file size cap.
package option

import (
	"bufio"
	"io"
	"strings"
)

// Option is a function that modifies Options.
type Option func(*Options)

// Options carries the corpus filtering configuration shared by the
// processor and the status reporting.
type Options struct {
	// Exclusions contains patterns of files and directories to skip.
	Exclusions []string

	// Inclusions, when set, restricts processing to matching files.
	Inclusions []string

	// MaxFileSize caps processable file size in bytes.
	MaxFileSize int64
}

// defaultExclusions names artifacts a document corpus should never index:
// version control internals, editor droppings, archives and images the
// extractors cannot read anyway.
var defaultExclusions = []string{
	".git/",
	".svn/",
	"__MACOSX/",

	".DS_Store",
	"Thumbs.db",
	"~$*",
	"*.tmp",
	"*.bak",
	"*.swp",
	"*.log",
	"*.lock",
	"*.zip",
	"*.gz",
	"*.png",
	"*.jpg",
	"*.jpeg",
	"*.gif",
	"*.exe",
	"*.dll",
}

// NewOptions materializes the applied options; without explicit exclusions
// the default set applies.
func NewOptions(opts ...Option) *Options {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}
	if options.Exclusions == nil {
		options.Exclusions = append([]string(nil), defaultExclusions...)
	}
	return options
}

// WithExclusionPatterns adds exclusion patterns.
func WithExclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, patterns...)
	}
}

// WithInclusionPatterns adds patterns to include.
func WithInclusionPatterns(patterns ...string) Option {
	return func(o *Options) {
		o.Inclusions = append(o.Inclusions, patterns...)
	}
}

// WithMaxProcessableSize sets the maximum processable file size.
func WithMaxProcessableSize(size int64) Option {
	return func(o *Options) {
		o.MaxFileSize = size
	}
}

// WithDefaultExclusionPatterns adds the default exclusion set on top of any
// explicit patterns.
func WithDefaultExclusionPatterns() Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, defaultExclusions...)
	}
}

// WithIgnoreReader adds patterns from an ignore file in gitignore-like
// format: one pattern per line, blank lines and # comments skipped.
func WithIgnoreReader(reader io.Reader) Option {
	return func(o *Options) {
		o.Exclusions = append(o.Exclusions, ParseIgnore(reader)...)
	}
}

// ParseIgnore reads ignore patterns from a reader.
func ParseIgnore(reader io.Reader) []string {
	var patterns []string
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns
}
