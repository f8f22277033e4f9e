package loader

import (
	"policyrag/document"
	"policyrag/loader/split"
)

// Loader turns raw file content into split segments ready for
// fingerprinting: an extractor chosen by extension produces coarse
// segments, then the recursive splitter cuts each one down to chunk size.
type Loader struct {
	factory  *Factory
	splitter *split.Splitter
}

// Option customizes a Loader.
type Option func(*Loader)

// WithSplitter overrides the default chunk splitter.
func WithSplitter(splitter *split.Splitter) Option {
	return func(l *Loader) {
		if splitter != nil {
			l.splitter = splitter
		}
	}
}

// WithExtractor registers or replaces the extractor for an extension.
func WithExtractor(ext string, extractor Extractor) Option {
	return func(l *Loader) {
		l.factory.Register(ext, extractor)
	}
}

// New creates a Loader with the default extractors and splitter.
func New(options ...Option) *Loader {
	ret := &Loader{
		factory:  NewFactory(),
		splitter: split.New(split.DefaultSize, split.DefaultOverlap),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// Load extracts and splits the supplied file content. The result is
// deterministic for identical input.
func (l *Loader) Load(path string, data []byte) []document.Segment {
	extractor := l.factory.Extractor(path)
	var result []document.Segment
	for _, segment := range extractor.Extract(path, data) {
		for _, piece := range l.splitter.Split(segment.Text) {
			result = append(result, document.Segment{
				Text:    piece,
				Page:    segment.Page,
				Section: segment.Section,
			})
		}
	}
	return result
}
