// Package split provides a recursive character splitter that divides text at
// the strongest available separator while keeping chunks under a size bound.
package split

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultSize bounds chunk length in runes.
	DefaultSize = 400
	// DefaultOverlap is carried from the end of one chunk into the next.
	DefaultOverlap = 50
)

var defaultSeparators = []string{"\n\n", "\n", ".", "•", "|", " "}

// Splitter divides text into chunks of at most Size runes, preferring to
// break at the strongest available separator. Overlap runes from the end of
// each emitted chunk seed the next so context survives the cut.
type Splitter struct {
	size       int
	overlap    int
	separators []string
}

// New creates a splitter. A non-positive size falls back to DefaultSize; a
// negative or size-exceeding overlap falls back to DefaultOverlap, while
// zero disables overlap seeding.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Splitter{size: size, overlap: overlap, separators: defaultSeparators}
}

// Split divides text into ordered chunks. The result is a pure function of
// the input and every chunk is at most Size runes long.
func (s *Splitter) Split(text string) []string {
	pieces := s.divide(text, 0)
	return s.merge(pieces)
}

// divide recursively breaks text at separators until every piece fits.
// Separators stay attached to the preceding piece so rejoining is lossless.
func (s *Splitter) divide(text string, level int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}
	for ; level < len(s.separators); level++ {
		sep := s.separators[level]
		if !strings.Contains(text, sep) {
			continue
		}
		parts := splitAfter(text, sep)
		if len(parts) < 2 {
			continue
		}
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			out = append(out, s.divide(part, level+1)...)
		}
		return out
	}
	return s.hardCut(text)
}

// merge greedily glues adjacent pieces into chunks of at most size runes and
// seeds each new chunk with the overlap tail of the previous one.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	current := ""
	emit := func() {
		if trimmed := strings.TrimSpace(current); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	for _, piece := range pieces {
		if current == "" {
			current = piece
			continue
		}
		if utf8.RuneCountInString(current)+utf8.RuneCountInString(piece) <= s.size {
			current += piece
			continue
		}
		emit()
		tail := s.tail(current)
		if utf8.RuneCountInString(tail)+utf8.RuneCountInString(piece) <= s.size {
			current = tail + piece
		} else {
			current = piece
		}
	}
	emit()
	return chunks
}

func (s *Splitter) tail(text string) string {
	if s.overlap <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= s.overlap {
		return text
	}
	return string(runes[len(runes)-s.overlap:])
}

// hardCut falls back to plain rune-boundary cuts when no separator applies.
func (s *Splitter) hardCut(text string) []string {
	runes := []rune(text)
	out := make([]string, 0, len(runes)/s.size+1)
	for start := 0; start < len(runes); start += s.size {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// splitAfter splits text keeping the separator attached to the preceding part.
func splitAfter(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	// SplitAfter yields a trailing empty part when text ends with sep.
	if len(parts) > 0 && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
