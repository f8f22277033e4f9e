package loader

import (
	"strings"
	"unicode/utf8"

	"policyrag/document"
)

// plainExtractor serves text files and anything without a dedicated
// extractor. Valid UTF-8 passes through untouched, binary content degrades
// to a printable-text scan.
type plainExtractor struct{}

func (e *plainExtractor) Extract(path string, data []byte) []document.Segment {
	if len(data) == 0 {
		return nil
	}
	if !utf8.Valid(data) {
		return printableSegments(data)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return []document.Segment{{Text: text}}
}
