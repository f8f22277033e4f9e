package loader

import (
	"strings"

	"policyrag/document"
)

// markdownExtractor splits markdown content on ATX headings so that each
// segment carries the heading it belongs to as its section.
type markdownExtractor struct{}

func (e *markdownExtractor) Extract(path string, data []byte) []document.Segment {
	var segments []document.Segment
	var section string
	var body []string

	flush := func() {
		text := strings.TrimSpace(strings.Join(body, "\n"))
		if text != "" {
			segments = append(segments, document.Segment{Text: text, Section: section})
		}
		body = body[:0]
	}

	for _, line := range strings.Split(string(data), "\n") {
		if title, ok := headingTitle(line); ok {
			flush()
			section = title
			body = append(body, line)
			continue
		}
		body = append(body, line)
	}
	flush()
	return segments
}

// headingTitle reports whether line is an ATX heading and returns its title.
func headingTitle(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "#") {
		return "", false
	}
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level > 6 || level == len(trimmed) || trimmed[level] != ' ' {
		return "", false
	}
	title := strings.TrimSpace(trimmed[level:])
	title = strings.TrimRight(title, "# ")
	if title == "" {
		return "", false
	}
	return title, true
}
