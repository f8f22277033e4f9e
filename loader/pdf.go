package loader

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"policyrag/document"
)

// pdfExtractor extracts per-page plain text from PDF files. Unparseable
// files degrade to a printable-text scan rather than an error.
type pdfExtractor struct{}

func (e *pdfExtractor) Extract(path string, data []byte) []document.Segment {
	if len(data) == 0 {
		return nil
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return printableSegments(data)
	}
	var segments []document.Segment
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		segments = append(segments, document.Segment{Text: text, Page: pageNum})
	}
	if len(segments) == 0 {
		return printableSegments(data)
	}
	return segments
}

// printableSegments salvages printable text from content no parser accepts.
func printableSegments(data []byte) []document.Segment {
	text := extractPrintableText(data)
	if strings.TrimSpace(string(text)) == "" {
		return nil
	}
	return []document.Segment{{Text: string(text)}}
}

func extractPrintableText(in []byte) []byte {
	var out bytes.Buffer
	for len(in) > 0 {
		r, size := utf8.DecodeRune(in)
		if r == utf8.RuneError && size == 1 {
			b := in[0]
			if isPrintableASCII(b) {
				out.WriteByte(b)
			}
			in = in[1:]
			continue
		}
		in = in[size:]
		if isPrintableRune(r) {
			out.WriteRune(r)
		}
	}
	return out.Bytes()
}

func isPrintableASCII(b byte) bool {
	return b == '\n' || b == '\r' || b == '\t' || (b >= 32 && b < 127)
}

func isPrintableRune(r rune) bool {
	if r == '\n' || r == '\r' || r == '\t' {
		return true
	}
	return r >= 32 && r != 127
}
