package loader

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"policyrag/document"
)

// docxExtractor walks word/document.xml with the stdlib XML decoder. Heading
// styled paragraphs open sections, mirroring how the markdown extractor
// treats ATX headings; table cells join their row with tabs.
type docxExtractor struct{}

func (e *docxExtractor) Extract(path string, data []byte) []document.Segment {
	body, err := openDOCXBody(data)
	if err != nil {
		return printableSegments(data)
	}
	defer body.Close()
	segments := parseDOCXBody(body)
	if len(segments) == 0 {
		return printableSegments(data)
	}
	return segments
}

// openDOCXBody locates word/document.xml inside the zip container.
func openDOCXBody(data []byte) (io.ReadCloser, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	for _, f := range r.File {
		if strings.EqualFold(f.Name, "word/document.xml") {
			return f.Open()
		}
	}
	return nil, io.ErrUnexpectedEOF
}

func parseDOCXBody(r io.Reader) []document.Segment {
	var (
		segments []document.Segment
		section  string
		lines    []string
		para     strings.Builder
		style    string
		joinCell bool
	)
	flush := func() {
		text := strings.TrimSpace(strings.Join(lines, "\n"))
		if text != "" {
			segments = append(segments, document.Segment{Text: text, Section: section})
		}
		lines = lines[:0]
	}
	endParagraph := func() {
		text := strings.TrimSpace(para.String())
		para.Reset()
		paraStyle := style
		style = ""
		if text == "" {
			return
		}
		if isHeadingStyle(paraStyle) {
			flush()
			section = text
			lines = append(lines, text)
			return
		}
		if joinCell && len(lines) > 0 {
			lines[len(lines)-1] += "\t" + text
			joinCell = false
			return
		}
		lines = append(lines, text)
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pStyle":
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						style = attr.Value
					}
				}
			case "t", "instrText":
				var text string
				if err := dec.DecodeElement(&text, &t); err == nil {
					para.WriteString(text)
				}
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				endParagraph()
			case "tc":
				joinCell = true
			case "tr":
				joinCell = false
			}
		}
	}
	flush()
	return segments
}

// isHeadingStyle matches the built-in Word heading and title styles.
func isHeadingStyle(style string) bool {
	lower := strings.ToLower(style)
	return strings.HasPrefix(lower, "heading") || lower == "title"
}
