package loader

import (
	"bytes"
	"strings"

	"github.com/xuri/excelize/v2"

	"policyrag/document"
)

// excelExtractor turns each spreadsheet data row into its own segment,
// prefixed with the header row so each row keeps its column context.
type excelExtractor struct{}

func (e *excelExtractor) Extract(path string, data []byte) []document.Segment {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return printableSegments(data)
	}
	defer f.Close()
	var segments []document.Segment
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}
		segments = append(segments, rowSegments(sheet, rows)...)
	}
	return segments
}

// rowSegments converts tabular rows into one segment per data row. The
// first non-empty row acts as the header.
func rowSegments(sheet string, rows [][]string) []document.Segment {
	var header []string
	var segments []document.Segment
	for _, row := range rows {
		if isEmptyRow(row) {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		var text string
		headerLine := buildHeaderLine(header)
		rowLine := buildRowLine(header, row)
		if rowLine == "" {
			continue
		}
		if headerLine != "" {
			text = headerLine + "\n" + rowLine
		} else {
			text = rowLine
		}
		segments = append(segments, document.Segment{Text: text, Section: sheet})
	}
	return segments
}

func buildHeaderLine(header []string) string {
	var cells []string
	for _, cell := range header {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		cells = append(cells, cell)
	}
	return strings.Join(cells, " | ")
}

func buildRowLine(header, row []string) string {
	var cells []string
	for i, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name != "" {
			cells = append(cells, name+": "+cell)
		} else {
			cells = append(cells, cell)
		}
	}
	return strings.Join(cells, " | ")
}

func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
