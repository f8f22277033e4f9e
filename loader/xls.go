package loader

import (
	"bytes"
	"strconv"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"

	"policyrag/document"
)

// xlsExtractor handles legacy .xls workbooks the same way excelExtractor
// handles .xlsx: one segment per data row under the sheet header.
type xlsExtractor struct{}

func (e *xlsExtractor) Extract(path string, data []byte) []document.Segment {
	if len(data) == 0 {
		return nil
	}
	wb, err := xls.OpenReader(bytes.NewReader(data))
	if err != nil {
		return printableSegments(data)
	}
	var segments []document.Segment
	for i := 0; i < wb.GetNumberSheets(); i++ {
		sheet, err := wb.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		sheetRows := sheet.GetRows()
		if len(sheetRows) == 0 {
			continue
		}
		rows := make([][]string, 0, len(sheetRows))
		for _, row := range sheetRows {
			rows = append(rows, xlsRowValues(row.GetCols()))
		}
		segments = append(segments, rowSegments(sheet.GetName(), rows)...)
	}
	return segments
}

func xlsRowValues(cols []structure.CellData) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = xlsCellText(col)
	}
	return out
}

// xlsCellText coerces a cell to text; numeric cells have no string form in
// the legacy format.
func xlsCellText(cell structure.CellData) string {
	if s := cell.GetString(); s != "" {
		return s
	}
	if f := cell.GetFloat64(); f != 0 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	if n := cell.GetInt64(); n != 0 {
		return strconv.FormatInt(n, 10)
	}
	return ""
}
