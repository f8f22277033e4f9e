package loader

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"policyrag/document"
	"policyrag/loader/split"
)

func TestLoader_PlainPassThrough(t *testing.T) {
	l := New()
	segments := l.Load("note.txt", []byte("Keep receipts for all travel expenses."))
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	if segments[0].Text != "Keep receipts for all travel expenses." {
		t.Fatalf("unexpected text: %q", segments[0].Text)
	}
	if segments[0].Page != 0 || segments[0].Section != "" {
		t.Fatalf("expected empty position, got %+v", segments[0])
	}
}

func TestLoader_MarkdownSections(t *testing.T) {
	content := "# Vacation Policy\n\nEmployees accrue fifteen days of paid vacation per year.\n\n# Sick Leave\n\nSick leave requires a doctor's note after three days.\n"
	l := New()
	segments := l.Load("handbook.md", []byte(content))
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Section != "Vacation Policy" {
		t.Fatalf("expected section %q, got %q", "Vacation Policy", segments[0].Section)
	}
	if !strings.Contains(segments[0].Text, "fifteen days") {
		t.Fatalf("segment 0 missing body: %q", segments[0].Text)
	}
	if segments[1].Section != "Sick Leave" {
		t.Fatalf("expected section %q, got %q", "Sick Leave", segments[1].Section)
	}
}

func TestLoader_SplitsLongText(t *testing.T) {
	sentence := "Employees must record their working hours in the internal portal every week. "
	content := strings.Repeat(sentence, 8)
	l := New()
	segments := l.Load("handbook.txt", []byte(content))
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}
	for i, segment := range segments {
		if utf8.RuneCountInString(segment.Text) > split.DefaultSize {
			t.Fatalf("segment %d exceeds size bound: %d runes", i, utf8.RuneCountInString(segment.Text))
		}
		if strings.TrimSpace(segment.Text) == "" {
			t.Fatalf("segment %d is blank", i)
		}
	}
	if !strings.HasPrefix(segments[0].Text, "Employees must record") {
		t.Fatalf("unexpected first segment: %q", segments[0].Text)
	}
}

type staticExtractor struct {
	segments []document.Segment
}

func (e *staticExtractor) Extract(path string, data []byte) []document.Segment {
	return e.segments
}

func TestLoader_PositionSurvivesSplitting(t *testing.T) {
	sentence := "Travel above five hundred dollars needs director approval before booking. "
	l := New(WithExtractor(".pol", &staticExtractor{
		segments: []document.Segment{{Text: strings.Repeat(sentence, 8), Page: 3, Section: "Travel"}},
	}))
	segments := l.Load("rules.pol", nil)
	if len(segments) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segments))
	}
	for i, segment := range segments {
		if segment.Page != 3 || segment.Section != "Travel" {
			t.Fatalf("segment %d lost position: %+v", i, segment)
		}
	}
}

func TestLoader_ExcelRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &[]interface{}{"Policy", "Days"}); err != nil {
		t.Fatalf("set header: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &[]interface{}{"Vacation", 15}); err != nil {
		t.Fatalf("set row: %v", err)
	}
	if err := f.SetSheetRow(sheet, "A3", &[]interface{}{"Sick", 10}); err != nil {
		t.Fatalf("set row: %v", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	segments := New().Load("benefits.xlsx", buf.Bytes())
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Section != sheet {
		t.Fatalf("expected section %q, got %q", sheet, segments[0].Section)
	}
	if !strings.Contains(segments[0].Text, "Policy | Days") {
		t.Fatalf("segment 0 missing header line: %q", segments[0].Text)
	}
	if !strings.Contains(segments[0].Text, "Policy: Vacation | Days: 15") {
		t.Fatalf("segment 0 missing row line: %q", segments[0].Text)
	}
	if !strings.Contains(segments[1].Text, "Days: 10") {
		t.Fatalf("segment 1 missing row line: %q", segments[1].Text)
	}
}

func TestLoader_DOCXParagraphs(t *testing.T) {
	data := buildDOCX(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body><w:p><w:r><w:t>Remote work requires manager approval.</w:t></w:r></w:p><w:p><w:r><w:t>Equipment must be returned on exit.</w:t></w:r></w:p></w:body></w:document>`)
	segments := New().Load("remote.docx", data)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	want := "Remote work requires manager approval.\nEquipment must be returned on exit."
	if segments[0].Text != want {
		t.Fatalf("unexpected segment: %q", segments[0].Text)
	}
	if segments[0].Section != "" {
		t.Fatalf("expected no section, got %q", segments[0].Section)
	}
}

func TestLoader_DOCXHeadingsOpenSections(t *testing.T) {
	data := buildDOCX(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Remote Work</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Approval is required.</w:t></w:r></w:p>`+
		`<w:p><w:pPr><w:pStyle w:val="Heading1"/></w:pPr><w:r><w:t>Equipment</w:t></w:r></w:p>`+
		`<w:p><w:r><w:t>Laptops are returned on exit.</w:t></w:r></w:p>`+
		`</w:body></w:document>`)
	segments := New().Load("remote.docx", data)
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Section != "Remote Work" || !strings.Contains(segments[0].Text, "Approval is required.") {
		t.Fatalf("unexpected segment 0: %+v", segments[0])
	}
	if segments[1].Section != "Equipment" || !strings.Contains(segments[1].Text, "Laptops are returned on exit.") {
		t.Fatalf("unexpected segment 1: %+v", segments[1])
	}
}

func TestLoader_DOCXTableCellsJoinRows(t *testing.T) {
	data := buildDOCX(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`+
		`<w:tbl><w:tr>`+
		`<w:tc><w:p><w:r><w:t>Vacation</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>20 days</w:t></w:r></w:p></w:tc>`+
		`</w:tr><w:tr>`+
		`<w:tc><w:p><w:r><w:t>Sick leave</w:t></w:r></w:p></w:tc>`+
		`<w:tc><w:p><w:r><w:t>10 days</w:t></w:r></w:p></w:tc>`+
		`</w:tr></w:tbl>`+
		`</w:body></w:document>`)
	segments := New().Load("benefits.docx", data)
	if len(segments) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segments))
	}
	want := "Vacation\t20 days\nSick leave\t10 days"
	if segments[0].Text != want {
		t.Fatalf("unexpected segment: %q", segments[0].Text)
	}
}

func TestLoader_PDFFallbackToPrintable(t *testing.T) {
	data := []byte("%PDF-1.4\nExpense reports are due monthly.\n%%EOF")
	segments := New().Load("expenses.pdf", data)
	if len(segments) == 0 {
		t.Fatalf("expected segments, got 0")
	}
	if !strings.Contains(segments[0].Text, "Expense reports are due monthly.") {
		t.Fatalf("missing salvaged text: %q", segments[0].Text)
	}
}

func TestHeadingTitle(t *testing.T) {
	testCases := []struct {
		line  string
		title string
		ok    bool
	}{
		{"# Title", "Title", true},
		{"## Benefits ##", "Benefits", true},
		{"  ### Indented", "Indented", true},
		{"#NoSpace", "", false},
		{"####### Seven", "", false},
		{"plain text", "", false},
		{"#", "", false},
		{"# ", "", false},
	}
	for _, tc := range testCases {
		title, ok := headingTitle(tc.line)
		if ok != tc.ok || title != tc.title {
			t.Errorf("headingTitle(%q) = (%q, %v), expected (%q, %v)", tc.line, title, ok, tc.title, tc.ok)
		}
	}
}

func buildDOCX(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write document.xml: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}
