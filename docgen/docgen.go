// Package docgen writes the bundled sample policy PDFs so the pipeline can
// be demonstrated end to end without sourcing documents first.
package docgen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-pdf/fpdf"
)

// Generate writes the sample policy corpus into outputDir and returns the
// generated file paths in generation order.
func Generate(outputDir string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %v: %w", outputDir, err)
	}
	var paths []string
	for _, doc := range sampleDocuments {
		path := filepath.Join(outputDir, doc.fileName)
		if err := doc.write(path); err != nil {
			return nil, fmt.Errorf("failed to generate %v: %w", doc.fileName, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

var sampleDocuments = []struct {
	fileName string
	write    func(path string) error
}{
	{"hr_policy.pdf", writeHRPolicy},
	{"travel_policy.pdf", writeTravelPolicy},
	{"compensation_policy.pdf", writeCompensationPolicy},
	{"email_policy.pdf", writeEmailPolicy},
}

func writeHRPolicy(path string) error {
	pdf := newPolicyPDF("Human Resources Policy")
	section(pdf, "1. Code of Conduct",
		"All employees must maintain professional behavior and respect workplace ethics. This includes maintaining confidentiality, avoiding conflicts of interest, and promoting a harassment-free environment.")
	section(pdf, "2. Leave Policy",
		"Employees are entitled to the following leave benefits:",
		"- 20 days of annual leave",
		"- 10 days of sick leave",
		"- 10 days of personal leave")
	table(pdf, []float64{50, 50, 50}, [][]string{
		{"Leave Type", "Days per Year", "Carry Forward"},
		{"Annual", "20", "Up to 5 days"},
		{"Sick", "10", "None"},
		{"Personal", "10", "Up to 5 days"},
	})
	return pdf.OutputFileAndClose(path)
}

func writeTravelPolicy(path string) error {
	pdf := newPolicyPDF("Travel Policy")
	section(pdf, "1. Travel Booking",
		"All business travel must be booked through the company's approved travel portal.")
	section(pdf, "2. Expense Limits",
		"- Hotel: up to $300 per night",
		"- Meals: up to $75 per day",
		"- Transportation: economy class for flights under 6 hours")
	return pdf.OutputFileAndClose(path)
}

func writeCompensationPolicy(path string) error {
	pdf := newPolicyPDF("Compensation Policy")
	section(pdf, "1. Salary Structure",
		"Base salary and bonus ranges are set per level and reviewed annually:")
	table(pdf, []float64{40, 70, 50}, [][]string{
		{"Level", "Base Salary Range", "Bonus Range"},
		{"Entry", "$40,000 - $60,000", "5-10%"},
		{"Mid", "$60,000 - $90,000", "10-15%"},
		{"Senior", "$90,000 - $130,000", "15-20%"},
	})
	return pdf.OutputFileAndClose(path)
}

func writeEmailPolicy(path string) error {
	pdf := newPolicyPDF("Email Communication Policy")
	section(pdf, "1. Email Usage",
		"- Use professional language in all communications",
		"- Include clear subject lines",
		"- Respond to emails within 24 business hours")
	section(pdf, "2. Security",
		"- Never share passwords",
		"- Be cautious with attachments",
		"- Report suspicious emails to IT")
	return pdf.OutputFileAndClose(path)
}

func newPolicyPDF(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetTitle(title, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 22)
	pdf.CellFormat(0, 14, title, "", 1, "C", false, 0, "")
	pdf.Ln(4)
	return pdf
}

func section(pdf *fpdf.Fpdf, heading string, lines ...string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(0, 9, heading, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		pdf.MultiCell(0, 6, line, "", "L", false)
	}
	pdf.Ln(3)
}

// table renders a bordered table whose first row is the shaded header.
func table(pdf *fpdf.Fpdf, widths []float64, rows [][]string) {
	pdf.SetFillColor(220, 220, 220)
	for i, row := range rows {
		if i == 0 {
			pdf.SetFont("Helvetica", "B", 11)
		} else {
			pdf.SetFont("Helvetica", "", 11)
		}
		for j, text := range row {
			pdf.CellFormat(widths[j], 8, text, "1", 0, "L", i == 0, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(3)
}
