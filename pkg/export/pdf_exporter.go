package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

const (
	pageWidth    = 190.0
	rowHeight    = 7.0
	bottomMargin = 20.0
)

// PDFExporter lays the dataset out as an A4 table with a title block. Header
// cells repeat on every page and pages are numbered in the footer.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType is the MIME type of the rendered document.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Render produces the PDF bytes.
func (e *PDFExporter) Render(data Dataset) ([]byte, error) {
	pdf, err := layout(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func layout(data Dataset) (*gofpdf.Fpdf, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(false, bottomMargin)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if data.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, data.Title, "", 1, "C", false, 0, "")
	}
	pdf.SetFont("Arial", "", 10)
	for _, note := range data.Notes {
		pdf.CellFormat(0, 6, note, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	widths := columnWidths(data)
	header := func() {
		pdf.SetFont("Arial", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for i, h := range data.Headers {
			pdf.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	if len(data.Rows) == 0 {
		pdf.CellFormat(pageWidth, rowHeight, "no entries", "1", 1, "C", false, 0, "")
	}
	for _, row := range data.Rows {
		if pdf.GetY()+rowHeight > pageHeight-bottomMargin {
			pdf.AddPage()
			header()
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], rowHeight, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf, pdf.Error()
}

// columnWidths splits the page width in proportion to the longest cell of
// each column, with a floor so short columns stay readable.
func columnWidths(data Dataset) []float64 {
	longest := make([]int, len(data.Headers))
	for i, h := range data.Headers {
		longest[i] = utf8.RuneCountInString(h)
	}
	for _, row := range data.Rows {
		for i, cell := range row {
			if n := utf8.RuneCountInString(cell); n > longest[i] {
				longest[i] = n
			}
		}
	}

	total := 0
	for i := range longest {
		if longest[i] < 6 {
			longest[i] = 6
		}
		total += longest[i]
	}
	widths := make([]float64, len(longest))
	for i, n := range longest {
		widths[i] = pageWidth * float64(n) / float64(total)
	}
	return widths
}
