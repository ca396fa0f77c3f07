// Package export renders extraction results as plain text and as an XLSX
// workbook with one row per document.
package export

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/a3tai/mcp-perfil-reader/internal/pdf"
)

// Sheet is the name of the worksheet holding the results.
const Sheet = "Perfiles"

const (
	colFile  = "Archivo"
	colFound = "Campos encontrados"
	colError = "Error"
)

// Workbook accumulates one row per document. Columns are the file name,
// one column per field in the given order, the found count and an error.
type Workbook struct {
	f      *excelize.File
	fields []string
	row    int
}

// NewWorkbook creates a workbook with its header row written.
func NewWorkbook(fields []string) (*Workbook, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("no fields to export")
	}

	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), Sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	wb := &Workbook{f: f, fields: fields, row: 1}
	headers := make([]any, 0, len(fields)+3)
	headers = append(headers, colFile)
	for _, name := range fields {
		headers = append(headers, name)
	}
	headers = append(headers, colFound, colError)
	if err := wb.writeRow(headers); err != nil {
		f.Close()
		return nil, err
	}

	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(Sheet, "A", "A", 36)
	_ = f.SetColWidth(Sheet, "B", last, 24)
	_ = f.SetPanes(Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
	return wb, nil
}

// Add appends the row of a successful extraction.
func (wb *Workbook) Add(r *pdf.ExtractResult) error {
	values := make([]any, 0, len(wb.fields)+3)
	values = append(values, r.Filename)
	for _, name := range wb.fields {
		values = append(values, r.ExtractedData[name])
	}
	values = append(values, r.FieldsFound, "")
	return wb.writeRow(values)
}

// AddFailure appends a row for a document that could not be processed.
func (wb *Workbook) AddFailure(filename string, err error) error {
	values := make([]any, len(wb.fields)+3)
	values[0] = filename
	for i := 1; i <= len(wb.fields); i++ {
		values[i] = ""
	}
	values[len(values)-2] = 0
	values[len(values)-1] = err.Error()
	return wb.writeRow(values)
}

// Rows returns the number of data rows written so far.
func (wb *Workbook) Rows() int {
	return wb.row - 2
}

func (wb *Workbook) writeRow(values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, wb.row)
	if err != nil {
		return err
	}
	if err := wb.f.SetSheetRow(Sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", wb.row, err)
	}
	wb.row++
	return nil
}

// SaveAs writes the workbook to path.
func (wb *Workbook) SaveAs(path string) error {
	if err := wb.f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

// Bytes returns the encoded workbook.
func (wb *Workbook) Bytes() ([]byte, error) {
	buf, err := wb.f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// Close releases the workbook's temporary resources.
func (wb *Workbook) Close() error {
	return wb.f.Close()
}

// WriteText writes a human readable rendering of r with fields in the
// given order. Fields holding a default are marked as such.
func WriteText(w io.Writer, r *pdf.ExtractResult, fields []string) error {
	defaulted := make(map[string]bool, len(r.Defaulted))
	for _, name := range r.Defaulted {
		defaulted[name] = true
	}

	width := 0
	for _, name := range fields {
		width = max(width, len(name))
	}

	var b bytes.Buffer
	fmt.Fprintf(&b, "Archivo: %s\n", r.Filename)
	fmt.Fprintf(&b, "Campos encontrados: %d/%d\n\n", r.FieldsFound, r.TotalFields)
	for _, name := range fields {
		value := r.ExtractedData[name]
		switch {
		case value == "":
			value = "-"
		case defaulted[name]:
			value += " (default)"
		}
		fmt.Fprintf(&b, "  %-*s  %s\n", width, name, value)
	}

	m := r.Metadata
	fmt.Fprintf(&b, "\nAcquisition: %s", m.Mode)
	if m.FallbackTriggered {
		b.WriteString(" (OCR fallback)")
	}
	fmt.Fprintf(&b, ", %d page(s), %d embedded chars, %d image(s), %d OCR call(s)",
		m.Pages, m.EmbeddedChars, m.Images, m.OCRInvocations)
	var notes []string
	if m.FormFields > 0 {
		notes = append(notes, fmt.Sprintf("%d form field(s)", m.FormFields))
	}
	if m.PageErrors > 0 {
		notes = append(notes, fmt.Sprintf("%d unreadable page(s)", m.PageErrors))
	}
	if m.ImageErrors > 0 {
		notes = append(notes, fmt.Sprintf("%d undecodable image(s)", m.ImageErrors))
	}
	if m.OCRFailures > 0 {
		notes = append(notes, fmt.Sprintf("%d OCR failure(s)", m.OCRFailures))
	}
	if m.TimedOut {
		notes = append(notes, "timed out")
	}
	if len(notes) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(notes, ", "))
	}
	fmt.Fprintf(&b, ", %d ms\n", m.ProcessingMS)

	_, err := w.Write(b.Bytes())
	return err
}
