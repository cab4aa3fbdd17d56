package chart

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/chatdata/internal/models"
	"github.com/hyperjump/chatdata/internal/vizspec"
)

// Format is a table export format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// ParseFormat validates a format name. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// FromSpec converts a table spec to string cells.
func FromSpec(t *vizspec.Table) *models.Table {
	out := &models.Table{
		Headers: append([]string(nil), t.Headers...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, cell := range row {
			cells[j] = Label(cell)
		}
		out.Rows[i] = cells
	}
	return out
}

// FromChart flattens chart rows into a table: the x axis column followed by
// the series columns, or the y axis column when there are no series.
func FromChart(c *vizspec.Chart) *models.Table {
	r := c.Resolved()
	cols := []string{r.XAxis}
	if len(r.Series) > 0 {
		cols = append(cols, r.Series...)
	} else {
		cols = append(cols, r.YAxis)
	}
	out := &models.Table{Headers: cols, Rows: make([][]string, len(r.Data))}
	for i, row := range r.Data {
		cells := make([]string, len(cols))
		for j, col := range cols {
			cells[j] = Label(row[col])
		}
		out.Rows[i] = cells
	}
	return out
}

// FromVisualization converts either spec shape to a table.
func FromVisualization(spec *vizspec.Spec) (*models.Table, error) {
	switch {
	case spec == nil:
		return nil, ErrNotTable
	case spec.Kind == vizspec.KindTable && spec.Table != nil:
		return FromSpec(spec.Table), nil
	case spec.Kind == vizspec.KindChart && spec.Chart != nil:
		return FromChart(spec.Chart), nil
	}
	return nil, ErrNotTable
}

// Write exports t in the given format.
func Write(w io.Writer, t *models.Table, format Format, sheet string) error {
	if format == FormatXLSX {
		return WriteXLSX(w, t, sheet)
	}
	return WriteCSV(w, t)
}

// WriteCSV writes the header row and data rows as RFC 4180 CSV. Cells
// containing commas, quotes or line breaks are quoted, so ReadCSV gets back
// the same cells. Line breaks inside cells are written as LF, since CSV
// readers fold CRLF inside quoted fields to LF.
func WriteCSV(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if err := writeCSVRecord(w, cw, t.Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range t.Rows {
		if err := writeCSVRecord(w, cw, row); err != nil {
			return fmt.Errorf("write rows: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

var lineBreaks = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// writeCSVRecord writes one record. A record holding a single empty cell is
// written as "" because csv.Writer emits a blank line for it, which readers skip.
func writeCSVRecord(w io.Writer, cw *csv.Writer, record []string) error {
	if len(record) == 1 && record[0] == "" {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
		_, err := io.WriteString(w, "\"\"\n")
		return err
	}
	cells := make([]string, len(record))
	for i, cell := range record {
		cells[i] = lineBreaks.Replace(cell)
	}
	return cw.Write(cells)
}

// ReadCSV reads a table written by WriteCSV.
func ReadCSV(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return models.EmptyTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if rows == nil {
		rows = [][]string{}
	}
	return &models.Table{Headers: header, Rows: rows}, nil
}

// WriteXLSX writes t as a single-sheet workbook with a bold header row.
func WriteXLSX(w io.Writer, t *models.Table, sheet string) error {
	if sheet == "" {
		sheet = "Sheet1"
	}
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for col, h := range t.Headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetCellStr(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// ReadXLSX reads the first sheet of a workbook written by WriteXLSX.
func ReadXLSX(r io.Reader) (*models.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.EmptyTable(), nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return models.EmptyTable(), nil
	}
	out := &models.Table{Headers: rows[0], Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		cells := make([]string, len(out.Headers))
		copy(cells, row)
		out.Rows = append(out.Rows, cells)
	}
	return out, nil
}
