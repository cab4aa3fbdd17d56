// Package ingest reads CSV files into tables and stores uploaded files.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/chatdata/internal/apperrors"
	"github.com/hyperjump/chatdata/internal/models"
)

// DefaultPreviewRows is the preview size used when no positive limit is given.
const DefaultPreviewRows = 5

const utf8BOM = "\ufeff"

// Parse reads every record of r. The first record is the header row; data rows
// are aligned to it positionally, padding missing cells with "" and dropping
// extra cells. Empty lines and rows that fail to parse are skipped.
func Parse(r io.Reader) (*models.Table, error) {
	return read(r, -1)
}

// Preview reads the header row and at most limit data rows, then stops
// reading. A limit of zero or less means DefaultPreviewRows.
func Preview(r io.Reader, limit int) (*models.Table, error) {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	return read(r, limit)
}

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

func read(r io.Reader, limit int) (*models.Table, error) {
	cr := newReader(r)
	table := models.EmptyTable()

	header, err := nextRecord(cr)
	if errors.Is(err, io.EOF) {
		return table, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %w", apperrors.ErrIngestionFailed, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	table.Headers = header

	for limit < 0 || len(table.Rows) < limit {
		rec, err := nextRecord(cr)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read row %d: %w", apperrors.ErrIngestionFailed, len(table.Rows)+1, err)
		}
		table.Rows = append(table.Rows, align(rec, len(header)))
	}
	return table, nil
}

// nextRecord returns the next well-formed record, skipping malformed ones.
func nextRecord(cr *csv.Reader) ([]string, error) {
	for {
		rec, err := cr.Read()
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			continue
		}
		return rec, err
	}
}

func align(rec []string, width int) []string {
	row := make([]string, width)
	copy(row, rec)
	return row
}

// Loader reads CSV files from disk. Failures degrade to an empty table and
// are logged, never returned.
type Loader struct {
	logger *zap.Logger
}

// NewLoader returns a Loader that logs failures to logger.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger.Named("ingest")}
}

// ParseFile parses the whole file at path.
func (l *Loader) ParseFile(path string) *models.Table {
	return l.load(path, -1)
}

// PreviewFile returns the header and the first limit rows of the file at path.
func (l *Loader) PreviewFile(path string, limit int) *models.Table {
	if limit <= 0 {
		limit = DefaultPreviewRows
	}
	return l.load(path, limit)
}

func (l *Loader) load(path string, limit int) *models.Table {
	f, err := os.Open(path)
	if err != nil {
		l.logger.Warn("Failed to open CSV file", zap.String("path", path), zap.Error(err))
		return models.EmptyTable()
	}
	defer f.Close()

	table, err := read(f, limit)
	if err != nil {
		l.logger.Warn("Failed to parse CSV file", zap.String("path", path), zap.Error(err))
		return models.EmptyTable()
	}
	return table
}
