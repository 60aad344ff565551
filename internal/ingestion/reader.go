package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
)

var (
	// ErrSourceUnavailable is returned when a source file is missing or
	// unreadable. Reported in the run report, never fatal: one missing
	// file must not abort ingestion of the remaining sources.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMissingHeader is returned when a source file has no header row.
	ErrMissingHeader = errors.New("missing header row")
)

// Row is one data row of a delimited source, with values keyed by the
// column names from the header row.
type Row struct {
	Index  int // 1-based data row index, excluding the header
	Fields map[string]string
}

// SourceReader streams rows from a delimited file with a header row.
// Single forward pass: the sequence is finite and not restartable.
// Columns are read by name, so column order is irrelevant and extra
// columns are ignored downstream.
type SourceReader struct {
	path     string
	file     *os.File
	csv      *csv.Reader
	header   []string
	rowIndex int
	logger   *pterm.Logger
}

// NewSourceReader opens the file and reads the header row.
// Returns ErrSourceUnavailable if the file cannot be opened and
// ErrMissingHeader if the file is empty.
func NewSourceReader(path string, delimiter rune, logger *pterm.Logger) (*SourceReader, error) {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("Source file not readable",
			logger.Args("path", path, "error", err))
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	// Tolerate ragged rows; short rows simply leave columns unset
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		file.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrMissingHeader, path, err)
	}

	// Strip UTF-8 BOM that Excel-exported CSVs carry on the first header cell
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	logger.Debug("Opened source file",
		logger.Args("path", path, "columns", len(header)))

	return &SourceReader{
		path:   path,
		file:   file,
		csv:    reader,
		header: header,
		logger: logger,
	}, nil
}

// Next returns the next data row, or io.EOF when the file is exhausted.
// A malformed row (e.g. unbalanced quotes) returns a non-EOF error; the
// caller records it and continues with the next row.
func (r *SourceReader) Next() (*Row, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.rowIndex++
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r.rowIndex, err)
	}

	fields := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if name == "" {
			continue
		}
		if i < len(record) {
			fields[name] = strings.TrimSpace(record[i])
		}
	}
	// Cells beyond the header are ignored

	return &Row{Index: r.rowIndex, Fields: fields}, nil
}

// Header returns the column names read from the header row.
func (r *SourceReader) Header() []string {
	return r.header
}

// Close releases the underlying file.
func (r *SourceReader) Close() error {
	return r.file.Close()
}
