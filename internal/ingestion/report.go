package ingestion

import (
	"time"
)

// RowError records why one row (or the whole source) was not ingested
type RowError struct {
	RowIndex int    `json:"row_index"` // 0 for source-level failures
	Reason   string `json:"reason"`
}

// Report summarizes one ingestion run over a single source. It is
// returned to the caller and not persisted beyond the run.
type Report struct {
	SourceName  string     `json:"source_name"`
	RowsRead    int        `json:"rows_read"`
	RowsWritten int        `json:"rows_written"`
	RowsSkipped int        `json:"rows_skipped"`
	Errors      []RowError `json:"errors"`
	StartedAt   time.Time  `json:"started_at"`
	Duration    string     `json:"duration"`
}

// NewReport creates an empty report for a source
func NewReport(sourceName string) *Report {
	return &Report{
		SourceName: sourceName,
		Errors:     []RowError{},
		StartedAt:  time.Now(),
	}
}

// RecordRowError marks one row as skipped and remembers why
func (r *Report) RecordRowError(rowIndex int, reason string) {
	r.RowsSkipped++
	r.Errors = append(r.Errors, RowError{RowIndex: rowIndex, Reason: reason})
}

// RecordSourceFailure records a source-level failure (missing file,
// missing header). The report is still produced: rows_read stays 0 and
// one error entry carries the reason.
func (r *Report) RecordSourceFailure(err error) {
	r.Errors = append(r.Errors, RowError{RowIndex: 0, Reason: err.Error()})
}

// Finish stamps the run duration
func (r *Report) Finish() {
	r.Duration = time.Since(r.StartedAt).Round(time.Millisecond).String()
}
