// Package analysis periodically summarizes buffer depth and store
// write-churn into CSV files, adapted from the teacher's
// analysis.BufferAnalyzer and analysis.PerfAnalyzer. It is metrics and
// observability, not run-history persistence, so it stays in scope even
// though disk-backed run-history (the teacher's SQLite-backed
// PerfAnalyzerBackend) is dropped.
package analysis

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/desimio/desim/sim"
)

// PerfEntry is one summarized data point: the average value of some
// observable quantity over [Start, End).
type PerfEntry struct {
	Start     sim.SimTime
	End       sim.SimTime
	Where     string
	What      string
	EntryType string
	Value     float64
	Unit      string
}

// PerfLogger receives summarized data points from an analyzer and
// persists them somewhere - a CSV file today, grounded on the teacher's
// CSVBackend; nothing else in this package depends on the storage format.
type PerfLogger interface {
	AddDataEntry(entry PerfEntry)
	Flush()
}

// CSVBackend writes every PerfEntry to a CSV file, one row per entry,
// adapted from the teacher's analysis.CSVBackend with the SQLite-backed
// alternative dropped (see DESIGN.md).
type CSVBackend struct {
	file   *os.File
	writer *csv.Writer
}

// NewCSVBackend creates a CSVBackend writing to path, truncating any
// existing file and writing the header row immediately.
func NewCSVBackend(path string) (*CSVBackend, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("analysis: open %s: %w", path, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"start", "end", "where", "what", "entry_type", "value", "unit"}); err != nil {
		f.Close()
		return nil, fmt.Errorf("analysis: write header: %w", err)
	}

	return &CSVBackend{file: f, writer: w}, nil
}

// AddDataEntry appends one row for entry. A write error panics, matching
// the teacher's CSVBackend - a failing perf sink mid-run is a
// configuration bug, not a recoverable runtime condition.
func (b *CSVBackend) AddDataEntry(entry PerfEntry) {
	err := b.writer.Write([]string{
		fmt.Sprintf("%d", entry.Start),
		fmt.Sprintf("%d", entry.End),
		entry.Where,
		entry.What,
		entry.EntryType,
		fmt.Sprintf("%.6f", entry.Value),
		entry.Unit,
	})
	if err != nil {
		panic(err)
	}
}

// Flush flushes the underlying CSV writer and closes the file.
func (b *CSVBackend) Flush() {
	b.writer.Flush()
	b.file.Close()
}
