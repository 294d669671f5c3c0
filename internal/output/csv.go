/*
PURPOSE:
  Reads hyperfine CSV exports into workbook sheets, and writes the
  per-pair run report as CSV.

REQUIREMENTS:
  User-specified:
  - Keep the header row. Row/column order mirrors the file exactly.
  - Numeric cells where the text parses as a float, text otherwise.
  - Keep the report file handle open and flush after every row.

  Implementation-discovered:
  - hyperfine adds parameter_<name> columns; rows may differ in width
    across versions, so field counts are not enforced.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Produces: internal/model.Sheet
  - Consumes: internal/model.PairResult

ERROR HANDLING:
  - Returns error on open, parse, create or write failure.

IMPLEMENTATION RULES:
  - Use encoding/csv.
  - Flush() after every report write (critical for crash resilience).

USAGE:
  sheet, err := output.ReadSheet("bench-aom-3.6.0-speed-levels-clip-l10.csv", name)
  w, err := output.NewCSVWriter("report.csv")

SELF-HEALING INSTRUCTIONS:
  - If the report format changes, update header and record conversion.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update Write() mapping when PairResult changes.
*/

package output

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/daryltucker/encoder-bench/internal/model"
)

// ReadSheet parses the CSV file at path into a sheet called name.
func ReadSheet(path, name string) (*model.Sheet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results %s: %w", path, err)
	}
	defer f.Close()

	s, err := ParseSheet(f, name)
	if err != nil {
		return nil, fmt.Errorf("failed to parse results %s: %w", path, err)
	}
	return s, nil
}

// ParseSheet reads every CSV record from r, the header included.
func ParseSheet(r io.Reader, name string) (*model.Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	s := model.NewSheet(name)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		row := make([]model.Cell, len(record))
		for i, field := range record {
			row[i] = model.ParseCell(field)
		}
		s.AppendRow(row)
	}
	return s, nil
}

// CSVWriter handles writing pair results to a CSV report.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates a new CSVWriter.
// It overwrites the file if it exists.
func NewCSVWriter(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)

	header := []string{
		"run_id", "timestamp", "input", "encoder", "family", "version",
		"sheet", "rows", "duration_s", "csv_path", "command", "error",
	}
	if err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()

	return &CSVWriter{
		file:   f,
		writer: w,
	}, nil
}

// Write writes a single result to the CSV file.
// It is thread-safe.
func (cw *CSVWriter) Write(r model.PairResult) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	record := []string{
		r.RunID,
		r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		r.Input,
		r.Encoder,
		r.Family,
		r.Version,
		r.Sheet,
		strconv.Itoa(r.Rows),
		fmt.Sprintf("%.4f", r.Duration.Seconds()),
		r.CSVPath,
		r.Command,
		r.Error,
	}

	if err := cw.writer.Write(record); err != nil {
		return err
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close closes the underlying file.
func (cw *CSVWriter) Close() error {
	cw.writer.Flush()
	return cw.file.Close()
}
