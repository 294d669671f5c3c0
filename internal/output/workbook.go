/*
PURPOSE:
  Chooses the workbook and run-report formats from the file extension.

REQUIREMENTS:
  User-specified:
  - Workbook as .ods or .json; report as .csv or .jsonl.

  Implementation-discovered:
  - Unknown workbook extensions are rejected before any file is created.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli (history export)
  - Calls: EncodeODS, EncodeWorkbookJSON, NewCSVWriter, NewJSONWriter

ERROR HANDLING:
  - Wraps file creation and encoding errors with the path.

IMPLEMENTATION RULES:
  - Extension matching is case-insensitive.

USAGE:
  err := output.WriteWorkbook("results.ods", wb, meta)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/output/ods.go
  - internal/output/json.go

MAINTENANCE:
  - Update when adding export formats.
*/

package output

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/daryltucker/encoder-bench/internal/model"
)

// ErrUnsupportedFormat is returned for workbook paths with an unknown extension.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// WorkbookMeta is stamped into exports that can carry it.
type WorkbookMeta struct {
	RunID   string
	Created time.Time
}

// WriteWorkbook serializes wb to path. The format follows the extension:
// .ods (OpenDocument spreadsheet) or .json.
func WriteWorkbook(path string, wb *model.Workbook, meta WorkbookMeta) (err error) {
	var encode func(io.Writer, *model.Workbook, WorkbookMeta) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ods":
		encode = EncodeODS
	case ".json":
		encode = EncodeWorkbookJSON
	default:
		return fmt.Errorf("%w: %s (use .ods or .json)", ErrUnsupportedFormat, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create workbook %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := encode(f, wb, meta); err != nil {
		return fmt.Errorf("failed to write workbook %s: %w", path, err)
	}
	return nil
}

// ReportWriter receives one PairResult per benchmarked pair.
type ReportWriter interface {
	Write(model.PairResult) error
	Close() error
}

// NewReportWriter picks NDJSON for .jsonl/.ndjson/.json paths and CSV otherwise.
func NewReportWriter(path string) (ReportWriter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jsonl", ".ndjson", ".json":
		return NewJSONWriter(path)
	default:
		return NewCSVWriter(path)
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
