/*
PURPOSE:
  Defines the core data structures used throughout Encoder Bench.
  These models represent ingested benchmark tables and per-pair outcomes.

REQUIREMENTS:
  User-specified:
  - One sheet per (input, encoder) pair, collected into a single workbook.
  - Cells are numeric when the text parses as a float, textual otherwise.

  Implementation-discovered:
  - The hyperfine header row is kept as ordinary row 0.
  - Need JSON tags on PairResult for the run report.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/output, internal/history
  - Shared across boundaries.

ERROR HANDLING:
  - None (pure data structs).

IMPLEMENTATION RULES:
  - Keep structs simple and public.
  - Workbook is append-only. Never remove or reorder sheets.

USAGE:
  wb := model.NewWorkbook()
  wb.Append(sheet)

SELF-HEALING INSTRUCTIONS:
  - If a new cell type is needed, add a CellKind and update the exporters.

RELATED FILES:
  - internal/output/csv.go
  - internal/output/ods.go

MAINTENANCE:
  - Update when adding new per-pair metadata.
*/

package model

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// CellKind tags the value held by a Cell.
type CellKind int

const (
	Text CellKind = iota
	Numeric
)

func (k CellKind) String() string {
	if k == Numeric {
		return "numeric"
	}
	return "text"
}

// Cell is a single workbook value.
type Cell struct {
	Kind   CellKind
	Number float64
	Text   string
}

// NumberCell returns a Numeric cell.
func NumberCell(v float64) Cell {
	return Cell{Kind: Numeric, Number: v}
}

// TextCell returns a Text cell holding s verbatim.
func TextCell(s string) Cell {
	return Cell{Kind: Text, Text: s}
}

// ParseCell coerces raw text into a cell. The text is numeric iff it is a
// decimal float literal (or inf/nan); out-of-range literals still count and
// saturate to Inf. Hexadecimal literals stay text. Nothing is trimmed.
func ParseCell(raw string) Cell {
	if isHexLiteral(raw) {
		return TextCell(raw)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return NumberCell(v)
	}
	return TextCell(raw)
}

// isHexLiteral reports a 0x/0X prefix after an optional sign.
func isHexLiteral(raw string) bool {
	s := strings.TrimLeft(raw, "+-")
	if len(raw)-len(s) > 1 {
		return false
	}
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// Sheet is one 2-D table of results for one (input, encoder) pair.
type Sheet struct {
	Name string
	Rows [][]Cell
}

// NewSheet creates an empty sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{Name: name}
}

// AppendRow adds a row after the last one.
func (s *Sheet) AppendRow(row []Cell) {
	s.Rows = append(s.Rows, row)
}

// Set stores c at (row, col), growing the grid with empty text cells as needed.
func (s *Sheet) Set(row, col int, c Cell) {
	for len(s.Rows) <= row {
		s.Rows = append(s.Rows, nil)
	}
	for len(s.Rows[row]) <= col {
		s.Rows[row] = append(s.Rows[row], Cell{})
	}
	s.Rows[row][col] = c
}

// Cell returns the cell at (row, col) and whether it exists.
func (s *Sheet) Cell(row, col int) (Cell, bool) {
	if row < 0 || row >= len(s.Rows) || col < 0 || col >= len(s.Rows[row]) {
		return Cell{}, false
	}
	return s.Rows[row][col], true
}

// Width returns the length of the longest row.
func (s *Sheet) Width() int {
	w := 0
	for _, r := range s.Rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}

// Workbook is the ordered collection of all sheets produced by one run.
type Workbook struct {
	sheets []*Sheet
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{}
}

// Append adds s after every previously appended sheet. No deduplication.
func (w *Workbook) Append(s *Sheet) {
	w.sheets = append(w.sheets, s)
}

// Sheets returns the sheets in append order.
func (w *Workbook) Sheets() []*Sheet {
	out := make([]*Sheet, len(w.sheets))
	copy(out, w.sheets)
	return out
}

// Len returns the number of sheets.
func (w *Workbook) Len() int {
	return len(w.sheets)
}

// Names returns the sheet names in append order.
func (w *Workbook) Names() []string {
	names := make([]string, 0, len(w.sheets))
	for _, s := range w.sheets {
		names = append(names, s.Name)
	}
	return names
}

// PairResult represents the outcome of benchmarking one encoder against one input.
type PairResult struct {
	RunID     string        `json:"run_id"`
	Input     string        `json:"input"`
	Encoder   string        `json:"encoder"`
	Family    string        `json:"family,omitempty"`
	Version   string        `json:"version,omitempty"`
	Sheet     string        `json:"sheet,omitempty"`
	Command   string        `json:"command,omitempty"`
	CSVPath   string        `json:"csv_path,omitempty"`
	Rows      int           `json:"rows"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"` // If the pair failed
}

// OK reports whether the pair completed.
func (r PairResult) OK() bool {
	return r.Error == ""
}
