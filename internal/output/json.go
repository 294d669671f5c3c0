/*
PURPOSE:
  Writes pair results to a JSON Lines report (NDJSON) and whole workbooks
  to a single JSON document.

REQUIREMENTS:
  User-specified:
  - JSON output for easier parsing.

  Implementation-discovered:
  - JSON Lines is better for streaming/logging than a single large array (append-friendly).
  - Workbook JSON keeps numeric cells as numbers and text cells as strings.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: internal/model.PairResult, internal/model.Workbook

ERROR HANDLING:
  - Returns error on file creation or write failure.

IMPLEMENTATION RULES:
  - Use encoding/json.NewEncoder.
  - Thread-safe.

USAGE:
  w, err := output.NewJSONWriter("report.jsonl")
  w.Write(result)
  w.Close()

SELF-HEALING INSTRUCTIONS:
  - None specific.

RELATED FILES:
  - internal/model/types.go

MAINTENANCE:
  - Update if we switch to plain JSON array (not recommended for streaming).
*/

package output

import (
	"encoding/json"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/daryltucker/encoder-bench/internal/model"
)

// JSONWriter handles writing results to a JSON Lines file.
type JSONWriter struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates a new JSONWriter.
func NewJSONWriter(path string) (*JSONWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	return &JSONWriter{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// Write writes a single result as a JSON line.
func (jw *JSONWriter) Write(r model.PairResult) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	return jw.encoder.Encode(r)
}

// Close closes the underlying file.
func (jw *JSONWriter) Close() error {
	return jw.file.Close()
}

type workbookDoc struct {
	RunID   string     `json:"run_id,omitempty"`
	Created time.Time  `json:"created"`
	Sheets  []sheetDoc `json:"sheets"`
}

type sheetDoc struct {
	Name string  `json:"name"`
	Rows [][]any `json:"rows"`
}

// EncodeWorkbookJSON writes wb as one indented JSON document.
// Non-finite numbers have no JSON form and are written as strings.
func EncodeWorkbookJSON(w io.Writer, wb *model.Workbook, meta WorkbookMeta) error {
	doc := workbookDoc{RunID: meta.RunID, Created: meta.Created, Sheets: []sheetDoc{}}
	for _, s := range wb.Sheets() {
		sd := sheetDoc{Name: s.Name, Rows: make([][]any, 0, len(s.Rows))}
		for _, row := range s.Rows {
			vals := make([]any, len(row))
			for i, c := range row {
				vals[i] = jsonValue(c)
			}
			sd.Rows = append(sd.Rows, vals)
		}
		doc.Sheets = append(doc.Sheets, sd)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func jsonValue(c model.Cell) any {
	if c.Kind != model.Numeric {
		return c.Text
	}
	if math.IsInf(c.Number, 0) || math.IsNaN(c.Number) {
		return formatNumber(c.Number)
	}
	return c.Number
}
