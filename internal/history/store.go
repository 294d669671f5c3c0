/*
PURPOSE:
  Keeps every ingested sheet of every run in a local SQLite database so
  results can be compared across invocations and re-exported later.

REQUIREMENTS:
  User-specified:
  - Optional; enabled with --history-db.

  Implementation-discovered:
  - Cells keep their numeric/text kind; NaN has no SQLite REAL form and is
    stored as a NULL number with the numeric kind.
  - Runs are keyed by a UUID generated per invocation.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine (writes), internal/cli history (reads)
  - Consumes/produces: internal/model.Sheet

ERROR HANDLING:
  - All errors are wrapped with the operation that failed.

IMPLEMENTATION RULES:
  - One connection; SQLite allows a single writer.
  - Each sheet is written in one transaction.

USAGE:
  s, err := history.Open("bench-history.db")
  defer s.Close()

  ro, err := history.OpenReadOnly("bench-history.db") // listing, export

SELF-HEALING INSTRUCTIONS:
  - Schema changes go in schema.sql and must stay idempotent.

RELATED FILES:
  - internal/history/schema.sql

MAINTENANCE:
  - None.
*/

package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/daryltucker/encoder-bench/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// ErrRunNotFound is returned when a run ID is not in the database.
var ErrRunNotFound = errors.New("run not found")

// Store provides durable storage for benchmark sheets.
type Store struct {
	db *sql.DB
}

// Run describes one invocation.
type Run struct {
	ID        string
	Tag       string
	StartedAt time.Time
	Limit     int
	Runs      int
	Threads   int
}

// RunSummary is a Run plus the number of stored sheets.
type RunSummary struct {
	Run
	Sheets int
}

// SheetMeta identifies the pair a sheet came from.
type SheetMeta struct {
	Input   string
	Encoder string
	Family  string
	Version string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenReadOnly opens an existing database without creating, migrating or
// writing to it.
func OpenReadOnly(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", path, err)
	}

	dsn := "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=ro"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun records a new run.
func (s *Store) BeginRun(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, tag, started_at, limit_frames, runs, threads) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Tag, r.StartedAt.UTC().Format(time.RFC3339Nano), r.Limit, r.Runs, r.Threads)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.ID, err)
	}
	return nil
}

// AddSheet stores sheet as the seq-th sheet of run runID.
func (s *Store) AddSheet(ctx context.Context, runID string, seq int, meta SheetMeta, sheet *model.Sheet) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO sheets (run_id, seq, name, input, encoder, family, version) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, sheet.Name, meta.Input, meta.Encoder, meta.Family, meta.Version); err != nil {
		return fmt.Errorf("failed to store sheet %s: %w", sheet.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO cells (run_id, seq, row_idx, col_idx, kind, num, txt) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare cell insert: %w", err)
	}
	defer stmt.Close()

	for r, row := range sheet.Rows {
		for c, cell := range row {
			var num sql.NullFloat64
			var txt sql.NullString
			if cell.Kind == model.Numeric {
				num = sql.NullFloat64{Float64: cell.Number, Valid: !math.IsNaN(cell.Number)}
			} else {
				txt = sql.NullString{String: cell.Text, Valid: true}
			}
			if _, err = stmt.ExecContext(ctx, runID, seq, r, c, int(cell.Kind), num, txt); err != nil {
				return fmt.Errorf("failed to store cell (%d,%d) of %s: %w", r, c, sheet.Name, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sheet %s: %w", sheet.Name, err)
	}
	return nil
}

// Runs lists stored runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.tag, r.started_at, r.limit_frames, r.runs, r.threads, COUNT(s.seq)
		FROM runs r LEFT JOIN sheets s ON s.run_id = r.id
		GROUP BY r.id
		ORDER BY r.started_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var started string
		if err := rows.Scan(&rs.ID, &rs.Tag, &started, &rs.Limit, &rs.Runs, &rs.Threads, &rs.Sheets); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if rs.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("bad timestamp on run %s: %w", rs.ID, err)
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}

// Workbook rebuilds the workbook of run runID in its original sheet order.
func (s *Store) Workbook(ctx context.Context, runID string) (*model.Workbook, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.seq, s.name, c.row_idx, c.col_idx, c.kind, c.num, c.txt
		FROM sheets s LEFT JOIN cells c ON c.run_id = s.run_id AND c.seq = s.seq
		WHERE s.run_id = ?
		ORDER BY s.seq, c.row_idx, c.col_idx`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	defer rows.Close()

	wb := model.NewWorkbook()
	var cur *model.Sheet
	curSeq := -1
	for rows.Next() {
		var (
			seq      int
			name     string
			row, col sql.NullInt64
			kind     sql.NullInt64
			num      sql.NullFloat64
			txt      sql.NullString
		)
		if err := rows.Scan(&seq, &name, &row, &col, &kind, &num, &txt); err != nil {
			return nil, fmt.Errorf("failed to scan cell: %w", err)
		}
		if seq != curSeq {
			cur = model.NewSheet(name)
			wb.Append(cur)
			curSeq = seq
		}
		if !row.Valid {
			continue // sheet without cells
		}
		cell := model.TextCell(txt.String)
		if model.CellKind(kind.Int64) == model.Numeric {
			cell = model.NumberCell(math.NaN())
			if num.Valid {
				cell = model.NumberCell(num.Float64)
			}
		}
		cur.Set(int(row.Int64), int(col.Int64), cell)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return wb, nil
}
