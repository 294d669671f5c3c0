/*
PURPOSE:
  High-level runner that orchestrates the benchmarking process.
  Loops through inputs -> encoders and runs one hyperfine sweep per pair.

REQUIREMENTS:
  User-specified:
  - Probe, synthesize, name, sweep, ingest, append. For every pair.
  - Strictly sequential: hyperfine must never run concurrently.
  - Export the aggregate workbook when requested.

  Implementation-discovered:
  - Needs to report progress to CLI.
  - Default policy stops at the first failure; --keep-going records the
    failure and moves on to the next pair.

ARCHITECTURE INTEGRATION:
  - Called by: internal/cli
  - Uses: internal/encoder, internal/naming, internal/hyperfine,
    internal/output, internal/history

ERROR HANDLING:
  - Naming preconditions (no stem, name collision) always abort.
  - Other pair failures abort unless KeepGoing; then they are joined and
    returned after the workbook is exported.
  - Report and history write failures are logged, never fatal.

IMPLEMENTATION RULES:
  - Iterate inputs in order; for each input iterate encoders in order.
  - Collaborators are interfaces so the loop can be tested without binaries.

USAGE:
  res, err := engine.Run(ctx, cfg, inputs)

  r := engine.New(cfg)
  r.Driver = myDriver
  res, err := r.Run(ctx, inputs)

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/engine/pair.go

MAINTENANCE:
  - Do not introduce parallelism here; timings would contend for the CPU.
*/

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/daryltucker/encoder-bench/internal/config"
	"github.com/daryltucker/encoder-bench/internal/encoder"
	"github.com/daryltucker/encoder-bench/internal/history"
	"github.com/daryltucker/encoder-bench/internal/hyperfine"
	"github.com/daryltucker/encoder-bench/internal/model"
	"github.com/daryltucker/encoder-bench/internal/naming"
	"github.com/daryltucker/encoder-bench/internal/output"
)

// Prober identifies encoder binaries.
type Prober interface {
	Probe(ctx context.Context, path string) (encoder.Version, error)
	SupportsOverwrite(ctx context.Context, path string) (bool, error)
}

// SweepDriver runs one benchmark sweep.
type SweepDriver interface {
	Run(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error)
}

// SheetStore persists ingested sheets.
type SheetStore interface {
	BeginRun(ctx context.Context, r history.Run) error
	AddSheet(ctx context.Context, runID string, seq int, meta history.SheetMeta, s *model.Sheet) error
}

// Runner executes the benchmark matrix.
type Runner struct {
	Config  *config.Config
	Prober  Prober
	Driver  SweepDriver
	Report  output.ReportWriter // optional
	History SheetStore          // optional
	RunID   string
	Now     func() time.Time
}

// Result is everything a run produced.
type Result struct {
	RunID    string
	Workbook *model.Workbook
	Pairs    []model.PairResult
}

// Failed returns the pairs that did not complete.
func (r *Result) Failed() []model.PairResult {
	var out []model.PairResult
	for _, p := range r.Pairs {
		if !p.OK() {
			out = append(out, p)
		}
	}
	return out
}

// New creates a Runner wired to real subprocesses.
func New(cfg *config.Config) *Runner {
	d := hyperfine.New(cfg.Hyperfine, cfg.Runs)
	d.ShowOutput = cfg.ShowOutput
	d.ExportJSON = cfg.ExportJSON

	return &Runner{
		Config: cfg,
		Prober: encoder.NewProber(encoder.ExecRunner{}),
		Driver: d,
		RunID:  uuid.NewString(),
		Now:    time.Now,
	}
}

// Run executes the full benchmark matrix described by cfg over inputs
// using real encoder and hyperfine subprocesses.
func Run(ctx context.Context, cfg *config.Config, inputs []string) (*Result, error) {
	return New(cfg).Run(ctx, inputs)
}

// Run prepares the output directories, opens the optional report and
// history sinks, runs the matrix and exports the workbook.
func (r *Runner) Run(ctx context.Context, inputs []string) (*Result, error) {
	cfg := r.Config
	for _, dir := range []*string{&cfg.OutputDir, &cfg.ResultsDir} {
		expanded, err := config.ExpandHome(*dir)
		if err != nil {
			return nil, err
		}
		*dir = expanded
	}

	// Ensure output directories exist
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory %s: %w", cfg.OutputDir, err)
	}
	if cfg.ResultsDir != "" {
		if err := os.MkdirAll(cfg.ResultsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create results directory %s: %w", cfg.ResultsDir, err)
		}
	}

	if r.Report == nil && cfg.Report != "" {
		rw, err := output.NewReportWriter(cfg.Report)
		if err != nil {
			return nil, fmt.Errorf("failed to init report writer at %s: %w", cfg.Report, err)
		}
		defer rw.Close()
		r.Report = rw
	}

	if r.History == nil && cfg.HistoryDB != "" {
		store, err := history.Open(cfg.HistoryDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open history %s: %w", cfg.HistoryDB, err)
		}
		defer store.Close()
		r.History = store
	}

	res, err := r.Matrix(ctx, inputs)
	if res == nil || (err != nil && (!cfg.KeepGoing || isFatal(ctx, err))) {
		return res, err
	}

	if cfg.Workbook != "" {
		meta := output.WorkbookMeta{RunID: res.RunID, Created: r.now()}
		if werr := output.WriteWorkbook(cfg.Workbook, res.Workbook, meta); werr != nil {
			return res, errors.Join(err, werr)
		}
		output.Logger.Info("Workbook written", "path", cfg.Workbook, "sheets", res.Workbook.Len())
	}

	return res, err
}

// Matrix benchmarks every encoder against every input, in order.
func (r *Runner) Matrix(ctx context.Context, inputs []string) (*Result, error) {
	if len(inputs) == 0 {
		return nil, errors.New("no input files")
	}
	cfg := r.Config
	if r.RunID == "" {
		r.RunID = uuid.NewString()
	}

	res := &Result{RunID: r.RunID, Workbook: model.NewWorkbook()}
	ledger := naming.NewLedger()

	if r.History != nil {
		run := history.Run{
			ID: r.RunID, Tag: cfg.Tag, StartedAt: r.now(),
			Limit: cfg.Limit, Runs: cfg.Runs, Threads: cfg.Threads,
		}
		if err := r.History.BeginRun(ctx, run); err != nil {
			output.Logger.Error("Failed to record run in history", "error", err)
			r.History = nil
		}
	}

	output.Logger.Info("Starting benchmark matrix",
		"run_id", r.RunID,
		"inputs", len(inputs),
		"encoders", len(cfg.Encoders),
		"tag", cfg.Tag,
	)

	var failures []error
	for _, input := range inputs {
		for _, enc := range cfg.Encoders {
			pr, sheet, err := r.runPair(ctx, ledger, input, enc)
			res.Pairs = append(res.Pairs, pr)
			r.report(pr)

			if err != nil {
				err = fmt.Errorf("%s with %s: %w", input, enc, err)
				if !cfg.KeepGoing || isFatal(ctx, err) {
					return res, err
				}
				output.Logger.Error("Benchmark failed, continuing", "input", input, "encoder", enc, "error", err)
				failures = append(failures, err)
				continue
			}

			if slices.Contains(res.Workbook.Names(), sheet.Name) {
				output.Logger.Warn("Duplicate sheet name; spreadsheet tools may reject the workbook",
					"sheet", sheet.Name, "input", input, "encoder", enc)
			}
			seq := res.Workbook.Len()
			res.Workbook.Append(sheet)
			r.store(ctx, seq, pr, sheet)

			output.Logger.Info("Benchmark complete",
				"sheet", sheet.Name,
				"rows", len(sheet.Rows),
				"duration", pr.Duration.Round(time.Millisecond),
			)
		}
	}

	if len(failures) > 0 {
		output.Logger.Warn("Benchmark matrix finished with failures",
			"failed", len(failures),
			"succeeded", res.Workbook.Len(),
		)
		return res, errors.Join(failures...)
	}
	return res, nil
}

// isFatal reports errors that end the run even in keep-going mode.
func isFatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, naming.ErrNoStem) ||
		errors.Is(err, naming.ErrNameCollision)
}

func (r *Runner) report(pr model.PairResult) {
	if r.Report == nil {
		return
	}
	if err := r.Report.Write(pr); err != nil {
		output.Logger.Error("Failed to write result to report", "error", err)
	}
}

func (r *Runner) store(ctx context.Context, seq int, pr model.PairResult, sheet *model.Sheet) {
	if r.History == nil {
		return
	}
	meta := history.SheetMeta{Input: pr.Input, Encoder: pr.Encoder, Family: pr.Family, Version: pr.Version}
	if err := r.History.AddSheet(ctx, r.RunID, seq, meta, sheet); err != nil {
		output.Logger.Error("Failed to store sheet in history", "sheet", sheet.Name, "error", err)
	}
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}
