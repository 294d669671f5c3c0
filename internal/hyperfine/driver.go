/*
PURPOSE:
  Drives the external hyperfine benchmark tool over one speed-level sweep
  and reports where it wrote its exports.

REQUIREMENTS:
  User-specified:
  - `hyperfine -r <runs> [--show-output] -P ss <min> <max> <cmd>` with CSV,
    markdown and (optionally) JSON exports.
  - Exactly one invocation per (input, encoder) pair. Never concurrent.

  Implementation-discovered:
  - hyperfine resolves {ss} itself; the template is passed through untouched.
  - A failing sweep should be reported, not abort the process.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Consumes: the command template from internal/encoder

ERROR HANDLING:
  - Non-zero exit becomes *SweepError (matches ErrSweepFailed).
  - On cancellation or timeout the whole process group is killed, so no
    encoder outlives its sweep.
  - Spawn failures are returned wrapped.

IMPLEMENTATION RULES:
  - Args() is pure so the argument vector can be tested without hyperfine.
  - hyperfine's own progress output goes to the configured writers.

USAGE:
  d := hyperfine.New("hyperfine", 2)
  exp, err := d.Run(ctx, hyperfine.Request{...})

SELF-HEALING INSTRUCTIONS:
  - If hyperfine renames an export flag, update Args() and driver_test.go.

RELATED FILES:
  - internal/output/csv.go (reads the CSV export)

MAINTENANCE:
  - Update when supporting new export formats.
*/

package hyperfine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after a kill.
const waitDelay = 5 * time.Second

// ErrSweepFailed matches every *SweepError.
var ErrSweepFailed = errors.New("hyperfine sweep failed")

// SweepError reports a hyperfine run that did not exit cleanly.
type SweepError struct {
	Base     string
	ExitCode int
	Err      error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("hyperfine sweep %s failed (exit code %d): %v", e.Base, e.ExitCode, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrSweepFailed) match.
func (e *SweepError) Is(target error) bool { return target == ErrSweepFailed }

// Request describes one sweep.
type Request struct {
	Command   string // template containing {Param}
	Param     string
	Min, Max  int
	ExportDir string // "" means the working directory
	Base      string // export file base name
}

// Exports are the files hyperfine was asked to write.
type Exports struct {
	CSV      string
	Markdown string
	JSON     string // empty when JSON export is off
}

// Driver runs hyperfine.
type Driver struct {
	Binary     string
	Runs       int
	ShowOutput bool
	ExportJSON bool
	Stdout     io.Writer
	Stderr     io.Writer

	// command builds the process; replaced in tests.
	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// New returns a driver exporting CSV, markdown and JSON.
func New(binary string, runs int) *Driver {
	return &Driver{
		Binary:     binary,
		Runs:       runs,
		ExportJSON: true,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		command:    exec.CommandContext,
	}
}

// ExportsFor returns the export paths for req.
func (d *Driver) ExportsFor(req Request) Exports {
	base := filepath.Join(req.ExportDir, req.Base)
	exp := Exports{
		CSV:      base + ".csv",
		Markdown: base + ".md",
	}
	if d.ExportJSON {
		exp.JSON = base + ".json"
	}
	return exp
}

// Args returns the hyperfine argument vector for req.
func (d *Driver) Args(req Request) []string {
	exp := d.ExportsFor(req)

	args := []string{"-r", strconv.Itoa(d.Runs)}
	if d.ShowOutput {
		args = append(args, "--show-output")
	}
	args = append(args,
		"-P", req.Param, strconv.Itoa(req.Min), strconv.Itoa(req.Max),
		req.Command,
		"--export-csv", exp.CSV,
		"--export-markdown", exp.Markdown,
	)
	if exp.JSON != "" {
		args = append(args, "--export-json", exp.JSON)
	}
	return args
}

// Run executes the sweep and blocks until hyperfine exits.
func (d *Driver) Run(ctx context.Context, req Request) (Exports, error) {
	command := d.command
	if command == nil {
		command = exec.CommandContext
	}

	cmd := command(ctx, d.Binary, d.Args(req)...)
	cmd.Stdout = d.Stdout
	cmd.Stderr = d.Stderr
	// Cancellation takes down hyperfine and the encoders it started.
	killGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Exports{}, &SweepError{Base: req.Base, ExitCode: -1, Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Exports{}, &SweepError{Base: req.Base, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return Exports{}, fmt.Errorf("cannot run %s: %w", d.Binary, err)
	}

	return d.ExportsFor(req), nil
}
