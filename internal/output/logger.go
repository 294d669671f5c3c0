/*
PURPOSE:
  Provides a structured logger for Encoder Bench.
  Wraps slog for consistent output.

REQUIREMENTS:
  User-specified:
  - "Sane" CLI output. Not spammy.

  Implementation-discovered:
  - Needs to support Debug/Info/Warn/Error levels.
  - Machine-readable logs when stdout is not a terminal (CI runners).

ARCHITECTURE INTEGRATION:
  - Used everywhere.

ERROR HANDLING:
  - Setup returns an error for unknown levels or formats.

IMPLEMENTATION RULES:
  - Use `log/slog` (Go 1.21+).
  - Terminal detection via go-isatty.

USAGE:
  output.Logger.Info("message", "key", "value")

SELF-HEALING INSTRUCTIONS:
  - Ensure Go 1.21+ is used.

RELATED FILES:
  - internal/cli/root.go (calls Setup)

MAINTENANCE:
  - None.
*/

package output

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

var Logger *slog.Logger

func init() {
	Logger = slog.New(slog.NewTextHandler(os.Stdout, nil))
}

// SetLogger allows overriding the default logger (e.g. for testing or config changes)
func SetLogger(l *slog.Logger) {
	Logger = l
}

// Setup replaces Logger with one writing to w at the given level.
// format is "text", "json" or "auto" (text on a terminal, JSON otherwise).
func Setup(w io.Writer, level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		SetLogger(slog.New(slog.NewTextHandler(w, opts)))
	case "json":
		SetLogger(slog.New(slog.NewJSONHandler(w, opts)))
	case "auto", "":
		if isTerminal(w) {
			SetLogger(slog.New(slog.NewTextHandler(w, opts)))
		} else {
			SetLogger(slog.New(slog.NewJSONHandler(w, opts)))
		}
	default:
		return fmt.Errorf("invalid log format %q: must be text, json or auto", format)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
