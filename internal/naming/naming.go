/*
PURPOSE:
  Derives the encoded-output path template and the result base name for
  one (input, encoder) benchmark pair.

REQUIREMENTS:
  User-specified:
  - <outdir>/<stem>-<family>-<version>-{ss}-l<limit>.ivf for encoded output.
  - <tag>-<family>-<version>-speed-levels-<stem>-l<limit> for exports and sheets.

  Implementation-discovered:
  - Inputs with the same stem in different directories map to the same
    result base. The Ledger refuses such pairs instead of renaming them.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - The result base names hyperfine exports and workbook sheets.

ERROR HANDLING:
  - ErrNoStem for paths without a usable file name.
  - ErrNameCollision when two pairs claim the same result base.

IMPLEMENTATION RULES:
  - Derive is pure: no timestamps, no randomness.

USAGE:
  a, err := naming.Derive(naming.Params{...})

SELF-HEALING INSTRUCTIONS:
  - Never change the name format without a migration note; history and
    existing exports are keyed by it.

RELATED FILES:
  - internal/engine/runner.go

MAINTENANCE:
  - None.
*/

package naming

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoStem is returned for input paths with no extractable base name.
	ErrNoStem = errors.New("input path has no file name")
	// ErrNameCollision is returned when two pairs would share export files.
	ErrNameCollision = errors.New("result name collision")
)

// Placeholder is the sweep token embedded in the output template.
const Placeholder = "{ss}"

// Params identifies one benchmark pair.
type Params struct {
	Tag       string
	Family    string
	Version   string
	Input     string
	Limit     int
	OutputDir string
}

// Artifacts are the names derived for one pair.
type Artifacts struct {
	OutputTemplate string
	ResultBase     string
}

// Stem returns the file name of path without its final extension.
// Dotfiles keep their full name, like ".clip".
func Stem(path string) (string, error) {
	base := filepath.Base(path)
	if path == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrNoStem, path)
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return stem, nil
}

// Derive computes the artifact names for p.
func Derive(p Params) (Artifacts, error) {
	stem, err := Stem(p.Input)
	if err != nil {
		return Artifacts{}, err
	}
	enc := p.Family + "-" + p.Version

	return Artifacts{
		OutputTemplate: filepath.Join(p.OutputDir, fmt.Sprintf("%s-%s-%s-l%d.ivf", stem, enc, Placeholder, p.Limit)),
		ResultBase:     fmt.Sprintf("%s-%s-speed-levels-%s-l%d", p.Tag, enc, stem, p.Limit),
	}, nil
}

// Ledger tracks which pair owns each result base within one run.
// All methods are goroutine-safe.
type Ledger struct {
	mu     sync.Mutex
	owners map[string]string // result base → "input|encoder"
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{owners: make(map[string]string)}
}

// Claim records that (input, encoder) writes resultBase. Claiming the same
// base again for the same pair is allowed.
func (l *Ledger) Claim(resultBase, input, encoder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := input + "|" + encoder
	owner, exists := l.owners[resultBase]
	if exists && owner != key {
		prevInput, prevEnc, _ := strings.Cut(owner, "|")
		return fmt.Errorf("%w: %s is produced by both %s with %s and %s with %s",
			ErrNameCollision, resultBase, prevInput, prevEnc, input, encoder)
	}
	l.owners[resultBase] = key
	return nil
}
