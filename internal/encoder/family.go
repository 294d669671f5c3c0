/*
PURPOSE:
  Defines the closed set of supported AV1 encoder families and the
  fixed sweep range each one is benchmarked over.

REQUIREMENTS:
  User-specified:
  - Support aomenc, rav1e and SvtAv1EncApp.
  - aom and svt sweep speed levels 0..8, rav1e sweeps 0..10.

  Implementation-discovered:
  - Family names are part of artifact and sheet names; they must stay stable.

ARCHITECTURE INTEGRATION:
  - Used by: internal/engine, internal/naming (via String())

ERROR HANDLING:
  - None.

IMPLEMENTATION RULES:
  - Never add a family without a probe strategy and a command grammar.

USAGE:
  lo, hi := encoder.Rav1e.Sweep()

SELF-HEALING INSTRUCTIONS:
  - If a new family is added, update DefaultPriority and Synthesize.

RELATED FILES:
  - internal/encoder/prober.go
  - internal/encoder/command.go

MAINTENANCE:
  - Update sweep bounds when encoders add presets.
*/

package encoder

import "fmt"

// Family is one of the supported encoder command grammars.
type Family int

const (
	Aom Family = iota
	Rav1e
	Svt
)

// Placeholder is the sweep parameter name handed to hyperfine.
const Placeholder = "ss"

// PlaceholderToken is how the sweep variable appears in templates.
const PlaceholderToken = "{" + Placeholder + "}"

func (f Family) String() string {
	switch f {
	case Aom:
		return "aom"
	case Rav1e:
		return "rav1e"
	case Svt:
		return "svt"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// Sweep returns the inclusive speed-level range benchmarked for f.
func (f Family) Sweep() (min, max int) {
	if f == Rav1e {
		return 0, 10
	}
	return 0, 8
}

// Version is a probed encoder: its family plus the extracted version token.
type Version struct {
	Family  Family
	Version string
}

func (v Version) String() string {
	return v.Family.String() + "-" + v.Version
}
