/*
PURPOSE:
  Builds the command line hyperfine runs for one encoder, with the speed
  level left as the {ss} placeholder.

REQUIREMENTS:
  User-specified:
  - aomenc, rav1e and SvtAv1EncApp each get their own flag grammar.
  - Optional runner prefix and per-family extra arguments.

  Implementation-discovered:
  - Empty runner/extra values must not leave double spaces behind.
  - rav1e only gets -y when the build advertises it.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine
  - Uses: Version from prober.go

ERROR HANDLING:
  - None. Synthesize is pure and cannot fail.

IMPLEMENTATION RULES:
  - No quoting; hyperfine hands the string to a shell.
  - Exactly one placeholder per command.

USAGE:
  cmd := encoder.Synthesize(v, encoder.CommandOptions{...})

SELF-HEALING INSTRUCTIONS:
  - If an encoder renames a flag, update its case and the golden file.

RELATED FILES:
  - internal/encoder/testdata/golden/

MAINTENANCE:
  - Regenerate golden files with `go test ./internal/encoder -update`.
*/

package encoder

import (
	"strconv"
	"strings"
)

// DefaultRav1eTiles is the tile count passed to rav1e when none is configured.
const DefaultRav1eTiles = 16

// CommandOptions carries everything Synthesize needs besides the version.
type CommandOptions struct {
	Runner     string // prefix such as "ssh box" or "taskset -c 0-7"
	Binary     string
	Input      string
	Output     string // output path template containing PlaceholderToken
	Threads    int
	Limit      int
	Rav1eTiles int
	Overwrite  bool   // rav1e only: the binary accepts -y
	Extra      string // appended verbatim
}

// Synthesize builds the hyperfine command template for one encoder run.
// The result contains PlaceholderToken where the speed level goes. Tokens are
// joined with single spaces and nothing is quoted.
func Synthesize(v Version, o CommandOptions) string {
	threads := strconv.Itoa(o.Threads)
	limit := strconv.Itoa(o.Limit)

	var args []string
	switch v.Family {
	case Aom:
		args = []string{
			"--tile-rows=2",
			"--tile-columns=2",
			"--cpu-used=" + PlaceholderToken,
			"--threads=" + threads,
			"--limit=" + limit,
			"-o", o.Output,
			o.Input,
		}
	case Rav1e:
		tiles := o.Rav1eTiles
		if tiles <= 0 {
			tiles = DefaultRav1eTiles
		}
		args = []string{
			"--tiles", strconv.Itoa(tiles),
			"--threads", threads,
			"-l", limit,
			"-s", PlaceholderToken,
			"-o", o.Output,
			o.Input,
		}
		if o.Overwrite {
			args = append(args, "-y")
		}
	case Svt:
		args = []string{
			"--preset", PlaceholderToken,
			"--tile-rows", "2",
			"--tile-columns", "2",
			"--lp", threads,
			"-n", limit,
			"-b", o.Output,
			"-i", o.Input,
		}
	}

	tokens := make([]string, 0, len(args)+3)
	tokens = append(tokens, o.Runner, o.Binary)
	tokens = append(tokens, args...)
	tokens = append(tokens, o.Extra)

	return join(tokens)
}

func join(tokens []string) string {
	kept := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			kept = append(kept, t)
		}
	}
	return strings.Join(kept, " ")
}
