/*
PURPOSE:
  Identifies which encoder family a binary belongs to and extracts its
  version by running it and pattern matching the captured output.

REQUIREMENTS:
  User-specified:
  - aom: `--help` on stdout, rav1e: `--version` on stdout, svt: no args on stderr.
  - Try aom, then rav1e, then svt. The first match wins.
  - rav1e reports the commit hash unless it is UNKNOWN.

  Implementation-discovered:
  - Encoders exit non-zero when printing usage. Only spawn failures are errors.
  - rav1e builds differ in whether they accept `-y`; detect it from --help.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine, internal/cli (probe command)

ERROR HANDLING:
  - ErrUnknownEncoder when no pattern matches.
  - Spawn failures are returned wrapped with the binary path.

IMPLEMENTATION RULES:
  - Priority order is data (DefaultPriority), not a call chain.
  - Parsers are exported so they can be tested without real binaries.

USAGE:
  p := encoder.NewProber(encoder.ExecRunner{})
  v, err := p.Probe(ctx, "/usr/bin/aomenc")

SELF-HEALING INSTRUCTIONS:
  - If an encoder changes its banner, update the matching regex and add a test sample.

RELATED FILES:
  - internal/encoder/family.go

MAINTENANCE:
  - Add samples to prober_test.go for every new encoder release format.
*/

package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sync"
)

// ErrUnknownEncoder is returned when a binary matches none of the families.
var ErrUnknownEncoder = errors.New("cannot identify encoder")

// Output is what a probe invocation printed.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Executor runs a binary to completion and captures its output.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// ExecRunner runs real subprocesses.
type ExecRunner struct{}

// Run executes name with args. A non-zero exit status is not an error.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return out, err
	}
	return out, nil
}

type stream int

const (
	stdout stream = iota
	stderr
)

// strategy is one family's probe: how to invoke the binary, which stream to
// read and how to pull the version out of it.
type strategy struct {
	args   []string
	stream stream
	parse  func(string) (string, bool)
}

var strategies = map[Family]strategy{
	Aom:   {args: []string{"--help"}, stream: stdout, parse: ParseAomVersion},
	Rav1e: {args: []string{"--version"}, stream: stdout, parse: ParseRav1eVersion},
	Svt:   {args: nil, stream: stderr, parse: ParseSvtVersion},
}

// DefaultPriority is the order families are tried in.
var DefaultPriority = []Family{Aom, Rav1e, Svt}

var (
	reAom        = regexp.MustCompile(`av1\s+- AOMedia Project AV1 Encoder (\S+)\s`)
	reRav1e      = regexp.MustCompile(`rav1e (\S+) \((\S+)\)`)
	reRav1eShort = regexp.MustCompile(`rav1e (\S+)`)
	reSvt        = regexp.MustCompile(`SVT \[version\]:\s+SVT-AV1 Encoder Lib (\S+)\s`)
	reOverwrite  = regexp.MustCompile(`(?m)^\s*-y\b`)
)

// ParseAomVersion extracts the version from aomenc --help output.
func ParseAomVersion(out string) (string, bool) {
	m := reAom.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ParseRav1eVersion extracts the version from rav1e --version output. When
// the build hash is known it identifies the build better than the nominal
// version, so it wins.
func ParseRav1eVersion(out string) (string, bool) {
	if m := reRav1e.FindStringSubmatch(out); m != nil {
		if m[2] == "UNKNOWN" {
			return m[1], true
		}
		return m[2], true
	}
	if m := reRav1eShort.FindStringSubmatch(out); m != nil {
		return m[1], true
	}
	return "", false
}

// ParseSvtVersion extracts the version from the SvtAv1EncApp banner.
func ParseSvtVersion(out string) (string, bool) {
	m := reSvt.FindStringSubmatch(out)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// AdvertisesOverwrite reports whether rav1e --help lists a -y option.
func AdvertisesOverwrite(help string) bool {
	return reOverwrite.MatchString(help)
}

// Prober classifies encoder binaries. Results are cached per binary path,
// so a path is spawned at most once per probe kind. Safe for concurrent use.
type Prober struct {
	exec     Executor
	priority []Family

	mu        sync.Mutex
	versions  map[string]Version
	overwrite map[string]bool
}

// NewProber returns a prober using DefaultPriority.
func NewProber(e Executor) *Prober {
	return &Prober{
		exec:      e,
		priority:  DefaultPriority,
		versions:  make(map[string]Version),
		overwrite: make(map[string]bool),
	}
}

// WithPriority returns a copy of p that tries families in the given order.
func (p *Prober) WithPriority(order ...Family) *Prober {
	np := NewProber(p.exec)
	np.priority = append([]Family(nil), order...)
	return np
}

// Probe identifies the encoder at path.
func (p *Prober) Probe(ctx context.Context, path string) (Version, error) {
	p.mu.Lock()
	v, ok := p.versions[path]
	p.mu.Unlock()
	if ok {
		return v, nil
	}

	for _, fam := range p.priority {
		st, ok := strategies[fam]
		if !ok {
			continue
		}
		out, err := p.exec.Run(ctx, path, st.args...)
		if err != nil {
			return Version{}, fmt.Errorf("cannot run encoder %s: %w", path, err)
		}
		text := out.Stdout
		if st.stream == stderr {
			text = out.Stderr
		}
		if ver, ok := st.parse(string(text)); ok {
			v := Version{Family: fam, Version: ver}
			p.mu.Lock()
			p.versions[path] = v
			p.mu.Unlock()
			return v, nil
		}
	}

	return Version{}, fmt.Errorf("%w: %s", ErrUnknownEncoder, path)
}

// SupportsOverwrite reports whether the rav1e binary at path accepts -y.
func (p *Prober) SupportsOverwrite(ctx context.Context, path string) (bool, error) {
	p.mu.Lock()
	ok, cached := p.overwrite[path]
	p.mu.Unlock()
	if cached {
		return ok, nil
	}

	out, err := p.exec.Run(ctx, path, "--help")
	if err != nil {
		return false, fmt.Errorf("cannot run encoder %s: %w", path, err)
	}
	ok = AdvertisesOverwrite(string(out.Stdout))

	p.mu.Lock()
	p.overwrite[path] = ok
	p.mu.Unlock()
	return ok, nil
}
