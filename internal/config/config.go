/*
PURPOSE:
  Defines the configuration structure and loading logic for Encoder Bench.
  Adheres to "Config IS Code" philosophy.

REQUIREMENTS:
  User-specified:
  - Frame limit, thread count, tag, repetitions, output directory.
  - Per-encoder extra arguments and a runner prefix, overridable from the
    environment (EXTRA_AOM, EXTRA_RAV1E, EXTRA_SVT, RUNNER_COMMAND).

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Precedence: defaults < config file < environment < CLI flags.
  - Resolved once at startup and passed down explicitly; nothing below
    internal/cli reads the environment.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine
  - Dependencies: gopkg.in/yaml.v3 (standard for Go config)

ERROR HANDLING:
  - Returns explicit error if config file is invalid.
  - Missing default files fall back to defaults silently.
  - Validate() reports every invalid field at once.

IMPLEMENTATION RULES:
  - Config struct tags should support yaml.
  - Defaults match the historical tool (limit 10, 2 runs, 16 threads).

USAGE:
  cfg, err := config.Load("encoder-bench.yaml")
  cfg.ApplyEnv(os.LookupEnv)

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Config struct and update DefaultConfig().

RELATED FILES:
  - internal/cli/run.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv.
const (
	EnvExtraAom   = "EXTRA_AOM"
	EnvExtraRav1e = "EXTRA_RAV1E"
	EnvExtraSvt   = "EXTRA_SVT"
	EnvRunner     = "RUNNER_COMMAND"
)

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"encoder-bench.yaml", "bench.yaml"}

// Config represents the full configuration for Encoder Bench.
type Config struct {
	Encoders   []string `yaml:"encoders"`
	Limit      int      `yaml:"limit"`
	OutputDir  string   `yaml:"output_dir"`
	ResultsDir string   `yaml:"results_dir"` // where hyperfine exports go
	Tag        string   `yaml:"tag"`
	Runs       int      `yaml:"runs"`
	Threads    int      `yaml:"threads"`
	ShowOutput bool     `yaml:"show_output"`
	Workbook   string   `yaml:"workbook"` // aggregate spreadsheet, .ods or .json

	ExtraAom   string `yaml:"extra_aom"`
	ExtraRav1e string `yaml:"extra_rav1e"`
	ExtraSvt   string `yaml:"extra_svt"`
	Runner     string `yaml:"runner"`
	Rav1eTiles int    `yaml:"rav1e_tiles"`

	Hyperfine  string        `yaml:"hyperfine"`
	ExportJSON bool          `yaml:"export_json"`
	KeepGoing  bool          `yaml:"keep_going"`
	Timeout    time.Duration `yaml:"timeout"` // per sweep, 0 waits forever
	Report     string        `yaml:"report"`
	HistoryDB  string        `yaml:"history_db"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Limit:      10,
		OutputDir:  "~/Encoded",
		Tag:        DefaultTag(),
		Runs:       2,
		Threads:    16,
		Rav1eTiles: 16,
		Hyperfine:  "hyperfine",
		ExportJSON: true,
	}
}

// DefaultTag is "<hostname>-<arch>".
func DefaultTag() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s-%s", host, machine())
}

// machine maps GOARCH to the names uname(1) reports.
func machine() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	default:
		return runtime.GOARCH
	}
}

// Load reads configuration from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultFiles in order.
// If no file found, returns default config.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
	} else {
		found := false
		for _, name := range DefaultFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name // record which file we loaded
				found = true
				break
			}
		}
		if !found {
			return cfg, nil
		}
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides the per-family extras and the runner from the
// environment. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvExtraAom); ok {
		c.ExtraAom = v
	}
	if v, ok := lookup(EnvExtraRav1e); ok {
		c.ExtraRav1e = v
	}
	if v, ok := lookup(EnvExtraSvt); ok {
		c.ExtraSvt = v
	}
	if v, ok := lookup(EnvRunner); ok {
		c.Runner = v
	}
}

// Validate checks the fields every run needs.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Encoders) == 0 {
		errs = append(errs, errors.New("at least one encoder is required"))
	}
	seen := make(map[string]bool, len(c.Encoders))
	for _, e := range c.Encoders {
		if seen[e] {
			errs = append(errs, fmt.Errorf("encoder %s is listed more than once", e))
		}
		seen[e] = true
	}
	if c.Limit <= 0 {
		errs = append(errs, fmt.Errorf("limit must be positive, got %d", c.Limit))
	}
	if c.Runs <= 0 {
		errs = append(errs, fmt.Errorf("runs must be positive, got %d", c.Runs))
	}
	if c.Threads <= 0 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", c.Threads))
	}
	if c.Rav1eTiles <= 0 {
		errs = append(errs, fmt.Errorf("rav1e tiles must be positive, got %d", c.Rav1eTiles))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if strings.TrimSpace(c.Tag) == "" {
		errs = append(errs, errors.New("tag must not be empty"))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output directory must not be empty"))
	}
	if c.Hyperfine == "" {
		errs = append(errs, errors.New("hyperfine binary must not be empty"))
	}
	return errors.Join(errs...)
}

// ExpandHome resolves a leading "~" in path to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot find home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
