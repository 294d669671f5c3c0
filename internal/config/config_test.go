package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10, cfg.Limit)
	assert.Equal(t, 2, cfg.Runs)
	assert.Equal(t, 16, cfg.Threads)
	assert.Equal(t, 16, cfg.Rav1eTiles)
	assert.Equal(t, "~/Encoded", cfg.OutputDir)
	assert.Equal(t, "hyperfine", cfg.Hyperfine)
	assert.True(t, cfg.ExportJSON)
	assert.False(t, cfg.KeepGoing)
	assert.NotEmpty(t, cfg.Tag)
	assert.Contains(t, cfg.Tag, "-")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	yml := `encoders:
  - /opt/aom/aomenc
  - /opt/rav1e/rav1e
limit: 30
tag: ci-box
extra_aom: "--end-usage=q --cq-level=30"
keep_going: true
timeout: 90m
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/opt/aom/aomenc", "/opt/rav1e/rav1e"}, cfg.Encoders)
	assert.Equal(t, 30, cfg.Limit)
	assert.Equal(t, "ci-box", cfg.Tag)
	assert.Equal(t, "--end-usage=q --cq-level=30", cfg.ExtraAom)
	assert.True(t, cfg.KeepGoing)
	assert.Equal(t, 90*time.Minute, cfg.Timeout)
	// Untouched fields keep their defaults.
	assert.Equal(t, 2, cfg.Runs)
	assert.Equal(t, 16, cfg.Threads)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limit: [1, 2\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadWithoutDefaultFiles(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Limit, cfg.Limit)
}

func TestLoadFindsDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.WriteFile("bench.yaml", []byte("runs: 7\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Runs)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvExtraAom: "--lag-in-frames=0",
		EnvRunner:   "ssh bench-host",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := DefaultConfig()
	cfg.ExtraSvt = "--rc 0"
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "--lag-in-frames=0", cfg.ExtraAom)
	assert.Equal(t, "ssh bench-host", cfg.Runner)
	assert.Equal(t, "", cfg.ExtraRav1e)
	assert.Equal(t, "--rc 0", cfg.ExtraSvt, "unset variables leave values alone")
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoders = []string{"aomenc"}
	require.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.Limit = 0
	bad.Runs = -1
	bad.Tag = " "
	err := bad.Validate()
	require.Error(t, err)

	msg := err.Error()
	assert.True(t, strings.Contains(msg, "at least one encoder"))
	assert.Contains(t, msg, "limit must be positive")
	assert.Contains(t, msg, "runs must be positive")
	assert.Contains(t, msg, "tag must not be empty")
}

func TestValidateRejectsDuplicateEncoders(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Encoders = []string{"/opt/aomenc", "/opt/rav1e", "/opt/aomenc"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoder /opt/aomenc is listed more than once")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := ExpandHome("~/Encoded")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "Encoded"), got)

	got, err = ExpandHome("/abs/out")
	require.NoError(t, err)
	assert.Equal(t, "/abs/out", got)

	got, err = ExpandHome("~user/out")
	require.NoError(t, err)
	assert.Equal(t, "~user/out", got)
}
