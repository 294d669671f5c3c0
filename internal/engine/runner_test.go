package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daryltucker/encoder-bench/internal/config"
	"github.com/daryltucker/encoder-bench/internal/encoder"
	"github.com/daryltucker/encoder-bench/internal/history"
	"github.com/daryltucker/encoder-bench/internal/hyperfine"
	"github.com/daryltucker/encoder-bench/internal/model"
	"github.com/daryltucker/encoder-bench/internal/naming"
)

type fakeProber struct {
	versions  map[string]encoder.Version
	overwrite bool
	probes    []string
}

func (p *fakeProber) Probe(_ context.Context, path string) (encoder.Version, error) {
	p.probes = append(p.probes, path)
	v, ok := p.versions[path]
	if !ok {
		return encoder.Version{}, fmt.Errorf("%w: %s", encoder.ErrUnknownEncoder, path)
	}
	return v, nil
}

func (p *fakeProber) SupportsOverwrite(context.Context, string) (bool, error) {
	return p.overwrite, nil
}

// fakeDriver writes a small hyperfine-style CSV for each request.
type fakeDriver struct {
	requests []hyperfine.Request
	failOn   map[string]bool // result base -> fail
}

func (d *fakeDriver) Run(_ context.Context, req hyperfine.Request) (hyperfine.Exports, error) {
	d.requests = append(d.requests, req)
	if d.failOn[req.Base] {
		return hyperfine.Exports{}, &hyperfine.SweepError{Base: req.Base, ExitCode: 1, Err: errors.New("exit status 1")}
	}
	csv := filepath.Join(req.ExportDir, req.Base+".csv")
	var b strings.Builder
	b.WriteString("command,mean,stddev,parameter_ss\n")
	for s := req.Min; s <= req.Max; s++ {
		fmt.Fprintf(&b, "cmd %d,%d.5,0.01,%d\n", s, req.Max-s, s)
	}
	if err := os.WriteFile(csv, []byte(b.String()), 0644); err != nil {
		return hyperfine.Exports{}, err
	}
	return hyperfine.Exports{CSV: csv}, nil
}

type fakeStore struct {
	runs   []history.Run
	sheets []string
	seqs   []int
}

func (s *fakeStore) BeginRun(_ context.Context, r history.Run) error {
	s.runs = append(s.runs, r)
	return nil
}

func (s *fakeStore) AddSheet(_ context.Context, _ string, seq int, _ history.SheetMeta, sh *model.Sheet) error {
	s.sheets = append(s.sheets, sh.Name)
	s.seqs = append(s.seqs, seq)
	return nil
}

type fakeReport struct{ rows []model.PairResult }

func (r *fakeReport) Write(pr model.PairResult) error {
	r.rows = append(r.rows, pr)
	return nil
}

func (r *fakeReport) Close() error { return nil }

func newTestRunner(t *testing.T, encoders ...string) (*Runner, *fakeProber, *fakeDriver) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Encoders = encoders
	cfg.Tag = "bench1"
	cfg.OutputDir = filepath.Join(dir, "encoded")
	cfg.ResultsDir = filepath.Join(dir, "results")
	require.NoError(t, os.MkdirAll(cfg.ResultsDir, 0755))

	p := &fakeProber{
		versions: map[string]encoder.Version{
			"/opt/aomenc":       {Family: encoder.Aom, Version: "3.6.0"},
			"/opt/rav1e":        {Family: encoder.Rav1e, Version: "a1b2c3d"},
			"/opt/SvtAv1EncApp": {Family: encoder.Svt, Version: "v1.7.0"},
		},
		overwrite: true,
	}
	d := &fakeDriver{failOn: map[string]bool{}}

	return &Runner{Config: cfg, Prober: p, Driver: d, RunID: "run-1"}, p, d
}

func TestMatrixOrderAndNames(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")

	res, err := r.Matrix(context.Background(), []string{"clips/a.y4m", "clips/b.y4m"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"bench1-aom-3.6.0-speed-levels-a-l10",
		"bench1-rav1e-a1b2c3d-speed-levels-a-l10",
		"bench1-aom-3.6.0-speed-levels-b-l10",
		"bench1-rav1e-a1b2c3d-speed-levels-b-l10",
	}, res.Workbook.Names())
	assert.Equal(t, "run-1", res.RunID)
	assert.Empty(t, res.Failed())

	require.Len(t, d.requests, 4)
	aom, rav1e := d.requests[0], d.requests[1]
	assert.Equal(t, encoder.Placeholder, aom.Param)
	assert.Equal(t, [2]int{0, 8}, [2]int{aom.Min, aom.Max})
	assert.Equal(t, [2]int{0, 10}, [2]int{rav1e.Min, rav1e.Max})
	assert.Contains(t, aom.Command, "--cpu-used={ss}")
	assert.True(t, strings.HasSuffix(rav1e.Command, " -y"), rav1e.Command)
	assert.Contains(t, rav1e.Command, filepath.Join(r.Config.OutputDir, "a-rav1e-a1b2c3d-{ss}-l10.ivf"))
}

func TestMatrixIngestsSheets(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/SvtAv1EncApp")

	res, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.NoError(t, err)

	sheets := res.Workbook.Sheets()
	require.Len(t, sheets, 1)
	// Header plus presets 0..8.
	require.Len(t, sheets[0].Rows, 10)
	assert.Equal(t, model.TextCell("mean"), sheets[0].Rows[0][1])
	assert.Equal(t, model.NumberCell(8.5), sheets[0].Rows[1][1])

	require.Len(t, res.Pairs, 1)
	pr := res.Pairs[0]
	assert.True(t, pr.OK())
	assert.Equal(t, "svt", pr.Family)
	assert.Equal(t, "v1.7.0", pr.Version)
	assert.Equal(t, 10, pr.Rows)
}

func TestMatrixExtrasFollowFamily(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/SvtAv1EncApp")
	r.Config.ExtraAom = "--end-usage=q"
	r.Config.ExtraSvt = "--rc 0"
	r.Config.Runner = "taskset -c 0-3"

	_, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.NoError(t, err)

	require.Len(t, d.requests, 2)
	assert.True(t, strings.HasPrefix(d.requests[0].Command, "taskset -c 0-3 /opt/aomenc "))
	assert.True(t, strings.HasSuffix(d.requests[0].Command, " --end-usage=q"))
	assert.NotContains(t, d.requests[0].Command, "--rc 0")
	assert.True(t, strings.HasSuffix(d.requests[1].Command, " --rc 0"))
}

func TestMatrixStopsAtFirstFailure(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e", "/opt/SvtAv1EncApp")
	d.failOn["bench1-rav1e-a1b2c3d-speed-levels-clip-l10"] = true

	res, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, hyperfine.ErrSweepFailed)

	assert.Len(t, d.requests, 2, "svt must not run after the failure")
	assert.Equal(t, 1, res.Workbook.Len())
	require.Len(t, res.Pairs, 2)
	assert.False(t, res.Pairs[1].OK())
}

func TestMatrixKeepGoing(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e", "/opt/SvtAv1EncApp", "/opt/unknown")
	r.Config.KeepGoing = true
	d.failOn["bench1-rav1e-a1b2c3d-speed-levels-clip-l10"] = true

	res, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, hyperfine.ErrSweepFailed)
	assert.ErrorIs(t, err, encoder.ErrUnknownEncoder)

	assert.Len(t, d.requests, 3)
	assert.Equal(t, []string{
		"bench1-aom-3.6.0-speed-levels-clip-l10",
		"bench1-svt-v1.7.0-speed-levels-clip-l10",
	}, res.Workbook.Names())
	assert.Len(t, res.Failed(), 2)
}

func TestMatrixCollisionIsFatal(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc")
	r.Config.KeepGoing = true

	_, err := r.Matrix(context.Background(), []string{"a/clip.y4m", "b/clip.y4m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, naming.ErrNameCollision)
	assert.Len(t, d.requests, 1)
}

func TestMatrixNoStemIsFatal(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc")
	r.Config.KeepGoing = true

	_, err := r.Matrix(context.Background(), []string{"/", "clip.y4m"})
	assert.ErrorIs(t, err, naming.ErrNoStem)
	assert.Empty(t, d.requests)
}

func TestMatrixCancelled(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/aomenc")
	r.Config.KeepGoing = true
	r.Driver = driverFunc(func(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error) {
		return hyperfine.Exports{}, &hyperfine.SweepError{Base: req.Base, ExitCode: -1, Err: context.Canceled}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Matrix(ctx, []string{"a.y4m", "b.y4m"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, res.Pairs, 1, "cancellation ends the run even with keep-going")
}

func TestMatrixRequiresInputs(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/aomenc")
	_, err := r.Matrix(context.Background(), nil)
	assert.Error(t, err)
}

func TestMatrixRecordsReportAndHistory(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")
	r.Config.KeepGoing = true
	d.failOn["bench1-aom-3.6.0-speed-levels-clip-l10"] = true

	store := &fakeStore{}
	report := &fakeReport{}
	r.History = store
	r.Report = report

	_, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)

	require.Len(t, store.runs, 1)
	assert.Equal(t, "run-1", store.runs[0].ID)
	assert.Equal(t, "bench1", store.runs[0].Tag)
	assert.Equal(t, []string{"bench1-rav1e-a1b2c3d-speed-levels-clip-l10"}, store.sheets)
	assert.Equal(t, []int{0}, store.seqs)

	require.Len(t, report.rows, 2)
	assert.NotEmpty(t, report.rows[0].Error)
	assert.Equal(t, "bench1-aom-3.6.0-speed-levels-clip-l10", report.rows[0].Sheet)
	assert.Empty(t, report.rows[1].Error)
	assert.NotEmpty(t, report.rows[1].CSVPath)
}

func TestRunWritesWorkbook(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")
	wbPath := filepath.Join(t.TempDir(), "results.json")
	r.Config.Workbook = wbPath

	res, err := r.Run(context.Background(), []string{"clip.y4m"})
	require.NoError(t, err)
	assert.DirExists(t, r.Config.OutputDir)

	data, err := os.ReadFile(wbPath)
	require.NoError(t, err)
	var doc struct {
		RunID  string `json:"run_id"`
		Sheets []struct {
			Name string `json:"name"`
		} `json:"sheets"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, res.RunID, doc.RunID)
	require.Len(t, doc.Sheets, 2)
	assert.Equal(t, "bench1-aom-3.6.0-speed-levels-clip-l10", doc.Sheets[0].Name)
}

func TestRunSkipsWorkbookOnFailure(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc")
	wbPath := filepath.Join(t.TempDir(), "results.ods")
	r.Config.Workbook = wbPath
	d.failOn["bench1-aom-3.6.0-speed-levels-clip-l10"] = true

	_, err := r.Run(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)
	assert.NoFileExists(t, wbPath)
}

func TestRunKeepGoingExportsPartialWorkbook(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")
	wbPath := filepath.Join(t.TempDir(), "results.ods")
	r.Config.Workbook = wbPath
	r.Config.KeepGoing = true
	d.failOn["bench1-aom-3.6.0-speed-levels-clip-l10"] = true

	res, err := r.Run(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)
	assert.Equal(t, 1, res.Workbook.Len())
	assert.FileExists(t, wbPath)
}

func TestRunOpensHistoryAndReport(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/aomenc")
	dir := t.TempDir()
	r.Config.HistoryDB = filepath.Join(dir, "history.db")
	r.Config.Report = filepath.Join(dir, "report.csv")

	res, err := r.Run(context.Background(), []string{"clip.y4m"})
	require.NoError(t, err)
	assert.FileExists(t, r.Config.Report)

	store, err := history.Open(r.Config.HistoryDB)
	require.NoError(t, err)
	defer store.Close()

	wb, err := store.Workbook(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, res.Workbook.Names(), wb.Names())
}

type driverFunc func(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error)

func (f driverFunc) Run(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error) {
	return f(ctx, req)
}

func TestMatrixSweepTimeoutKeepGoing(t *testing.T) {
	r, _, d := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")
	r.Config.KeepGoing = true
	r.Config.Timeout = 50 * time.Millisecond

	var deadlines []bool
	r.Driver = driverFunc(func(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error) {
		_, ok := ctx.Deadline()
		deadlines = append(deadlines, ok)
		if strings.Contains(req.Base, "-aom-") {
			<-ctx.Done()
			return hyperfine.Exports{}, &hyperfine.SweepError{Base: req.Base, ExitCode: -1, Err: ctx.Err()}
		}
		return d.Run(ctx, req)
	})

	res, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, hyperfine.ErrSweepFailed)

	assert.Equal(t, []bool{true, true}, deadlines, "every sweep runs under the timeout")
	assert.Equal(t, []string{"bench1-rav1e-a1b2c3d-speed-levels-clip-l10"}, res.Workbook.Names())
	require.Len(t, res.Pairs, 2)
	assert.Contains(t, res.Pairs[0].Error, "deadline exceeded")
	assert.True(t, res.Pairs[1].OK())
}

func TestMatrixSweepTimeoutStopsByDefault(t *testing.T) {
	r, _, _ := newTestRunner(t, "/opt/aomenc", "/opt/rav1e")
	r.Config.Timeout = 20 * time.Millisecond

	calls := 0
	r.Driver = driverFunc(func(ctx context.Context, req hyperfine.Request) (hyperfine.Exports, error) {
		calls++
		<-ctx.Done()
		return hyperfine.Exports{}, &hyperfine.SweepError{Base: req.Base, ExitCode: -1, Err: ctx.Err()}
	})

	_, err := r.Matrix(context.Background(), []string{"clip.y4m"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, calls)
}

func TestRunExpandsHomeInDirectories(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	r, _, _ := newTestRunner(t, "/opt/aomenc")
	r.Config.OutputDir = "~/encoded"
	r.Config.ResultsDir = "~/bench"

	_, err := r.Run(context.Background(), []string{"clip.y4m"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "bench"), r.Config.ResultsDir)
	assert.DirExists(t, filepath.Join(home, "encoded"))
	assert.FileExists(t, filepath.Join(home, "bench", "bench1-aom-3.6.0-speed-levels-clip-l10.csv"))
}
