/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes the full benchmark matrix.

REQUIREMENTS:
  User-specified:
  - Run the benchmarks for every input and encoder.
  - Flags mirror the historical script (-e, -l, -O, -t, -r, -o ...).

  Implementation-discovered:
  - Need to load config first.
  - Apply flag overrides to config, but only for flags the user set, so
    config file and environment values survive.

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config

ERROR HANDLING:
  - Returns error if config load, validation or the engine run fails.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Config -> Env -> Override -> Validate -> Engine.Run.

USAGE:
  encoder-bench run -e /opt/aom/aomenc -e /opt/rav1e/rav1e clip.y4m

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Config struct fields generally.

RELATED FILES:
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/encoder-bench/internal/config"
	"github.com/daryltucker/encoder-bench/internal/engine"
	"github.com/daryltucker/encoder-bench/internal/output"
)

// runFlags holds raw flag values; only changed flags reach the config.
var runFlags struct {
	encoders   []string
	limit      int
	outDir     string
	tag        string
	runs       int
	threads    int
	showOutput bool
	outName    string
	extraAom   string
	extraRav1e string
	extraSvt   string
	runner     string
	rav1eTiles int
	resultsDir string
	hyperfine  string
	noJSON     bool
	keepGoing  bool
	timeout    time.Duration
	report     string
	historyDB  string
}

var runCmd = &cobra.Command{
	Use:   "run [flags] <input>...",
	Short: "Run the benchmark matrix",
	Long: `Benchmarks every encoder against every input, one hyperfine sweep per pair.
The process follows a strict protocol:
1. Probe: Runs each encoder binary to find its family and version.
2. Synthesize: Builds the encoder command line with a {ss} speed placeholder.
3. Sweep: Runs hyperfine over the family's speed range (aom/svt 0..8, rav1e 0..10).
4. Ingest: Reads hyperfine's CSV export into a sheet of the result workbook.

Pairs run strictly one after another. EXTRA_AOM, EXTRA_RAV1E, EXTRA_SVT and
RUNNER_COMMAND override the config file; flags override both.`,
	Example: `  # Compare two builds on one clip
  encoder-bench run -e /opt/aom/aomenc -e /opt/rav1e/rav1e clip.y4m

  # 30 frames, 5 repetitions, export the workbook
  encoder-bench run -e ./SvtAv1EncApp -l 30 -r 5 -o results.ods a.y4m b.y4m

  # Pin to cores and keep going past failed sweeps
  encoder-bench run --runner "taskset -c 0-7" --keep-going -e ./aomenc clip.y4m`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Config
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// 2. Overrides
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}

		// 3. Execution
		res, err := engine.Run(cmd.Context(), cfg, args)
		if res != nil {
			output.Logger.Info("Run finished",
				"run_id", res.RunID,
				"sheets", res.Workbook.Len(),
				"failed", len(res.Failed()),
			)
		}
		return err
	},
}

// applyRunFlags copies every flag the user set onto cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("encoders") {
		cfg.Encoders = runFlags.encoders
	}
	if f.Changed("limit") {
		cfg.Limit = runFlags.limit
	}
	if f.Changed("outdir") {
		cfg.OutputDir = runFlags.outDir
	}
	if f.Changed("tag") {
		cfg.Tag = runFlags.tag
	}
	if f.Changed("runs") {
		cfg.Runs = runFlags.runs
	}
	if f.Changed("threads") {
		cfg.Threads = runFlags.threads
	}
	if f.Changed("show-output") {
		cfg.ShowOutput = runFlags.showOutput
	}
	if f.Changed("outname") {
		cfg.Workbook = runFlags.outName
	}
	if f.Changed("extra-aom") {
		cfg.ExtraAom = runFlags.extraAom
	}
	if f.Changed("extra-rav1e") {
		cfg.ExtraRav1e = runFlags.extraRav1e
	}
	if f.Changed("extra-svt") {
		cfg.ExtraSvt = runFlags.extraSvt
	}
	if f.Changed("runner") {
		cfg.Runner = runFlags.runner
	}
	if f.Changed("rav1e-tiles") {
		cfg.Rav1eTiles = runFlags.rav1eTiles
	}
	if f.Changed("results-dir") {
		cfg.ResultsDir = runFlags.resultsDir
	}
	if f.Changed("hyperfine") {
		cfg.Hyperfine = runFlags.hyperfine
	}
	if f.Changed("no-json") {
		cfg.ExportJSON = !runFlags.noJSON
	}
	if f.Changed("keep-going") {
		cfg.KeepGoing = runFlags.keepGoing
	}
	if f.Changed("timeout") {
		cfg.Timeout = runFlags.timeout
	}
	if f.Changed("report") {
		cfg.Report = runFlags.report
	}
	if f.Changed("history-db") {
		cfg.HistoryDB = runFlags.historyDB
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	f := cmd.Flags()
	f.StringSliceVarP(&runFlags.encoders, "encoders", "e", nil, "Encoder binaries to benchmark (repeatable or comma-separated)")
	f.IntVarP(&runFlags.limit, "limit", "l", defaults.Limit, "Number of frames to encode")
	f.StringVarP(&runFlags.outDir, "outdir", "O", defaults.OutputDir, "Directory for encoded files")
	f.StringVarP(&runFlags.tag, "tag", "t", defaults.Tag, "Tag prefixed to result names")
	f.IntVarP(&runFlags.runs, "runs", "r", defaults.Runs, "hyperfine repetitions per speed level")
	f.IntVar(&runFlags.threads, "threads", defaults.Threads, "Encoder thread count")
	f.BoolVar(&runFlags.showOutput, "show-output", false, "Show encoder output during benchmarks")
	f.StringVarP(&runFlags.outName, "outname", "o", "", "Write the result workbook here (.ods or .json)")
	f.StringVar(&runFlags.extraAom, "extra-aom", "", "Extra arguments for aomenc (env EXTRA_AOM)")
	f.StringVar(&runFlags.extraRav1e, "extra-rav1e", "", "Extra arguments for rav1e (env EXTRA_RAV1E)")
	f.StringVar(&runFlags.extraSvt, "extra-svt", "", "Extra arguments for SvtAv1EncApp (env EXTRA_SVT)")
	f.StringVar(&runFlags.runner, "runner", "", "Command prefix for every encoder run, e.g. taskset (env RUNNER_COMMAND)")
	f.IntVar(&runFlags.rav1eTiles, "rav1e-tiles", defaults.Rav1eTiles, "Tile count passed to rav1e")
	f.StringVar(&runFlags.resultsDir, "results-dir", "", "Directory for hyperfine exports (default current directory)")
	f.StringVar(&runFlags.hyperfine, "hyperfine", defaults.Hyperfine, "hyperfine binary")
	f.BoolVar(&runFlags.noJSON, "no-json", false, "Skip hyperfine's JSON export")
	f.BoolVar(&runFlags.keepGoing, "keep-going", false, "Continue with the next pair when one fails")
	f.DurationVar(&runFlags.timeout, "timeout", 0, "Abort a sweep after this long (0 waits forever)")
	f.StringVar(&runFlags.report, "report", "", "Write one row per pair to this .csv or .jsonl file")
	f.StringVar(&runFlags.historyDB, "history-db", "", "Store every sheet in this SQLite database")
}
