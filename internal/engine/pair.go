package engine

import (
	"context"
	"fmt"

	"github.com/daryltucker/encoder-bench/internal/encoder"
	"github.com/daryltucker/encoder-bench/internal/hyperfine"
	"github.com/daryltucker/encoder-bench/internal/model"
	"github.com/daryltucker/encoder-bench/internal/naming"
	"github.com/daryltucker/encoder-bench/internal/output"
)

// runPair benchmarks one encoder against one input. The returned
// PairResult is always populated, even on failure.
func (r *Runner) runPair(ctx context.Context, ledger *naming.Ledger, input, enc string) (model.PairResult, *model.Sheet, error) {
	cfg := r.Config
	start := r.now()
	pr := model.PairResult{RunID: r.RunID, Input: input, Encoder: enc, Timestamp: start}

	fail := func(err error) (model.PairResult, *model.Sheet, error) {
		pr.Duration = r.now().Sub(start)
		pr.Error = err.Error()
		return pr, nil, err
	}

	v, err := r.Prober.Probe(ctx, enc)
	if err != nil {
		return fail(err)
	}
	pr.Family = v.Family.String()
	pr.Version = v.Version

	arts, err := naming.Derive(naming.Params{
		Tag:       cfg.Tag,
		Family:    pr.Family,
		Version:   v.Version,
		Input:     input,
		Limit:     cfg.Limit,
		OutputDir: cfg.OutputDir,
	})
	if err != nil {
		return fail(err)
	}
	pr.Sheet = arts.ResultBase
	if err := ledger.Claim(arts.ResultBase, input, enc); err != nil {
		return fail(err)
	}

	opts := encoder.CommandOptions{
		Runner:     cfg.Runner,
		Binary:     enc,
		Input:      input,
		Output:     arts.OutputTemplate,
		Threads:    cfg.Threads,
		Limit:      cfg.Limit,
		Rav1eTiles: cfg.Rav1eTiles,
		Extra:      extraFor(cfg.ExtraAom, cfg.ExtraRav1e, cfg.ExtraSvt, v.Family),
	}
	if v.Family == encoder.Rav1e {
		if opts.Overwrite, err = r.Prober.SupportsOverwrite(ctx, enc); err != nil {
			return fail(err)
		}
	}
	pr.Command = encoder.Synthesize(v, opts)

	lo, hi := v.Family.Sweep()
	output.Logger.Info("Benchmarking",
		"input", input,
		"encoder", enc,
		"family", pr.Family,
		"version", v.Version,
		"speeds", fmt.Sprintf("%d..%d", lo, hi),
	)
	output.Logger.Debug("Synthesized command", "command", pr.Command)

	sweepCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		sweepCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	exp, err := r.Driver.Run(sweepCtx, hyperfine.Request{
		Command:   pr.Command,
		Param:     encoder.Placeholder,
		Min:       lo,
		Max:       hi,
		ExportDir: cfg.ResultsDir,
		Base:      arts.ResultBase,
	})
	if err != nil {
		return fail(err)
	}
	pr.CSVPath = exp.CSV

	sheet, err := output.ReadSheet(exp.CSV, arts.ResultBase)
	if err != nil {
		return fail(err)
	}
	pr.Rows = len(sheet.Rows)
	pr.Duration = r.now().Sub(start)
	return pr, sheet, nil
}

// extraFor picks the per-family extra argument string.
func extraFor(aom, rav1e, svt string, f encoder.Family) string {
	switch f {
	case encoder.Aom:
		return aom
	case encoder.Rav1e:
		return rav1e
	case encoder.Svt:
		return svt
	}
	return ""
}

