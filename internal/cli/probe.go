/*
PURPOSE:
  Defines the 'probe' subcommand.
  Helps debug encoder discovery before a long benchmark run.

REQUIREMENTS:
  User-specified:
  - Show which family and version each encoder binary reports.

  Implementation-discovered:
  - Useful validation step before full run.
  - rav1e builds differ in whether they accept -y, so show that too.

ARCHITECTURE INTEGRATION:
  - Calls: internal/encoder.Prober

ERROR HANDLING:
  - Prints an error line per binary that cannot be identified and
    returns the joined errors at the end.

IMPLEMENTATION RULES:
  - Simple output to stdout.

USAGE:
  encoder-bench probe /opt/aom/aomenc /opt/rav1e/rav1e

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/encoder/prober.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/encoder-bench/internal/encoder"
	"github.com/daryltucker/encoder-bench/internal/engine"
)

// newProber is replaced in tests.
var newProber = func() engine.Prober {
	return encoder.NewProber(encoder.ExecRunner{})
}

var probeCmd = &cobra.Command{
	Use:   "probe [encoder...]",
	Short: "Identify encoder binaries without benchmarking",
	Long: `Runs each encoder binary the way 'run' does and prints its family and version.
Without arguments the encoders from the config file are probed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		encoders := args
		if len(encoders) == 0 {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			encoders = cfg.Encoders
		}
		if len(encoders) == 0 {
			return errors.New("no encoders given and none configured")
		}

		ctx := cmd.Context()
		p := newProber()
		out := cmd.OutOrStdout()

		var errs []error
		for _, path := range encoders {
			v, err := p.Probe(ctx, path)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
				errs = append(errs, err)
				continue
			}
			line := fmt.Sprintf("%s\t%s\t%s", path, v.Family, v.Version)
			if v.Family == encoder.Rav1e {
				ok, err := p.SupportsOverwrite(ctx, path)
				if err != nil {
					errs = append(errs, err)
				}
				line += fmt.Sprintf("\toverwrite=%t", ok)
			}
			fmt.Fprintln(out, line)
		}

		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
