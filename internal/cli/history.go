/*
PURPOSE:
  Defines the 'history' subcommand group.
  Lists stored runs and re-exports their workbooks.

REQUIREMENTS:
  User-specified:
  - Compare results across invocations without re-running benchmarks.

  Implementation-discovered:
  - The database path comes from --history-db or the config file.

ARCHITECTURE INTEGRATION:
  - Calls: internal/history.Store, internal/output.WriteWorkbook

ERROR HANDLING:
  - Returns error if the database does not exist, cannot be opened or the
    run is unknown.

IMPLEMENTATION RULES:
  - Read-only; the database is opened with mode=ro and never created.

USAGE:
  encoder-bench history list --history-db bench.db
  encoder-bench history export <run-id> -o results.ods --history-db bench.db

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/history/store.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/daryltucker/encoder-bench/internal/history"
	"github.com/daryltucker/encoder-bench/internal/output"
)

var (
	historyDB     string
	historyOutput string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect results stored with --history-db",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		runs, err := store.Runs(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN ID\tSTARTED\tTAG\tLIMIT\tRUNS\tSHEETS")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), r.Tag, r.Limit, r.Runs, r.Sheets)
		}
		return tw.Flush()
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Write the workbook of a stored run (.ods or .json)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOutput == "" {
			return errors.New("an output file is required (-o)")
		}

		store, err := openHistory()
		if err != nil {
			return err
		}
		defer store.Close()

		wb, err := store.Workbook(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		meta := output.WorkbookMeta{RunID: args[0], Created: time.Now()}
		if err := output.WriteWorkbook(historyOutput, wb, meta); err != nil {
			return err
		}
		output.Logger.Info("Workbook written", "path", historyOutput, "sheets", wb.Len())
		return nil
	},
}

// openHistory opens the database named by --history-db or the config file.
func openHistory() (*history.Store, error) {
	path := historyDB
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.HistoryDB
	}
	if path == "" {
		return nil, errors.New("no history database; pass --history-db or set history_db in the config file")
	}
	return history.OpenReadOnly(path)
}

func init() {
	historyCmd.PersistentFlags().StringVar(&historyDB, "history-db", "", "SQLite database written by 'run --history-db'")
	historyExportCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "Workbook path (.ods or .json)")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
