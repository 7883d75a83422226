package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/scenetiler/internal/errs"
	"github.com/lehigh-university-libraries/scenetiler/internal/ledger"
)

func newHistoryCmd() *cobra.Command {
	var (
		ledgerPath string
		limit      int
		runID      string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs from the run ledger",
		Example: `  # Show the last 20 runs
  scenetiler history --ledger runs.db

  # Show the tile verdicts of one run
  scenetiler history --ledger runs.db --run 3f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ledgerPath == "" {
				ledgerPath = os.Getenv(LedgerEnv)
			}
			if ledgerPath == "" {
				return fmt.Errorf("%w: no ledger given; pass --ledger or set %s", errs.ErrInvalidConfiguration, LedgerEnv)
			}

			l, err := ledger.Open(ledgerPath)
			if err != nil {
				return fmt.Errorf("failed to open run ledger: %w", err)
			}
			defer l.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			if runID != "" {
				tiles, err := l.Tiles(cmd.Context(), runID)
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "INDEX\tFILENAME\tLAND\tCLOUD\tREASON")
				for _, t := range tiles {
					fmt.Fprintf(w, "%d\t%s\t%.2f\t%.2f\t%s\n", t.Index, t.Filename, t.Stats.Land, t.Stats.Cloud, t.Outcome.Reason)
				}
				return nil
			}

			runs, err := l.Runs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "RUN\tSCENE\tSTARTED\tSTATE\tACCEPTED\tREJECTED\tERROR")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.Scene, r.StartedAt.Local().Format(time.DateTime), r.State, r.Accepted, r.Rejected, r.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ledgerPath, "ledger", "", "SQLite run ledger path (default: $"+LedgerEnv+")")
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "Show the tiles recorded for one run")

	return cmd
}
