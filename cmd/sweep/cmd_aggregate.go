package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/sweep/internal/aggregate"
	"github.com/nvandessel/sweep/internal/logging"
	"github.com/spf13/cobra"
)

func newAggregateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregate",
		Short: "Summarize run directories into summary.csv",
		Long: `Summarize every run directory under --data into <dump>/summary.csv.

Each run contributes one row per requested update, combining its
configuration snapshot, gene statistics and representative organism.
Runs without output/run_config.csv are reported as incomplete.

Examples:
  sweep aggregate --data /scratch/exp --updates 50000
  sweep aggregate --data /scratch/exp --dump ./analysis --updates 10000,50000
  sweep aggregate --data /scratch/exp --updates 50000 --ledger sweep.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			dataDir, _ := cmd.Flags().GetString("data")
			dumpDir, _ := cmd.Flags().GetString("dump")
			updates, _ := cmd.Flags().GetIntSlice("updates")

			if _, err := os.Stat(dataDir); dataDir == "" || err != nil {
				return &exitError{code: -1, err: fmt.Errorf("unable to find data directory %q", dataDir)}
			}
			if len(updates) == 0 {
				return &exitError{code: -1, err: aggregate.ErrNoUpdates}
			}

			cfg, err := loadSweep(cmd)
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)

			events := logging.NewEventLog(dumpDir, cfg.Logging.Level)
			defer events.Close()
			aggOpts := []aggregate.AggregatorOption{
				aggregate.WithLogger(logger),
				aggregate.WithEventLog(events),
			}

			ledger, err := openLedger(cmd, cfg)
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
				aggOpts = append(aggOpts, aggregate.WithRecorder(ledger))
			}

			agg, err := aggregate.New(aggregate.Options{
				DataDir:       dataDir,
				DumpDir:       dumpDir,
				Updates:       updates,
				RunIdentifier: cfg.RunIdentifier,
				Exclusions:    cfg.Aggregate.Exclusions(),
			}, aggOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			res, err := agg.Run(ctx)
			if err != nil {
				return fmt.Errorf("aggregation failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Found %s run directories.\n", humanize.Comma(int64(len(res.Runs))))
			fmt.Fprintf(out, "Wrote %s rows to %s\n", humanize.Comma(int64(res.RowCount)), res.SummaryPath)
			if len(res.Incomplete) == 0 {
				fmt.Fprintln(out, "All runs completed.")
				return nil
			}
			fmt.Fprintf(out, "Incomplete runs (%d):\n", len(res.Incomplete))
			for _, run := range res.Incomplete {
				fmt.Fprintln(out, run)
			}
			return nil
		},
	}

	cmd.Flags().String("data", "", "Directory holding the run directories")
	cmd.Flags().String("dump", ".", "Where to write summary.csv")
	cmd.Flags().IntSlice("updates", nil, "Updates to summarize (comma-separated or repeated)")
	cmd.Flags().String("ledger", "", "SQLite ledger to record aggregated rows in")

	return cmd
}
