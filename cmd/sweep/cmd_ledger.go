package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nvandessel/sweep/internal/tables"
)

func newLedgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Show sweeps, scripts and run summaries recorded in a ledger",
		Long: `Show the sweeps recorded in a ledger, the scripts of one sweep, or the
summary rows aggregated from one run directory.

Examples:
  sweep ledger --ledger sweep.db                        # List recorded sweeps
  sweep ledger --ledger sweep.db --id <ID>              # Scripts of one sweep
  sweep ledger --ledger sweep.db --run RUN_C0_P1_1000   # Rows of one run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			id, _ := cmd.Flags().GetString("id")
			run, _ := cmd.Flags().GetString("run")
			if id != "" && run != "" {
				return fmt.Errorf("--id and --run are mutually exclusive")
			}

			cfg, err := loadSweep(cmd)
			if err != nil {
				return err
			}
			ledger, err := openLedger(cmd, cfg)
			if err != nil {
				return err
			}
			if ledger == nil {
				return fmt.Errorf("no ledger configured (use --ledger or SWEEP_LEDGER)")
			}
			defer ledger.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if run != "" {
				rows, err := ledger.RunSummary(ctx, run)
				if err != nil {
					return err
				}
				if jsonOut {
					fields := make([]map[string]string, len(rows))
					for i, r := range rows {
						fields[i] = r.Map()
					}
					return writeJSON(cmd, map[string]any{"run": run, "rows": fields})
				}
				if len(rows) == 0 {
					fmt.Fprintf(out, "No rows recorded for run %s.\n", run)
					return nil
				}
				return tables.Write(out, tables.Union(rows), rows)
			}

			if id != "" {
				scripts, err := ledger.Scripts(ctx, id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, map[string]any{"sweep_id": id, "scripts": scripts})
				}
				if len(scripts) == 0 {
					fmt.Fprintf(out, "No scripts recorded for sweep %s.\n", id)
					return nil
				}
				w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "JOB\tSHARD\tSEEDS\tPATH")
				for _, s := range scripts {
					fmt.Fprintf(w, "%s\t%d\t%d+\t%s\n", s.JobName, s.Shard, s.SeedOffset, s.Path)
				}
				return w.Flush()
			}

			sweeps, err := ledger.Sweeps(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{"count": len(sweeps), "sweeps": sweeps})
			}
			if len(sweeps) == 0 {
				fmt.Fprintln(out, "No sweeps recorded.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tCONDITIONS\tREPLICATES\tJOB DIR")
			for _, s := range sweeps {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, humanize.Time(s.CreatedAt),
					humanize.Comma(int64(s.Conditions)), humanize.Comma(int64(s.Replicates)), s.JobDir)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("ledger", "", "SQLite ledger to read")
	cmd.Flags().String("id", "", "Show the scripts of this sweep")
	cmd.Flags().String("run", "", "Show the summary rows aggregated from this run directory")

	return cmd
}
