package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/nvandessel/sweep/internal/jobs"
	"github.com/nvandessel/sweep/internal/logging"
	"github.com/nvandessel/sweep/internal/store"
	"github.com/spf13/cobra"
)

func newGenerateCmd() *cobra.Command {
	defaults := jobs.DefaultOptions()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write SLURM submission scripts for every condition",
		Long: `Write two SLURM array-job scripts per condition, one per phase.

Each condition runs --replicates replicates with seeds starting at
--seed-offset + condition*replicates. Every array task runs
--seeds-per-task replicates, --parallel-per-job of them at a time.
Scripts are written to --job-dir (default <data-dir>/jobs), split into
job-set-<k> subdirectories when --runs-per-subdir is set.

Examples:
  sweep generate --data-dir /scratch/exp --config-dir ./config --repo-dir ~/aagos
  sweep generate ... --hpc-account devolab --runs-per-subdir 300
  sweep generate ... --sweep exp.yaml --template my.sb --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadSweep(cmd)
			if err != nil {
				return err
			}

			opts := defaults
			opts.DataDir, _ = cmd.Flags().GetString("data-dir")
			opts.ConfigDir, _ = cmd.Flags().GetString("config-dir")
			opts.RepoDir, _ = cmd.Flags().GetString("repo-dir")
			opts.JobDir, _ = cmd.Flags().GetString("job-dir")
			opts.Replicates, _ = cmd.Flags().GetInt("replicates")
			opts.SeedOffset, _ = cmd.Flags().GetInt("seed-offset")
			opts.Account, _ = cmd.Flags().GetString("hpc-account")
			opts.TimeRequest, _ = cmd.Flags().GetString("time-request")
			opts.MemRequest, _ = cmd.Flags().GetString("mem")
			opts.RunsPerSubdir, _ = cmd.Flags().GetInt("runs-per-subdir")
			opts.SeedsPerTask, _ = cmd.Flags().GetInt("seeds-per-task")
			opts.ParallelPerJob, _ = cmd.Flags().GetInt("parallel-per-job")
			opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
			opts.Executable = cfg.Executable
			opts.PhaseFlag = cfg.PhaseFlag
			opts.RunIdentifier = cfg.RunIdentifier
			if err := opts.Validate(); err != nil {
				return err
			}

			templatePath, _ := cmd.Flags().GetString("template")
			if templatePath == "" {
				templatePath = cfg.Template
			}
			tmpl, err := jobs.LoadTemplate(templatePath)
			if err != nil {
				return err
			}

			conds, err := cfg.Expander().Expand()
			if err != nil {
				return err
			}

			logger := newLogger(cmd, cfg)
			emitterOpts := []jobs.EmitterOption{jobs.WithLogger(logger)}

			if !opts.DryRun {
				events := logging.NewEventLog(opts.ResolvedJobDir(), cfg.Logging.Level)
				defer events.Close()
				emitterOpts = append(emitterOpts, jobs.WithEventLog(events))
			}

			var sweepID string
			ledger, err := openLedger(cmd, cfg)
			if err != nil {
				return err
			}
			if ledger != nil {
				defer ledger.Close()
				if !opts.DryRun {
					sweepID, err = ledger.BeginSweep(cmd.Context(), store.Sweep{
						DataDir:        opts.DataDir,
						JobDir:         opts.ResolvedJobDir(),
						Executable:     opts.Executable,
						Template:       tmpl.Source(),
						Conditions:     len(conds),
						Replicates:     opts.Replicates,
						SeedOffset:     opts.SeedOffset,
						SeedsPerTask:   opts.SeedsPerTask,
						ParallelPerJob: opts.ParallelPerJob,
					})
					if err != nil {
						return fmt.Errorf("failed to record sweep: %w", err)
					}
					emitterOpts = append(emitterOpts, jobs.WithRecorder(ledger))
				}
			}

			emitter, err := jobs.NewEmitter(opts, cfg.FixedParameters, tmpl, emitterOpts...)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			logger.Info("generating scripts",
				"conditions", len(conds), "replicates", opts.Replicates, "template", tmpl.Source())
			report, err := emitter.Emit(ctx, conds)
			if err != nil {
				return fmt.Errorf("generation failed: %w", err)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{
					"sweep_id": sweepID,
					"report":   report,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generating %s replicates across %s conditions\n",
				humanize.Comma(int64(report.Jobs)), humanize.Comma(int64(report.Conditions)))
			fmt.Fprintf(out, "Seeds per task: %d | Parallel per job: %d | Array tasks per script: %d\n",
				opts.SeedsPerTask, opts.ParallelPerJob, jobs.ArrayLength(opts.Replicates, opts.SeedsPerTask))
			verb := "Wrote"
			if report.DryRun {
				verb = "Would write"
			}
			fmt.Fprintf(out, "%s %s scripts to %s", verb, humanize.Comma(int64(len(report.Scripts))), report.JobDir)
			if opts.RunsPerSubdir > -1 {
				fmt.Fprintf(out, " across %d job sets", report.Shards)
			}
			fmt.Fprintln(out)
			if sweepID != "" {
				fmt.Fprintf(out, "Recorded sweep %s in %s\n", sweepID, ledger.Path())
			}
			return nil
		},
	}

	cmd.Flags().String("data-dir", "", "Where runs write their output (required)")
	cmd.Flags().String("config-dir", "", "Directory copied into every run directory (required)")
	cmd.Flags().String("repo-dir", "", "Repository holding the executable (required)")
	cmd.Flags().String("job-dir", "", "Where to write scripts (default <data-dir>/jobs)")
	cmd.Flags().Int("replicates", defaults.Replicates, "Replicates per condition")
	cmd.Flags().Int("seed-offset", defaults.SeedOffset, "First random seed")
	cmd.Flags().String("hpc-account", "", "SLURM account to charge")
	cmd.Flags().String("time-request", defaults.TimeRequest, "Wall-clock limit per array task")
	cmd.Flags().String("mem", defaults.MemRequest, "Memory per array task")
	cmd.Flags().Int("runs-per-subdir", defaults.RunsPerSubdir, "Replicates per job-set subdirectory (-1 disables)")
	cmd.Flags().Int("seeds-per-task", defaults.SeedsPerTask, "Replicates run by each array task")
	cmd.Flags().Int("parallel-per-job", defaults.ParallelPerJob, "Replicates run concurrently within a task")
	cmd.Flags().String("template", "", "Submission script template (default built-in)")
	cmd.Flags().String("ledger", "", "SQLite ledger recording generated scripts")
	cmd.Flags().Bool("dry-run", false, "Render scripts without writing them")

	cmd.MarkFlagRequired("data-dir")
	cmd.MarkFlagRequired("config-dir")
	cmd.MarkFlagRequired("repo-dir")

	return cmd
}
