package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nvandessel/sweep/internal/config"
	"github.com/nvandessel/sweep/internal/logging"
	"github.com/nvandessel/sweep/internal/store"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "sweep",
		Short: "Parameter sweeps for SLURM clusters",
		Long: `sweep expands an experiment's parameter axes into conditions, writes one
SLURM array-job script per condition and phase, and aggregates the
per-replicate results into a single summary table.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("sweep", "", "Sweep definition file (YAML); defaults to the built-in sweep")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, or trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newConditionsCmd(),
		newGenerateCmd(),
		newAggregateCmd(),
		newLedgerCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

// loadSweep loads the sweep named by --sweep and applies --log-level.
func loadSweep(cmd *cobra.Command) (*config.SweepConfig, error) {
	path, _ := cmd.Flags().GetString("sweep")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.SweepConfig) *slog.Logger {
	return logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
}

// openLedger opens the ledger named by the --ledger flag or the sweep file.
// It returns nil when neither names one.
func openLedger(cmd *cobra.Command, cfg *config.SweepConfig) (*store.Ledger, error) {
	path, _ := cmd.Flags().GetString("ledger")
	if path == "" {
		path = cfg.Ledger
	}
	if path == "" {
		return nil, nil
	}
	l, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	return l, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext is cancelled when the process receives a shutdown signal.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), shutdownSignals...)
}
