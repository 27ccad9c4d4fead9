// Package aggregate collects per-replicate results from a sweep's run
// directories into a single summary table with one row per run and
// requested update.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/nvandessel/sweep/internal/constants"
	"github.com/nvandessel/sweep/internal/logging"
	"github.com/nvandessel/sweep/internal/tables"
)

// ErrNoUpdates is returned when no target updates were requested.
var ErrNoUpdates = errors.New("no target updates provided")

// Options are the per-invocation aggregation settings.
type Options struct {
	DataDir       string
	DumpDir       string
	Updates       []int
	RunIdentifier string
	Exclusions    Exclusions
}

// Result summarizes one aggregation.
type Result struct {
	Runs        []string      `json:"runs"`
	Rows        []*tables.Row `json:"-"`
	RowCount    int           `json:"rows"`
	Incomplete  []string      `json:"incomplete"`
	SummaryPath string        `json:"summary_path"`
}

// Recorder persists the rows aggregated from one run. A ledger implements it.
type Recorder interface {
	RecordRun(ctx context.Context, run string, rows []*tables.Row) error
}

// Aggregator merges run outputs into a summary table.
type Aggregator struct {
	opts     Options
	logger   *slog.Logger
	events   *logging.EventLog
	recorder Recorder
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.logger = l }
}

// WithEventLog sets the JSONL event log. A nil log is allowed.
func WithEventLog(l *logging.EventLog) AggregatorOption {
	return func(a *Aggregator) { a.events = l }
}

// WithRecorder records the rows of every aggregated run.
func WithRecorder(r Recorder) AggregatorOption {
	return func(a *Aggregator) { a.recorder = r }
}

// New returns an Aggregator for opts.
func New(opts Options, options ...AggregatorOption) (*Aggregator, error) {
	if opts.DataDir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if len(opts.Updates) == 0 {
		return nil, ErrNoUpdates
	}
	if opts.DumpDir == "" {
		opts.DumpDir = "."
	}
	if opts.RunIdentifier == "" {
		opts.RunIdentifier = constants.RunIdentifier
	}

	a := &Aggregator{opts: opts}
	for _, o := range options {
		o(a)
	}
	if a.logger == nil {
		a.logger = logging.Discard()
	}
	return a, nil
}

// Discover returns the sorted names of the directories in dataDir whose
// name contains marker. Symlinks to directories count as directories.
func Discover(dataDir, marker string) ([]string, error) {
	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dataDir, err)
	}

	var runs []string
	for _, e := range entries {
		if !strings.Contains(e.Name(), marker) {
			continue
		}
		isDir := e.IsDir()
		if e.Type()&fs.ModeSymlink != 0 {
			// Run directories are often links into another scratch area.
			info, err := os.Stat(filepath.Join(dataDir, e.Name()))
			isDir = err == nil && info.IsDir()
		}
		if isDir {
			runs = append(runs, e.Name())
		}
	}
	sort.Strings(runs)
	return runs, nil
}

// Run aggregates every discovered run and writes summary.csv to the dump
// directory. Runs without a configuration snapshot are skipped and listed
// as incomplete; any other read failure aborts.
func (a *Aggregator) Run(ctx context.Context) (*Result, error) {
	o := a.opts
	runs, err := Discover(o.DataDir, o.RunIdentifier)
	if err != nil {
		return nil, err
	}
	a.logger.Info("found run directories", "count", len(runs))

	res := &Result{
		Runs:        runs,
		Incomplete:  []string{},
		SummaryPath: filepath.Join(o.DumpDir, constants.SummaryFile),
	}

	for i, run := range runs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a.logger.Debug("aggregating run", "run", run, "index", i+1, "total", len(runs))

		rows, err := a.aggregateRun(filepath.Join(o.DataDir, run))
		if errors.Is(err, errIncomplete) {
			a.logger.Warn("run configuration snapshot missing, skipping", "run", run)
			res.Incomplete = append(res.Incomplete, run)
			a.events.Event(logging.EventIncompleteRun, map[string]any{"run": run})
			continue
		}
		if err != nil {
			return res, fmt.Errorf("run %s: %w", run, err)
		}

		if a.recorder != nil {
			if err := a.recorder.RecordRun(ctx, run, rows); err != nil {
				return res, fmt.Errorf("failed to record run %s: %w", run, err)
			}
		}
		a.events.Event(logging.EventRun, map[string]any{"run": run, "rows": len(rows)})
		res.Rows = append(res.Rows, rows...)
	}

	header := tables.Union(res.Rows)
	if len(header) == 0 {
		// No complete runs: write the join key so the table still has a header.
		header = []string{constants.UpdateField}
	}
	if err := tables.WriteFile(res.SummaryPath, header, res.Rows); err != nil {
		return res, fmt.Errorf("failed to write summary: %w", err)
	}
	res.RowCount = len(res.Rows)
	a.logger.Info("wrote summary", "path", res.SummaryPath, "rows", res.RowCount)
	return res, nil
}

var errIncomplete = errors.New("incomplete run")

// aggregateRun builds one row per requested update for the run at dir.
func (a *Aggregator) aggregateRun(dir string) ([]*tables.Row, error) {
	o := a.opts
	out := filepath.Join(dir, constants.RunOutputDir)

	updates := updateKeys(o.Updates)
	byUpdate := make(map[string]*tables.Row, len(updates))
	for _, u := range updates {
		byUpdate[u] = tables.RowOf(constants.UpdateField, u)
	}

	cfg, err := tables.ReadFile(filepath.Join(out, constants.RunConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, errIncomplete
	}
	if err != nil {
		return nil, err
	}
	for _, line := range cfg.Rows {
		param := line.Value("parameter")
		if o.Exclusions.Config.Has(param) {
			continue
		}
		// Later entries for the same parameter win.
		for _, u := range updates {
			byUpdate[u].Set(param, line.Value("value"))
		}
	}

	geneStats, err := tables.ReadFile(filepath.Join(out, constants.GeneStatsFile))
	if err != nil {
		return nil, err
	}
	for _, line := range geneStats.Rows {
		row, ok := byUpdate[line.Value(constants.UpdateField)]
		if !ok {
			continue
		}
		merge(row, line, o.Exclusions.GeneStats, nil)
	}

	repOrg, err := tables.ReadFile(filepath.Join(out, constants.RepOrgFile))
	if err != nil {
		return nil, err
	}
	for _, line := range repOrg.Rows {
		row, ok := byUpdate[line.Value(constants.UpdateField)]
		if !ok {
			continue
		}
		merge(row, line, o.Exclusions.RepOrg, o.Exclusions.IsList)
	}

	rows := make([]*tables.Row, len(updates))
	for i, u := range updates {
		rows[i] = byUpdate[u]
	}
	return rows, nil
}

// merge fills dst from src, skipping excluded fields. Values already in dst
// are kept. Fields matched by quote are wrapped in double quotes.
func merge(dst, src *tables.Row, exclude FieldSet, quote func(string) bool) {
	for _, field := range src.Fields() {
		if exclude.Has(field) {
			continue
		}
		value := src.Value(field)
		if quote != nil && quote(field) {
			value = `"` + value + `"`
		}
		dst.Fill(field, value)
	}
}

// updateKeys renders updates as strings, dropping repeats.
func updateKeys(updates []int) []string {
	seen := make(map[int]bool, len(updates))
	keys := make([]string, 0, len(updates))
	for _, u := range updates {
		if seen[u] {
			continue
		}
		seen[u] = true
		keys = append(keys, strconv.Itoa(u))
	}
	return keys
}
