// Package jobs renders SLURM array-job submission scripts for every
// condition of a sweep, two per condition (one per phase).
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nvandessel/sweep/internal/constants"
	"github.com/nvandessel/sweep/internal/logging"
	"github.com/nvandessel/sweep/internal/models"
	"github.com/nvandessel/sweep/internal/pathutil"
	"github.com/nvandessel/sweep/internal/sweep"
)

// Options are the per-invocation generation settings.
type Options struct {
	DataDir   string
	ConfigDir string
	RepoDir   string
	// JobDir defaults to DataDir/jobs.
	JobDir string

	Replicates     int
	SeedOffset     int
	SeedsPerTask   int
	ParallelPerJob int

	TimeRequest string
	MemRequest  string
	// Account, when set, adds an "#SBATCH --account" line.
	Account string

	// RunsPerSubdir bounds the replicates per shard directory; -1 disables
	// sharding.
	RunsPerSubdir int

	Executable    string
	PhaseFlag     string
	RunIdentifier string

	// DryRun renders scripts without touching the filesystem.
	DryRun bool
}

// DefaultOptions returns Options populated with the generator defaults. The
// three directories are left empty.
func DefaultOptions() Options {
	return Options{
		Replicates:     constants.DefaultReplicates,
		SeedOffset:     constants.DefaultSeedOffset,
		SeedsPerTask:   constants.DefaultSeedsPerTask,
		ParallelPerJob: constants.DefaultParallelPerJob,
		TimeRequest:    constants.DefaultTimeRequest,
		MemRequest:     constants.DefaultMemRequest,
		RunsPerSubdir:  constants.ShardingDisabled,
		Executable:     constants.DefaultExecutable,
		PhaseFlag:      constants.DefaultPhaseFlag,
		RunIdentifier:  constants.RunIdentifier,
	}
}

// ResolvedJobDir returns JobDir, or DataDir/jobs when JobDir is empty.
func (o Options) ResolvedJobDir() string {
	if o.JobDir != "" {
		return o.JobDir
	}
	return filepath.Join(o.DataDir, constants.JobsDirName)
}

// Validate checks o for values the emitter cannot work with.
func (o Options) Validate() error {
	required := []struct {
		field, value string
	}{
		{"data_dir", o.DataDir},
		{"config_dir", o.ConfigDir},
		{"repo_dir", o.RepoDir},
		{"executable", o.Executable},
		{"phase_flag", o.PhaseFlag},
	}
	for _, r := range required {
		if r.value == "" {
			return &sweep.ConfigurationError{Field: r.field, Err: errors.New("is required")}
		}
	}

	positive := []struct {
		field string
		value int
	}{
		{"replicates", o.Replicates},
		{"seeds_per_task", o.SeedsPerTask},
		{"parallel_per_job", o.ParallelPerJob},
	}
	for _, p := range positive {
		if p.value < 1 {
			return &sweep.ConfigurationError{Field: p.field, Err: fmt.Errorf("must be at least 1, got %d", p.value)}
		}
	}

	if o.RunsPerSubdir < constants.ShardingDisabled {
		return &sweep.ConfigurationError{
			Field: "runs_per_subdir",
			Err:   fmt.Errorf("must be -1 (disabled) or non-negative, got %d", o.RunsPerSubdir),
		}
	}
	return nil
}

// Script describes one rendered submission script.
type Script struct {
	Condition   int          `json:"condition"`
	Phase       models.Phase `json:"phase"`
	JobName     string       `json:"job_name"`
	Path        string       `json:"path"`
	Shard       int          `json:"shard"`
	SeedOffset  int          `json:"seed_offset"`
	ArrayLength int          `json:"array_length"`
	Args        string       `json:"args"`
	// Content is the rendered script text; it is not serialized.
	Content string `json:"-"`
}

// Report summarizes an Emit call.
type Report struct {
	Conditions int      `json:"conditions"`
	Jobs       int      `json:"jobs"`
	Shards     int      `json:"shards"`
	JobDir     string   `json:"job_dir"`
	DryRun     bool     `json:"dry_run"`
	Scripts    []Script `json:"scripts"`
}

// Recorder persists scripts as they are written. A ledger implements it.
type Recorder interface {
	RecordScript(ctx context.Context, s Script) error
}

// Emitter renders and writes submission scripts.
type Emitter struct {
	opts     Options
	fixed    models.Params
	tmpl     *Template
	logger   *slog.Logger
	events   *logging.EventLog
	recorder Recorder
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) EmitterOption {
	return func(e *Emitter) { e.logger = l }
}

// WithEventLog sets the JSONL event log. A nil log is allowed.
func WithEventLog(l *logging.EventLog) EmitterOption {
	return func(e *Emitter) { e.events = l }
}

// WithRecorder records every written script.
func WithRecorder(r Recorder) EmitterOption {
	return func(e *Emitter) { e.recorder = r }
}

// NewEmitter validates opts and returns an Emitter. fixed holds the
// parameters shared by every condition.
func NewEmitter(opts Options, fixed models.Params, tmpl *Template, options ...EmitterOption) (*Emitter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}

	e := &Emitter{
		opts:  opts,
		fixed: fixed.Clone(),
		tmpl:  tmpl,
	}
	for _, o := range options {
		o(e)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	return e, nil
}

// Emit writes two scripts per condition. Any directory or file failure
// aborts the run; scripts already written are left in place.
func (e *Emitter) Emit(ctx context.Context, conditions []models.Condition) (*Report, error) {
	o := e.opts
	jobDir := o.ResolvedJobDir()
	shards := NewShardPlanner(jobDir, o.RunsPerSubdir)

	report := &Report{
		Conditions: len(conditions),
		Jobs:       o.Replicates * len(conditions),
		JobDir:     jobDir,
		DryRun:     o.DryRun,
	}

	arrayLen := ArrayLength(o.Replicates, o.SeedsPerTask)
	common := map[Placeholder]string{
		TimeRequest:    o.TimeRequest,
		ArrayIDRange:   fmt.Sprintf("1-%d", arrayLen),
		MemoryRequest:  o.MemRequest,
		ConfigDir:      o.ConfigDir,
		RepoDir:        o.RepoDir,
		Exec:           o.Executable,
		SeedsPerTask:   strconv.Itoa(o.SeedsPerTask),
		ParallelPerJob: strconv.Itoa(o.ParallelPerJob),
		CPUsPerTask:    strconv.Itoa(o.ParallelPerJob),
		Replicates:     strconv.Itoa(o.Replicates),
		HPCAccountInfo: "",
	}
	if o.Account != "" {
		common[HPCAccountInfo] = "#SBATCH --account " + o.Account
	}

	for _, cond := range conditions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		seedOffset := SeedOffset(o.SeedOffset, cond.Index, o.Replicates)
		prefix := fmt.Sprintf("%s%s", o.RunIdentifier, cond.Name())

		base := e.fixed.Clone()
		base["SEED"] = models.String(constants.SeedPlaceholder)
		base.Merge(cond.Params())
		verbatim := cond.Verbatim()

		dir := shards.Dir()
		if !o.DryRun {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return report, fmt.Errorf("failed to create job directory: %w", err)
			}
		}

		for _, phase := range models.Phases {
			args := RenderArgs(PhaseParams(base, o.PhaseFlag, phase), verbatim)
			jobName := fmt.Sprintf("%s_%s", cond.Name(), phase.Label())

			values := make(map[Placeholder]string, len(common)+5)
			for k, v := range common {
				values[k] = v
			}
			values[JobName] = jobName
			values[JobSeedOffset] = strconv.Itoa(seedOffset)
			values[RunDirPrefix] = filepath.Join(o.DataDir, fmt.Sprintf("%s_%s_", prefix, phase.Label()))
			values[RunCmds] = RunCommands(args, phase)

			content, err := e.tmpl.Render(values)
			if err != nil {
				return report, err
			}

			script := Script{
				Condition:   cond.Index,
				Phase:       phase,
				JobName:     jobName,
				Path:        filepath.Join(dir, fmt.Sprintf("%s_%s%s", prefix, phase.Label(), constants.ScriptExt)),
				Shard:       shards.Shard(),
				SeedOffset:  seedOffset,
				ArrayLength: arrayLen,
				Args:        args,
				Content:     content,
			}

			if err := pathutil.Within(script.Path, jobDir); err != nil {
				return report, fmt.Errorf("refusing to write script: %w", err)
			}
			if !o.DryRun {
				if err := os.WriteFile(script.Path, []byte(content), 0644); err != nil {
					return report, fmt.Errorf("failed to write %s: %w", filepath.Base(script.Path), err)
				}
				if e.recorder != nil {
					if err := e.recorder.RecordScript(ctx, script); err != nil {
						return report, fmt.Errorf("failed to record %s: %w", filepath.Base(script.Path), err)
					}
				}
			}

			e.logger.Debug("rendered script",
				"condition", cond.Index, "phase", phase.Label(), "path", script.Path, "seed_offset", seedOffset)
			e.logger.Log(ctx, logging.LevelTrace, "script content", "path", script.Path, "content", content)
			e.events.Event(logging.EventScript, map[string]any{
				"condition":   cond.Index,
				"phase":       phase.Label(),
				"path":        script.Path,
				"seed_offset": seedOffset,
				"dry_run":     o.DryRun,
			})
			report.Scripts = append(report.Scripts, script)
		}

		if shards.Advance(o.Replicates) {
			e.logger.Debug("advancing shard", "shard", shards.Shard())
		}
	}

	report.Shards = shardCount(report.Scripts)
	return report, nil
}

func shardCount(scripts []Script) int {
	if len(scripts) == 0 {
		return 0
	}
	return scripts[len(scripts)-1].Shard + 1
}
