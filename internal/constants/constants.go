// Package constants provides named constants used throughout the sweep codebase.
// This centralizes defaults and on-disk naming conventions shared by the
// generator and the aggregator.
package constants

// Generation defaults
const (
	// DefaultReplicates is the number of replicates run per condition.
	DefaultReplicates = 30

	// DefaultSeedOffset is the first seed of condition 0's seed block.
	DefaultSeedOffset = 1000

	// DefaultTimeRequest is the wall-clock limit requested from the scheduler.
	DefaultTimeRequest = "8:00:00"

	// DefaultMemRequest is the memory requested from the scheduler.
	DefaultMemRequest = "4G"

	// DefaultSeedsPerTask is how many replicates each array task runs.
	DefaultSeedsPerTask = 5

	// DefaultParallelPerJob is how many replicates run concurrently inside a task.
	DefaultParallelPerJob = 2

	// ShardingDisabled is the runs-per-subdir value that keeps every script
	// in the job directory.
	ShardingDisabled = -1

	// DefaultExecutable is the simulation binary invoked by generated scripts.
	DefaultExecutable = "Aagos"

	// DefaultPhaseFlag is the parameter toggled between phase 1 and phase 2.
	DefaultPhaseFlag = "PHASE_2_ACTIVE"

	// SeedPlaceholder is the SEED value; the scheduler environment resolves it
	// per replicate at run time.
	SeedPlaceholder = "${SEED}"
)

// Naming conventions shared between generated scripts and run directories.
const (
	// RunIdentifier prefixes every run directory and script file name.
	RunIdentifier = "RUN_"

	// JobSetPrefix names shard sub-directories: job-set-0, job-set-1, ...
	JobSetPrefix = "job-set-"

	// ScriptExt is the extension of generated submission scripts.
	ScriptExt = ".sb"

	// JobsDirName is the default job directory under the data directory.
	JobsDirName = "jobs"
)

// Run directory layout consumed by the aggregator.
const (
	// RunOutputDir is the sub-directory of a run directory holding its tables.
	RunOutputDir = "output"

	// RunConfigFile holds the run's recorded (parameter, value) configuration.
	RunConfigFile = "run_config.csv"

	// GeneStatsFile holds per-update gene statistics.
	GeneStatsFile = "gene_stats.csv"

	// RepOrgFile holds per-update representative organism data.
	RepOrgFile = "representative_org.csv"

	// SummaryFile is the aggregated output table.
	SummaryFile = "summary.csv"

	// UpdateField is the checkpoint column used as the join key.
	UpdateField = "update"

	// SiteOccupancyFields is the number of site_cnt_{i}_gene_occupancy columns
	// written by the simulation (one per genome site).
	SiteOccupancyFields = 128
)

// Scripts run inside a task's working directory.
const (
	// RunSummaryFile is the optional summary the simulation may leave behind.
	RunSummaryFile = "summary.csv"

	// RunSummaryWithPhaseFile receives RunSummaryFile plus a phase column.
	RunSummaryWithPhaseFile = "summary_with_phase.csv"

	// CommandLogFile records the literal invocation for audit.
	CommandLogFile = "cmd.log"

	// RunLogFile captures the simulation's stdout.
	RunLogFile = "run.log"
)
