// Package config provides unified configuration loading for sweep.
// It supports loading a sweep definition from YAML and applying
// environment variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/nvandessel/sweep/internal/aggregate"
	"github.com/nvandessel/sweep/internal/constants"
	"github.com/nvandessel/sweep/internal/models"
	"github.com/nvandessel/sweep/internal/sweep"
)

// SweepConfig describes one experiment: what the generator sweeps over and
// how the aggregator summarizes the results.
type SweepConfig struct {
	// Executable is the simulation binary the generated scripts run.
	Executable string `json:"executable" yaml:"executable"`

	// Template is a path to a submission-script template. Empty selects the
	// built-in SLURM template.
	Template string `json:"template,omitempty" yaml:"template,omitempty"`

	// PhaseFlag is the boolean parameter toggled between phase 1 and 2.
	PhaseFlag string `json:"phase_flag" yaml:"phase_flag"`

	// RunIdentifier prefixes run directories and script names.
	RunIdentifier string `json:"run_identifier" yaml:"run_identifier"`

	// FixedParameters are shared by every condition.
	FixedParameters models.Params `json:"fixed_parameters" yaml:"fixed_parameters"`

	// Axes are expanded into conditions in the order listed.
	Axes []sweep.Axis `json:"axes" yaml:"axes"`

	// Aggregate configures the run aggregator.
	Aggregate AggregateConfig `json:"aggregate" yaml:"aggregate"`

	// Ledger is an optional SQLite database recording generated scripts
	// and aggregated rows.
	Ledger string `json:"ledger,omitempty" yaml:"ledger,omitempty"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// LoggingConfig configures sweep's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the events.jsonl trace.
	// "trace" additionally logs full script bodies.
	Level string `json:"level" yaml:"level"`
}

// AggregateConfig lists which fields the aggregator drops or protects.
type AggregateConfig struct {
	// ConfigExclude are run_config.csv parameters left out of summaries.
	ConfigExclude []string `json:"config_exclude" yaml:"config_exclude"`

	// GeneStatsExclude are gene_stats.csv columns left out of summaries.
	GeneStatsExclude []string `json:"gene_stats_exclude" yaml:"gene_stats_exclude"`

	// RepOrgExclude are representative_org.csv columns left out of summaries,
	// in addition to the site occupancy columns.
	RepOrgExclude []string `json:"rep_org_exclude" yaml:"rep_org_exclude"`

	// SiteOccupancyFields is the number of site_cnt_{i}_gene_occupancy
	// columns to exclude.
	SiteOccupancyFields int `json:"site_occupancy_fields" yaml:"site_occupancy_fields"`

	// ListMarkers mark list-valued columns whose values are wrapped in
	// double quotes.
	ListMarkers []string `json:"list_markers" yaml:"list_markers"`
}

// Exclusions builds the aggregator's field exclusions.
func (a AggregateConfig) Exclusions() aggregate.Exclusions {
	repOrg := aggregate.NewFieldSet(a.RepOrgExclude...)
	for _, f := range aggregate.SiteOccupancyFields(a.SiteOccupancyFields) {
		repOrg[f] = true
	}
	return aggregate.Exclusions{
		Config:      aggregate.NewFieldSet(a.ConfigExclude...),
		GeneStats:   aggregate.NewFieldSet(a.GeneStatsExclude...),
		RepOrg:      repOrg,
		ListMarkers: append([]string(nil), a.ListMarkers...),
	}
}

// envOverrides are read from the environment after the file is loaded.
type envOverrides struct {
	LogLevel   string `env:"SWEEP_LOG_LEVEL"`
	Executable string `env:"SWEEP_EXECUTABLE"`
	Template   string `env:"SWEEP_TEMPLATE"`
	Ledger     string `env:"SWEEP_LEDGER"`
}

// Default returns the built-in sweep: the two-phase changing-environment
// experiment, 22 environment conditions over fixed Aagos parameters.
func Default() *SweepConfig {
	return &SweepConfig{
		Executable:    constants.DefaultExecutable,
		PhaseFlag:     constants.DefaultPhaseFlag,
		RunIdentifier: constants.RunIdentifier,
		FixedParameters: models.Params{
			"POP_SIZE":          models.Int(1000),
			"MAX_GENS":          models.Int(50000),
			"NUM_BITS":          models.Int(128),
			"NUM_GENES":         models.Int(16),
			"GENE_SIZE":         models.Int(8),
			"MAX_SIZE":          models.Int(1024),
			"MIN_SIZE":          models.Int(8),
			"GENE_MOVE_PROB":    models.Float(0.003),
			"BIT_FLIP_PROB":     models.Float(0.003),
			"BIT_INS_PROB":      models.Float(0.001),
			"BIT_DEL_PROB":      models.Float(0.001),
			"SUMMARY_INTERVAL":  models.Int(10000),
			"SNAPSHOT_INTERVAL": models.Int(50000),

			"PHASE_2_ACTIVE":         models.Bool(false),
			"PHASE_2_GENE_MOVE_PROB": models.Int(0),
			"PHASE_2_BIT_FLIP_PROB":  models.Float(0.003),
			"PHASE_2_BIT_INS_PROB":   models.Int(0),
			"PHASE_2_BIT_DEL_PROB":   models.Int(0),
		},
		Axes: []sweep.Axis{
			{Name: "environment" + models.VerbatimMarker, Values: defaultEnvironments()},
		},
		Aggregate: AggregateConfig{
			ConfigExclude: []string{
				"LOAD_ANCESTOR_FILE",
				"PHASE_2_ENV_FILE",
				"DATA_FILEPATH",
				"SNAPSHOT_INTERVAL",
				"PRINT_INTERVAL",
				"SUMMARY_INTERVAL",
			},
			GeneStatsExclude:    []string{},
			RepOrgExclude:       []string{"gene_neighbors"},
			SiteOccupancyFields: constants.SiteOccupancyFields,
			ListMarkers:         []string{"gene_starts", "gene_neighbors"},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// defaultEnvironments are the gradient and NK landscape environments: a
// static baseline, change-frequency and change-magnitude ladders, and a
// no-selection control (tournament size 1) for each model.
func defaultEnvironments() []string {
	env := func(gradient, magnitude, frequency, tournament int) string {
		return fmt.Sprintf("-GRADIENT_MODEL %d -CHANGE_MAGNITUDE %d -CHANGE_FREQUENCY %d -TOURNAMENT_SIZE %d",
			gradient, magnitude, frequency, tournament)
	}

	var out []string
	// Gradient model: vary change frequency at magnitude 1.
	out = append(out, env(1, 0, 0, 8))
	for f := 1; f <= 256; f *= 2 {
		out = append(out, env(1, 1, f, 8))
	}
	out = append(out, env(1, 0, 0, 1))
	// NK model: vary change magnitude at frequency 1.
	out = append(out, env(0, 0, 0, 8))
	for m := 1; m <= 256; m *= 2 {
		out = append(out, env(0, m, 1, 8))
	}
	out = append(out, env(0, 0, 0, 1))
	return out
}

// Load loads the sweep definition at path (or the built-in one when path is
// empty) and applies environment variable overrides.
// Order: defaults -> sweep file -> environment variables
func Load(path string) (*SweepConfig, error) {
	cfg := Default()
	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading sweep file: %w", err)
		}
		cfg = fileConfig
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads a sweep definition from a YAML file. Fields the file
// omits keep their defaults; fixed_parameters and axes, when present,
// replace the defaults rather than merging into them.
func LoadFromFile(path string) (*SweepConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep file: %w", err)
	}

	cfg := Default()
	defaultParams := cfg.FixedParameters
	cfg.FixedParameters = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing sweep file: %w", err)
	}
	if cfg.FixedParameters == nil {
		cfg.FixedParameters = defaultParams
	}

	cfg.Template = os.ExpandEnv(cfg.Template)
	cfg.Ledger = os.ExpandEnv(cfg.Ledger)

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *SweepConfig) Validate() error {
	if c.Executable == "" {
		return &sweep.ConfigurationError{Field: "executable", Err: fmt.Errorf("is required")}
	}
	if c.PhaseFlag == "" {
		return &sweep.ConfigurationError{Field: "phase_flag", Err: fmt.Errorf("is required")}
	}
	if c.RunIdentifier == "" {
		return &sweep.ConfigurationError{Field: "run_identifier", Err: fmt.Errorf("is required")}
	}
	if c.Aggregate.SiteOccupancyFields < 0 {
		return &sweep.ConfigurationError{
			Field: "aggregate.site_occupancy_fields",
			Err:   fmt.Errorf("must be non-negative, got %d", c.Aggregate.SiteOccupancyFields),
		}
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return &sweep.ConfigurationError{
			Field: "logging.level",
			Err:   fmt.Errorf("invalid log level %q (valid: info, debug, trace, or empty for default)", c.Logging.Level),
		}
	}

	return c.Expander().Validate()
}

// Expander returns a sweep expander with the configured axes registered.
func (c *SweepConfig) Expander() *sweep.Expander {
	return sweep.NewExpander(c.Axes...)
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(cfg *SweepConfig) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.Executable != "" {
		cfg.Executable = o.Executable
	}
	if o.Template != "" {
		cfg.Template = o.Template
	}
	if o.Ledger != "" {
		cfg.Ledger = o.Ledger
	}
	return nil
}
