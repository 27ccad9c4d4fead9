package jobs

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Placeholder is a token in a submission-script template.
type Placeholder string

const (
	JobName        Placeholder = "<<JOB_NAME>>"
	ArrayIDRange   Placeholder = "<<ARRAY_ID_RANGE>>"
	TimeRequest    Placeholder = "<<TIME_REQUEST>>"
	MemoryRequest  Placeholder = "<<MEMORY_REQUEST>>"
	HPCAccountInfo Placeholder = "<<HPC_ACCOUNT_INFO>>"
	ConfigDir      Placeholder = "<<CONFIG_DIR>>"
	RepoDir        Placeholder = "<<REPO_DIR>>"
	Exec           Placeholder = "<<EXEC>>"
	JobSeedOffset  Placeholder = "<<JOB_SEED_OFFSET>>"
	SeedsPerTask   Placeholder = "<<SEEDS_PER_TASK>>"
	ParallelPerJob Placeholder = "<<PARALLEL_PER_JOB>>"
	RunCmds        Placeholder = "<<RUN_CMDS>>"
	RunDirPrefix   Placeholder = "<<RUN_DIR_PREFIX>>"

	// Substituted when present.
	CPUsPerTask Placeholder = "<<CPUS_PER_TASK>>"
	Replicates  Placeholder = "<<REPLICATES>>"
)

// RequiredPlaceholders must each appear in a template.
var RequiredPlaceholders = []Placeholder{
	JobName, ArrayIDRange, TimeRequest, MemoryRequest, HPCAccountInfo,
	ConfigDir, RepoDir, Exec, JobSeedOffset, SeedsPerTask, ParallelPerJob,
	RunCmds, RunDirPrefix,
}

//go:embed templates/base_slurm_script.txt
var defaultTemplate string

// TemplateError reports a template that cannot be rendered. It is fatal.
type TemplateError struct {
	Source  string
	Missing []Placeholder
	Unknown []Placeholder
}

func (e *TemplateError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing placeholders "+joinPlaceholders(e.Missing))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "no value for "+joinPlaceholders(e.Unknown))
	}
	return fmt.Sprintf("template %s: %s", e.Source, strings.Join(parts, "; "))
}

func joinPlaceholders(ps []Placeholder) string {
	s := make([]string, len(ps))
	for i, p := range ps {
		s[i] = string(p)
	}
	return strings.Join(s, ", ")
}

// Template is a validated submission-script template.
type Template struct {
	source string
	text   string
}

// ParseTemplate validates text and returns a Template. source names the
// template in error messages.
func ParseTemplate(source, text string) (*Template, error) {
	var missing []Placeholder
	for _, p := range RequiredPlaceholders {
		if !strings.Contains(text, string(p)) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return nil, &TemplateError{Source: source, Missing: missing}
	}
	return &Template{source: source, text: text}, nil
}

// LoadTemplate reads and validates the template at path. An empty path
// selects the built-in SLURM template.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return DefaultTemplate(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}
	return ParseTemplate(path, string(data))
}

// DefaultTemplate returns the built-in SLURM array-job template.
func DefaultTemplate() *Template {
	return &Template{source: "(built-in)", text: defaultTemplate}
}

// Source names where the template came from.
func (t *Template) Source() string {
	return t.source
}

// Render substitutes values into the template in a single pass. Every
// occurrence of a known placeholder is replaced; substituted text is never
// scanned again, so the result does not depend on substitution order. Every
// required placeholder must have a value.
func (t *Template) Render(values map[Placeholder]string) (string, error) {
	var unknown []Placeholder
	for _, p := range RequiredPlaceholders {
		if _, ok := values[p]; !ok {
			unknown = append(unknown, p)
		}
	}
	if len(unknown) > 0 {
		return "", &TemplateError{Source: t.source, Unknown: unknown}
	}

	keys := make([]string, 0, len(values))
	for p := range values {
		keys = append(keys, string(p))
	}
	sort.Strings(keys)

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, values[Placeholder(k)])
	}
	return strings.NewReplacer(pairs...).Replace(t.text), nil
}
